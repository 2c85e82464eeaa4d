package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/picture-api/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates picture route registration.
type Routes struct {
	handlers *handlers.Provider
	admin    []gin.HandlerFunc
}

// NewRoutes builds the route table. adminMiddleware guards every /admin route.
func NewRoutes(provider *handlers.Provider, adminMiddleware ...gin.HandlerFunc) *Routes {
	return &Routes{handlers: provider, admin: adminMiddleware}
}

// Register attaches the public listing routes and the admin routes.
func (r *Routes) Register(router gin.IRouter) {
	pictures := r.handlers.Picture

	router.GET("/pictures", pictures.List)
	router.GET("/pictures/:case", pictures.List)
	router.GET("/pictures/:case/:sort", pictures.List)
	router.GET("/picture/:id", pictures.Get)

	admin := router.Group("/admin", r.admin...)
	admin.POST("/picture", pictures.Create)
	admin.PATCH("/picture/:id", pictures.Update)
	admin.DELETE("/picture/:id", pictures.Delete)
	admin.DELETE("/picture/:id/position/:slot", pictures.Unrank)
	admin.POST("/pictures/delete", pictures.BulkDelete)
}
