package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/config"
	domain "github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/domain/position"
	"github.com/janhq/picture-api/internal/infrastructure/auth"
	"github.com/janhq/picture-api/internal/infrastructure/metrics"
	"github.com/janhq/picture-api/internal/interfaces/httpserver/requests"
	"github.com/janhq/picture-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/picture-api/internal/utils/platformerrors"
)

// PictureService is the slice of the picture domain the HTTP layer depends on.
type PictureService interface {
	List(ctx context.Context, q domain.ListQuery) ([]*domain.Picture, error)
	Get(ctx context.Context, id string) (*domain.Picture, error)
	Create(ctx context.Context, in domain.CreateInput) (*domain.Picture, error)
	Update(ctx context.Context, id string, in domain.UpdateInput) (*domain.Picture, error)
	Unrank(ctx context.Context, id string, slot position.Slot) (*domain.Picture, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) (*domain.BulkDeleteResult, error)
}

// multipartOverhead is the allowance on top of the picture size for form fields and boundaries.
const multipartOverhead = 1 << 20

// PictureHandler exposes the public listing and admin management endpoints.
type PictureHandler struct {
	cfg      *config.Config
	service  PictureService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewPictureHandler(cfg *config.Config, service PictureService, log zerolog.Logger) *PictureHandler {
	return &PictureHandler{
		cfg:      cfg,
		service:  service,
		validate: requests.NewValidator(),
		log:      log.With().Str("component", "picture-handler").Logger(),
	}
}

// List godoc
// @Summary      List pictures
// @Description  Lists pictures in one of the ranking projections. case is gallery, startPage or none; sort is asc or desc. Ranked cases only return pictures with a position in that ranking.
// @Tags         pictures
// @Produce      json
// @Param        case  path      string  false  "gallery | startPage | none"
// @Param        sort  path      string  false  "asc | desc"
// @Success      200   {object}  responses.Envelope{data=responses.PictureListResponse}
// @Failure      400   {object}  responses.ErrorResponse
// @Failure      500   {object}  responses.ErrorResponse
// @Router       /pictures/{case}/{sort} [get]
func (h *PictureHandler) List(c *gin.Context) {
	q, err := domain.ParseListQuery(c.Param("case"), c.Param("sort"))
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "5e2a9c14-8b3d-4f71-a6e0-d9c7b1f34a28")
		return
	}

	pics, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Str("query", q.String()).Msg("list pictures failed")
		responses.HandleError(c, err, "failed to list pictures")
		return
	}
	responses.OK(c, "pictures retrieved", responses.NewPictureListResponse(q, pics))
}

// Get godoc
// @Summary      Get a picture
// @Tags         pictures
// @Produce      json
// @Param        id   path      string  true  "Picture ID"
// @Success      200  {object}  responses.Envelope{data=responses.PictureResponse}
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /picture/{id} [get]
func (h *PictureHandler) Get(c *gin.Context) {
	pic, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get picture")
		return
	}
	responses.OK(c, "picture retrieved", responses.NewPictureResponse(pic))
}

// Create godoc
// @Summary      Upload a picture
// @Description  Stores the file and inserts the picture into the requested rankings, shifting later pictures down by one. A position of 0 leaves it unranked.
// @Tags         admin
// @Accept       multipart/form-data
// @Produce      json
// @Param        title              formData  string  true   "Title"
// @Param        description        formData  string  false  "Description"
// @Param        galleryPosition    formData  int     false  "Gallery position"
// @Param        startpagePosition  formData  int     false  "Start page position"
// @Param        file               formData  file    true   "Image or PDF"
// @Success      201  {object}  responses.Envelope{data=responses.PictureResponse}
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      401  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /admin/picture [post]
func (h *PictureHandler) Create(c *gin.Context) {
	h.limitBody(c)
	in, closer, err := requests.ParseCreatePicture(c)
	defer closer.Close()
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "0c7d3f91-4e26-4b8a-9a15-f2e8c6b0d473")
		return
	}
	in.CreatedBy = auth.Subject(c)

	pic, err := h.service.Create(c.Request.Context(), in)
	metrics.RecordMutation("create", err)
	if err != nil {
		responses.HandleError(c, err, "failed to create picture")
		return
	}
	responses.Success(c, http.StatusCreated, "picture created", responses.NewPictureResponse(pic))
}

// Update godoc
// @Summary      Update a picture
// @Description  Applies the supplied fields. A changed position moves the picture within that ranking; a position of 0 leaves it untouched.
// @Tags         admin
// @Accept       multipart/form-data
// @Produce      json
// @Param        id                 path      string  true   "Picture ID"
// @Param        title              formData  string  false  "Title"
// @Param        description        formData  string  false  "Description"
// @Param        galleryPosition    formData  int     false  "Gallery position"
// @Param        startpagePosition  formData  int     false  "Start page position"
// @Param        file               formData  file    false  "Replacement file"
// @Success      200  {object}  responses.Envelope{data=responses.PictureResponse}
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /admin/picture/{id} [patch]
func (h *PictureHandler) Update(c *gin.Context) {
	h.limitBody(c)
	in, closer, err := requests.ParseUpdatePicture(c)
	defer closer.Close()
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "b4e81a6d-2f97-4c03-8d5e-7a3c9f1e2b60")
		return
	}

	pic, err := h.service.Update(c.Request.Context(), c.Param("id"), in)
	metrics.RecordMutation("update", err)
	if err != nil {
		responses.HandleError(c, err, "failed to update picture")
		return
	}
	responses.OK(c, "picture updated", responses.NewPictureResponse(pic))
}

// Unrank godoc
// @Summary      Remove a picture from one ranking
// @Tags         admin
// @Produce      json
// @Param        id    path      string  true  "Picture ID"
// @Param        slot  path      string  true  "gallery | startPage"
// @Success      200   {object}  responses.Envelope{data=responses.PictureResponse}
// @Failure      400   {object}  responses.ErrorResponse
// @Failure      404   {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /admin/picture/{id}/position/{slot} [delete]
func (h *PictureHandler) Unrank(c *gin.Context) {
	slot, err := position.ParseSlot(c.Param("slot"))
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "e9a2c5f8-1d43-4b7e-b6a0-3f8d2c7e5194")
		return
	}

	pic, err := h.service.Unrank(c.Request.Context(), c.Param("id"), slot)
	metrics.RecordMutation("unrank", err)
	if err != nil {
		responses.HandleError(c, err, "failed to update picture")
		return
	}
	responses.OK(c, "picture removed from "+slot.String(), responses.NewPictureResponse(pic))
}

// Delete godoc
// @Summary      Delete a picture
// @Description  Removes the picture from both rankings, closing the gaps, then deletes its file.
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "Picture ID"
// @Success      200  {object}  responses.Envelope
// @Failure      404  {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /admin/picture/{id} [delete]
func (h *PictureHandler) Delete(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("id"))
	metrics.RecordMutation("delete", err)
	if err != nil {
		responses.HandleError(c, err, "failed to delete picture")
		return
	}
	responses.OK(c, "picture deleted", gin.H{"id": c.Param("id")})
}

// BulkDelete godoc
// @Summary      Delete several pictures
// @Description  Deletes each id in its own transaction and reports which ids failed.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      requests.BulkDeleteRequest  true  "Picture IDs"
// @Success      200      {object}  responses.Envelope{data=responses.BulkDeleteResponse}
// @Failure      400      {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /admin/pictures/delete [post]
func (h *PictureHandler) BulkDelete(c *gin.Context) {
	var req requests.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "request body must be {\"ids\": [...]}", "4a1f7d3e-9c62-48b5-a0e7-6d2b8f5c1e39")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		message := requests.ValidationMessage(err)
		if message == "" {
			message = "invalid request body"
		}
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, message, "0b7e3c95-6f1d-4a28-8d4e-c2a9f51b73e6")
		return
	}

	result, err := h.service.BulkDelete(c.Request.Context(), req.IDs)
	metrics.RecordMutation("bulk_delete", err)
	if err != nil {
		responses.HandleError(c, err, "failed to delete pictures")
		return
	}

	message := "pictures deleted"
	if len(result.Failed) > 0 {
		message = "some pictures could not be deleted"
	}
	responses.OK(c, message, responses.NewBulkDeleteResponse(result))
}

func (h *PictureHandler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxPictureBytes+multipartOverhead)
}
