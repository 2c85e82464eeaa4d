package responses

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janhq/picture-api/internal/domain/picture"
)

// Envelope wraps every successful response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PictureResponse is the public representation of a picture.
type PictureResponse struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	URL               string    `json:"url"`
	MimeType          string    `json:"mimeType"`
	Bytes             int64     `json:"bytes"`
	GalleryPosition   int       `json:"galleryPosition"`
	StartpagePosition int       `json:"startpagePosition"`
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// PictureListResponse is returned by the listing endpoints.
type PictureListResponse struct {
	Case     string            `json:"case"`
	Sort     string            `json:"sort"`
	Count    int               `json:"count"`
	Pictures []PictureResponse `json:"pictures"`
}

// BulkDeleteFailure reports one id that could not be deleted.
type BulkDeleteFailure struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BulkDeleteResponse lists deleted and failed ids of a bulk delete.
type BulkDeleteResponse struct {
	Deleted []string            `json:"deleted"`
	Failed  []BulkDeleteFailure `json:"failed"`
}

func NewPictureResponse(pic *picture.Picture) PictureResponse {
	return PictureResponse{
		ID:                pic.ID,
		Title:             pic.Title,
		URL:               pic.URL,
		MimeType:          pic.MimeType,
		Bytes:             pic.Bytes,
		GalleryPosition:   pic.Ranks.Gallery,
		StartpagePosition: pic.Ranks.StartPage,
		Description:       pic.Description,
		CreatedAt:         pic.CreatedAt,
		UpdatedAt:         pic.UpdatedAt,
	}
}

func NewPictureListResponse(q picture.ListQuery, pics []*picture.Picture) PictureListResponse {
	items := make([]PictureResponse, 0, len(pics))
	for _, pic := range pics {
		items = append(items, NewPictureResponse(pic))
	}
	return PictureListResponse{
		Case:     string(q.Case),
		Sort:     string(q.Sort),
		Count:    len(items),
		Pictures: items,
	}
}

func NewBulkDeleteResponse(result *picture.BulkDeleteResult) BulkDeleteResponse {
	resp := BulkDeleteResponse{
		Deleted: append([]string{}, result.Deleted...),
		Failed:  make([]BulkDeleteFailure, 0, len(result.Failed)),
	}
	for _, f := range result.Failed {
		resp.Failed = append(resp.Failed, BulkDeleteFailure{ID: f.ID, Message: f.Message})
	}
	return resp
}

// Success writes the envelope with the given status.
func Success(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// OK writes a 200 envelope.
func OK(c *gin.Context, message string, data any) {
	Success(c, http.StatusOK, message, data)
}
