package requests

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/janhq/picture-api/internal/domain/picture"
)

// Multipart field names accepted by the admin endpoints.
const (
	FieldTitle             = "title"
	FieldDescription       = "description"
	FieldGalleryPosition   = "galleryPosition"
	FieldStartpagePosition = "startpagePosition"
	FieldFile              = "file"
)

// BulkDeleteRequest is the body of the bulk delete endpoint.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required,max=64"`
}

// NewValidator reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationMessage turns validator errors into one line a client can act on. Other errors
// yield an empty string.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describeFieldError(fe))
	}
	return strings.Join(parts, "; ")
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s accepts at most %s entries", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// ParseCreatePicture reads the multipart create form. The returned closer releases the
// uploaded file and is never nil.
func ParseCreatePicture(c *gin.Context) (picture.CreateInput, io.Closer, error) {
	in := picture.CreateInput{
		Title:       c.PostForm(FieldTitle),
		Description: c.PostForm(FieldDescription),
	}

	var err error
	if in.GalleryPosition, err = intField(c, FieldGalleryPosition); err != nil {
		return in, nopCloser{}, err
	}
	if in.StartpagePosition, err = intField(c, FieldStartpagePosition); err != nil {
		return in, nopCloser{}, err
	}

	// a missing file is reported by the service together with the other field checks
	file, closer, err := fileField(c)
	if errors.Is(err, http.ErrMissingFile) {
		return in, nopCloser{}, nil
	}
	if err != nil {
		return in, nopCloser{}, err
	}
	in.File = file
	return in, closer, nil
}

// ParseUpdatePicture reads the multipart update form. Fields missing from the form stay nil.
func ParseUpdatePicture(c *gin.Context) (picture.UpdateInput, io.Closer, error) {
	var in picture.UpdateInput

	if v, ok := c.GetPostForm(FieldTitle); ok {
		in.Title = &v
	}
	if v, ok := c.GetPostForm(FieldDescription); ok {
		in.Description = &v
	}

	for _, field := range []struct {
		name   string
		target **int
	}{
		{FieldGalleryPosition, &in.GalleryPosition},
		{FieldStartpagePosition, &in.StartpagePosition},
	} {
		if _, ok := c.GetPostForm(field.name); !ok {
			continue
		}
		n, err := intField(c, field.name)
		if err != nil {
			return in, nopCloser{}, err
		}
		*field.target = &n
	}

	file, closer, err := fileField(c)
	if errors.Is(err, http.ErrMissingFile) {
		return in, nopCloser{}, nil
	}
	if err != nil {
		return in, nopCloser{}, err
	}
	in.File = file
	return in, closer, nil
}

func intField(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

// fileField opens the uploaded file. A request without one, multipart or not, yields
// http.ErrMissingFile.
func fileField(c *gin.Context) (*picture.File, io.Closer, error) {
	header, err := c.FormFile(FieldFile)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nopCloser{}, http.ErrMissingFile
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nopCloser{}, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, nopCloser{}, fmt.Errorf("invalid multipart form: %w", err)
	}
	f, err := header.Open()
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("open uploaded file: %w", err)
	}
	return &picture.File{Name: header.Filename, Reader: f}, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
