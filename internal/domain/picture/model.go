package picture

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/janhq/picture-api/internal/domain/position"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 500
)

// Picture is an uploaded image together with its place in the gallery and start page rankings.
type Picture struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	BlobRef     string         `json:"blob_ref"`
	MimeType    string         `json:"mime_type"`
	Bytes       int64          `json:"bytes"`
	Ranks       position.Ranks `json:"ranks"`
	Description string         `json:"description"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// URL is resolved from BlobRef on read and never persisted.
	URL string `json:"url,omitempty"`
}

// File is an uploaded binary waiting to be validated and stored.
type File struct {
	Name   string
	Reader io.Reader
}

// CreateInput carries the fields accepted when a picture is created. A rank of 0 leaves the
// picture out of that ranking.
type CreateInput struct {
	Title             string
	Description       string
	GalleryPosition   int
	StartpagePosition int
	File              *File
	CreatedBy         string
}

// UpdateInput carries the fields of a partial update. Nil fields are left untouched, and so is
// a rank of 0.
type UpdateInput struct {
	Title             *string
	Description       *string
	GalleryPosition   *int
	StartpagePosition *int
	File              *File
}

func (in UpdateInput) rank(slot position.Slot) *int {
	switch slot {
	case position.SlotGallery:
		return in.GalleryPosition
	case position.SlotStartPage:
		return in.StartpagePosition
	}
	return nil
}

// ListCase selects which pictures a listing returns and what it orders them by.
type ListCase string

const (
	CaseGallery   ListCase = "gallery"
	CaseStartPage ListCase = "startPage"
	CaseNone      ListCase = "none"
)

// SortOrder is the direction of a listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListQuery describes one of the listing projections.
type ListQuery struct {
	Case ListCase
	Sort SortOrder
}

// ParseListQuery reads the case and sort path segments. Missing values default to the
// unfiltered listing in descending order.
func ParseListQuery(rawCase, rawSort string) (ListQuery, error) {
	q := ListQuery{Case: CaseNone, Sort: SortDesc}

	switch strings.ToLower(strings.TrimSpace(rawCase)) {
	case "", "none", "all":
	case "gallery":
		q.Case = CaseGallery
	case "startpage", "start_page":
		q.Case = CaseStartPage
	default:
		return q, fmt.Errorf("unknown listing case %q", rawCase)
	}

	switch strings.ToLower(strings.TrimSpace(rawSort)) {
	case "", "desc":
	case "asc":
		q.Sort = SortAsc
	default:
		return q, fmt.Errorf("unknown sort order %q", rawSort)
	}
	return q, nil
}

// Slot returns the ranking the listing filters on, or false for the unfiltered listing.
func (q ListQuery) Slot() (position.Slot, bool) {
	switch q.Case {
	case CaseGallery:
		return position.SlotGallery, true
	case CaseStartPage:
		return position.SlotStartPage, true
	}
	return 0, false
}

func (q ListQuery) Descending() bool {
	return q.Sort != SortAsc
}

func (q ListQuery) String() string {
	return string(q.Case) + ":" + string(q.Sort)
}

// AllListQueries enumerates every listing projection.
func AllListQueries() []ListQuery {
	out := make([]ListQuery, 0, 6)
	for _, c := range []ListCase{CaseGallery, CaseStartPage, CaseNone} {
		for _, s := range []SortOrder{SortAsc, SortDesc} {
			out = append(out, ListQuery{Case: c, Sort: s})
		}
	}
	return out
}

// BulkDeleteResult reports the outcome of every id in a bulk delete.
type BulkDeleteResult struct {
	Deleted []string         `json:"deleted"`
	Failed  []BulkDeleteFail `json:"failed"`
}

type BulkDeleteFail struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
