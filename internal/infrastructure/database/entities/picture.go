package entities

import (
	"time"

	"github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/domain/position"
)

// Picture is the persisted picture row. A position of 0 means not ranked in that slot.
type Picture struct {
	ID                string    `gorm:"type:varchar(40);primaryKey"`
	Title             string    `gorm:"type:varchar(255);not null"`
	BlobRef           string    `gorm:"type:varchar(255);not null"`
	MimeType          string    `gorm:"type:varchar(64);not null"`
	Bytes             int64     `gorm:"not null"`
	GalleryPosition   int       `gorm:"not null;default:0;index"`
	StartpagePosition int       `gorm:"not null;default:0;index"`
	Description       string    `gorm:"type:varchar(500);not null"`
	CreatedBy         string    `gorm:"type:varchar(64)"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime;index"`
}

func (Picture) TableName() string {
	return "pictures"
}

func NewPictureFromDomain(p *picture.Picture) *Picture {
	return &Picture{
		ID:                p.ID,
		Title:             p.Title,
		BlobRef:           p.BlobRef,
		MimeType:          p.MimeType,
		Bytes:             p.Bytes,
		GalleryPosition:   p.Ranks.Gallery,
		StartpagePosition: p.Ranks.StartPage,
		Description:       p.Description,
		CreatedBy:         p.CreatedBy,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// EtoD converts the row into the domain picture.
func (e *Picture) EtoD() *picture.Picture {
	return &picture.Picture{
		ID:       e.ID,
		Title:    e.Title,
		BlobRef:  e.BlobRef,
		MimeType: e.MimeType,
		Bytes:    e.Bytes,
		Ranks: position.Ranks{
			Gallery:   e.GalleryPosition,
			StartPage: e.StartpagePosition,
		},
		Description: e.Description,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
