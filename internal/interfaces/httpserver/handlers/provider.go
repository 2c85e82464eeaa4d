package handlers

import (
	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/config"
)

// Provider bundles the HTTP handlers.
type Provider struct {
	Picture *PictureHandler
}

func NewProvider(cfg *config.Config, service PictureService, log zerolog.Logger) *Provider {
	return &Provider{
		Picture: NewPictureHandler(cfg, service, log),
	}
}
