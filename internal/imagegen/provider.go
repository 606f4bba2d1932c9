package imagegen

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/orchestrator"
)

// Store persists generated images and returns their public URLs.
type Store interface {
	Save(ctx context.Context, titleID, ideaID uuid.UUID, data []byte, contentType string) (string, error)
	Download(ctx context.Context, imageURL string, titleID, ideaID uuid.UUID) (string, error)
}

// Options configures New.
type Options struct {
	Provider      string
	Model         string
	GeminiAPIKey  string
	ArkAPIKey     string
	MaxReferences int
}

// New builds the provider named in opts.
func New(ctx context.Context, opts Options, store Store) (orchestrator.ImageProvider, error) {
	switch opts.Provider {
	case "gemini", "":
		return NewGemini(ctx, opts.GeminiAPIKey, opts.Model, opts.MaxReferences, store)
	case "seedream":
		return NewSeedream(opts.ArkAPIKey, opts.Model, opts.MaxReferences, store)
	default:
		return nil, fmt.Errorf("unknown image provider %q", opts.Provider)
	}
}
