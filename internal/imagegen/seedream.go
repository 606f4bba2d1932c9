package imagegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"

	"github.com/jonathan/painting-generator/internal/orchestrator"
)

// DefaultSeedreamModel is used when no image model is configured.
const DefaultSeedreamModel = "doubao-seedream-4-0-250828"

// generateFunc performs one Ark image call and returns the image URLs.
type generateFunc func(ctx context.Context, req model.GenerateImagesRequest) ([]string, error)

// Seedream generates images through the Ark runtime and downloads the result.
type Seedream struct {
	generate      generateFunc
	model         string
	maxReferences int
	store         Store
}

// NewSeedream creates a provider backed by the Ark API.
func NewSeedream(apiKey, modelName string, maxReferences int, store Store) (*Seedream, error) {
	if apiKey == "" {
		return nil, errors.New("ark API key is required")
	}
	client := arkruntime.NewClientWithApiKey(apiKey)
	return newSeedream(arkGenerate(client), modelName, maxReferences, store), nil
}

func newSeedream(generate generateFunc, modelName string, maxReferences int, store Store) *Seedream {
	if modelName == "" {
		modelName = DefaultSeedreamModel
	}
	return &Seedream{generate: generate, model: modelName, maxReferences: maxReferences, store: store}
}

func arkGenerate(client *arkruntime.Client) generateFunc {
	return func(ctx context.Context, req model.GenerateImagesRequest) ([]string, error) {
		resp, err := client.GenerateImages(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("ark returned error: %s - %s", resp.Error.Code, resp.Error.Message)
		}
		urls := make([]string, 0, len(resp.Data))
		for _, image := range resp.Data {
			if image != nil && image.Url != nil {
				urls = append(urls, *image.Url)
			}
		}
		return urls, nil
	}
}

// GenerateImage implements orchestrator.ImageProvider.
func (s *Seedream) GenerateImage(ctx context.Context, req orchestrator.ImageRequest) (*orchestrator.ImageResult, error) {
	refs, used := selectReferences(req.References, s.maxReferences)

	generateReq := model.GenerateImagesRequest{
		Model:          s.model,
		Prompt:         withReferenceHint(req.Prompt, len(refs)),
		Size:           volcengine.String("2K"),
		ResponseFormat: volcengine.String(model.GenerateImagesResponseFormatURL),
		Watermark:      volcengine.Bool(false),
	}
	if len(refs) > 0 {
		images := make([]string, len(refs))
		for i, ref := range refs {
			images[i] = ref.DataURL
		}
		generateReq.Image = images
	}

	urls, err := s.generate(ctx, generateReq)
	if err != nil {
		return nil, fmt.Errorf("seedream image generation failed: %w", err)
	}
	if len(urls) == 0 {
		return nil, errors.New("seedream returned no image")
	}

	url, err := s.store.Download(ctx, urls[0], req.TitleID, req.IdeaID)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	return &orchestrator.ImageResult{ImageURL: url, UsedReferenceIDs: used}, nil
}
