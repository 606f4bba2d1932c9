package imagegen

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/jonathan/painting-generator/internal/orchestrator"
)

// DefaultGeminiModel is used when no image model is configured.
const DefaultGeminiModel = "gemini-2.5-flash-image"

// contentGenerator is the part of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates images with a Gemini image model, passing references inline.
type Gemini struct {
	models        contentGenerator
	model         string
	maxReferences int
	store         Store
}

// NewGemini creates a provider backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string, maxReferences int, store Store) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGemini(client.Models, model, maxReferences, store), nil
}

func newGemini(models contentGenerator, model string, maxReferences int, store Store) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{models: models, model: model, maxReferences: maxReferences, store: store}
}

// GenerateImage implements orchestrator.ImageProvider.
func (g *Gemini) GenerateImage(ctx context.Context, req orchestrator.ImageRequest) (*orchestrator.ImageResult, error) {
	refs, used := selectReferences(req.References, g.maxReferences)

	parts := []*genai.Part{genai.NewPartFromText(withReferenceHint(req.Prompt, len(refs)))}
	for _, ref := range refs {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini image generation failed: %w", err)
	}

	blob, err := firstImage(resp)
	if err != nil {
		return nil, err
	}

	url, err := g.store.Save(ctx, req.TitleID, req.IdeaID, blob.Data, blob.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	return &orchestrator.ImageResult{ImageURL: url, UsedReferenceIDs: used}, nil
}

func firstImage(resp *genai.GenerateContentResponse) (*genai.Blob, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData, nil
			}
		}
	}
	return nil, fmt.Errorf("gemini returned no image (finish reason: %v)", resp.Candidates[0].FinishReason)
}
