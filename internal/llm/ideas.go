package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/painting-generator/internal/orchestrator"
	"github.com/jonathan/painting-generator/internal/prompts"
	"github.com/jonathan/painting-generator/internal/schemas"
	"github.com/jonathan/painting-generator/internal/types"
)

const ideasPromptFile = "ideas.json"

// IdeaGenerator asks the text model for one new painting idea per call.
type IdeaGenerator struct {
	client      Client
	maxAttempts int
}

// NewIdeaGenerator wraps client. maxAttempts below 1 means a single attempt.
func NewIdeaGenerator(client Client, maxAttempts int) *IdeaGenerator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &IdeaGenerator{client: client, maxAttempts: maxAttempts}
}

type ideaResponse struct {
	Summary    string `json:"summary"`
	FullPrompt string `json:"fullPrompt"`
}

// GenerateIdea builds the prompt from the title and every prior idea, then
// validates the model output. Output that fails the schema is retried;
// transport errors are returned immediately.
func (g *IdeaGenerator) GenerateIdea(ctx context.Context, req orchestrator.IdeaRequest) (*orchestrator.GeneratedIdea, error) {
	if req.Title == nil {
		return nil, errors.New("idea request has no title")
	}

	prompt, err := BuildIdeaPrompt(req.Title, req.PriorIdeas)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		raw, err := g.client.GenerateJSON(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("idea generation failed: %w", err)
		}

		idea, err := parseIdea(raw)
		if err == nil {
			return idea, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("idea generation returned invalid output after %d attempts: %w", g.maxAttempts, lastErr)
}

// BuildIdeaPrompt renders the idea prompt. Prior ideas are listed in the order given.
func BuildIdeaPrompt(title *types.Title, prior []types.Idea) (string, error) {
	instructions := strings.TrimSpace(title.Instructions)
	if instructions == "" {
		instructions = prompts.MustGet(ideasPromptFile, "no-instructions")
	}

	list := prompts.MustGet(ideasPromptFile, "no-prior-ideas")
	if len(prior) > 0 {
		var sb strings.Builder
		for i, idea := range prior {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- ")
			sb.WriteString(idea.Summary)
		}
		list = sb.String()
	}

	return prompts.Render(ideasPromptFile, "generate-idea", map[string]string{
		"Title":        title.Title,
		"Instructions": instructions,
		"PriorIdeas":   list,
	})
}

func parseIdea(raw string) (*orchestrator.GeneratedIdea, error) {
	if err := schemas.Validate(schemas.Idea, raw); err != nil {
		return nil, err
	}

	var resp ideaResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse idea JSON: %w", err)
	}

	summary := strings.TrimSpace(resp.Summary)
	fullPrompt := strings.TrimSpace(resp.FullPrompt)
	if summary == "" || fullPrompt == "" {
		return nil, errors.New("idea has a blank summary or prompt")
	}
	return &orchestrator.GeneratedIdea{Summary: summary, FullPrompt: fullPrompt}, nil
}
