package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/painting-generator/internal/orchestrator"
	"github.com/jonathan/painting-generator/internal/types"
)

// scriptedClient returns its responses in order and records every prompt.
type scriptedClient struct {
	responses []string
	err       error
	prompts   []string
}

func (c *scriptedClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return c.GenerateJSON(ctx, prompt)
}

func (c *scriptedClient) GenerateJSON(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", errors.New("no scripted response left")
	}
	next := c.responses[0]
	c.responses = c.responses[1:]
	return next, nil
}

func (c *scriptedClient) Close() error { return nil }

func testTitle(instructions string) *types.Title {
	return &types.Title{ID: uuid.New(), UserID: uuid.New(), Title: "Harbor Lights", Instructions: instructions}
}

func TestIdeaGenerator_Success(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"summary":"  Boats at dawn ","fullPrompt":"Impressionist harbor at dawn"}`}}
	gen := NewIdeaGenerator(client, 2)

	idea, err := gen.GenerateIdea(context.Background(), orchestrator.IdeaRequest{
		Title: testTitle("warm palette"),
		PriorIdeas: []types.Idea{
			{Summary: "Lighthouse in fog"},
			{Summary: "Fish market at noon"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Boats at dawn", idea.Summary)
	assert.Equal(t, "Impressionist harbor at dawn", idea.FullPrompt)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "Series title: Harbor Lights")
	assert.Contains(t, prompt, "warm palette")
	assert.Contains(t, prompt, "- Lighthouse in fog\n- Fish market at noon")
}

func TestIdeaGenerator_RetriesInvalidOutput(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"summary":"missing prompt"}`,
		`{"summary":"Second try","fullPrompt":"A quiet pier"}`,
	}}
	gen := NewIdeaGenerator(client, 2)

	idea, err := gen.GenerateIdea(context.Background(), orchestrator.IdeaRequest{Title: testTitle("")})
	require.NoError(t, err)
	assert.Equal(t, "Second try", idea.Summary)
	assert.Len(t, client.prompts, 2)
}

func TestIdeaGenerator_GivesUpAfterMaxAttempts(t *testing.T) {
	client := &scriptedClient{responses: []string{`not json`, `{"summary":"","fullPrompt":"x"}`}}
	gen := NewIdeaGenerator(client, 2)

	_, err := gen.GenerateIdea(context.Background(), orchestrator.IdeaRequest{Title: testTitle("")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestIdeaGenerator_TransportErrorIsNotRetried(t *testing.T) {
	client := &scriptedClient{err: errors.New("quota exceeded")}
	gen := NewIdeaGenerator(client, 3)

	_, err := gen.GenerateIdea(context.Background(), orchestrator.IdeaRequest{Title: testTitle("")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Len(t, client.prompts, 1)
}

func TestIdeaGenerator_NilTitle(t *testing.T) {
	gen := NewIdeaGenerator(&scriptedClient{}, 1)
	_, err := gen.GenerateIdea(context.Background(), orchestrator.IdeaRequest{})
	assert.Error(t, err)
}

func TestBuildIdeaPrompt_Defaults(t *testing.T) {
	prompt, err := BuildIdeaPrompt(testTitle("   "), nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Artist instructions: (none)")
	assert.Contains(t, prompt, "(none yet)")
	assert.NotContains(t, prompt, "{{.")
}
