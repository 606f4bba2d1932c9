// Package types provides the domain records shared by the repository, orchestrator and HTTP layers.
package types

import (
	"time"

	"github.com/google/uuid"
)

// PaintingStatus is the persisted lifecycle state of a painting.
type PaintingStatus string

const (
	PaintingPending   PaintingStatus = "pending"
	PaintingCompleted PaintingStatus = "completed"
	PaintingFailed    PaintingStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s PaintingStatus) Terminal() bool {
	return s == PaintingCompleted || s == PaintingFailed
}

// Title is a user-defined creative subject that anchors generation jobs.
type Title struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
}

// Idea is the text concept and full generation prompt behind one painting.
type Idea struct {
	ID         uuid.UUID `json:"id"`
	TitleID    uuid.UUID `json:"title_id"`
	Summary    string    `json:"summary"`
	FullPrompt string    `json:"full_prompt"`
	CreatedAt  time.Time `json:"created_at"`
}

// Painting tracks one idea's image generation attempt and outcome.
type Painting struct {
	ID               uuid.UUID      `json:"id"`
	TitleID          uuid.UUID      `json:"title_id"`
	IdeaID           uuid.UUID      `json:"idea_id"`
	Status           PaintingStatus `json:"status"`
	ImageURL         string         `json:"image_url,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	UsedReferenceIDs []uuid.UUID    `json:"used_reference_ids"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ReferenceImage is a user-supplied image passed to the image provider as context.
// ImageData holds a data URL (data:image/png;base64,...).
type ReferenceImage struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	TitleID   *uuid.UUID `json:"title_id,omitempty"`
	ImageData string     `json:"image_data"`
	IsGlobal  bool       `json:"is_global"`
	CreatedAt time.Time  `json:"created_at"`
}

// PaintingDetail is a painting joined with its idea and title.
type PaintingDetail struct {
	Painting
	Summary      string `json:"summary"`
	FullPrompt   string `json:"-"`
	TitleText    string `json:"-"`
	Instructions string `json:"-"`
}

// PromptDetails describes how a painting's prompt was assembled.
type PromptDetails struct {
	Summary         string      `json:"summary"`
	Title           string      `json:"title"`
	Instructions    string      `json:"instructions"`
	ReferenceCount  int         `json:"referenceCount"`
	ReferenceImages []uuid.UUID `json:"referenceImages"`
	FullPrompt      string      `json:"fullPrompt"`
}

// PaintingView is the API representation of a painting.
type PaintingView struct {
	PaintingDetail
	PromptDetails PromptDetails `json:"promptDetails"`
}
