package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrTitleNotFound is returned when the title does not exist or belongs to another user.
	ErrTitleNotFound = errors.New("title not found")
	// ErrInvalidQuantity is returned for negative or oversized quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrJobActive is returned when a generation for the title is already running.
	ErrJobActive = errors.New("generation already in progress for title")
)

// Stage names the part of the pipeline an error came from.
type Stage string

const (
	StageContext Stage = "context"
	StageIdea    Stage = "idea"
	StageStorage Stage = "storage"
)

// StageError wraps a failure that aborted a generation.
type StageError struct {
	Stage Stage
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e.Stage == StageContext {
		return fmt.Sprintf("failed to load generation context: %v", e.Err)
	}
	return fmt.Sprintf("%s stage failed at idea %d: %v", e.Stage, e.Index+1, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
