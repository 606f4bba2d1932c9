package events

import (
	"fmt"

	"github.com/google/uuid"
)

// Handler receives each event case through its own method. Implementations
// must handle every case, so adding an event type breaks the build until
// all handlers are updated.
type Handler interface {
	Connected(Connected)
	GenerationStarted(GenerationStarted)
	IdeaProgress(IdeaProgress)
	IdeaCreated(IdeaCreated)
	IdeasComplete(IdeasComplete)
	ImageProcessingStarted(ImageProcessingStarted)
	ImageCompleted(ImageCompleted)
	ImageFailed(ImageFailed)
	GenerationComplete(GenerationComplete)
	GenerationError(GenerationError)
}

// Dispatch routes e to the matching Handler method.
func Dispatch(e Event, h Handler) error {
	switch ev := e.(type) {
	case Connected:
		h.Connected(ev)
	case GenerationStarted:
		h.GenerationStarted(ev)
	case IdeaProgress:
		h.IdeaProgress(ev)
	case IdeaCreated:
		h.IdeaCreated(ev)
	case IdeasComplete:
		h.IdeasComplete(ev)
	case ImageProcessingStarted:
		h.ImageProcessingStarted(ev)
	case ImageCompleted:
		h.ImageCompleted(ev)
	case ImageFailed:
		h.ImageFailed(ev)
	case GenerationComplete:
		h.GenerationComplete(ev)
	case GenerationError:
		h.GenerationError(ev)
	default:
		return fmt.Errorf("unhandled event %T", e)
	}
	return nil
}

// TitleOf returns the title an event belongs to. Connected has none.
func TitleOf(e Event) (uuid.UUID, bool) {
	switch ev := e.(type) {
	case GenerationStarted:
		return ev.TitleID, true
	case IdeaProgress:
		return ev.TitleID, true
	case IdeaCreated:
		return ev.TitleID, true
	case IdeasComplete:
		return ev.TitleID, true
	case ImageProcessingStarted:
		return ev.TitleID, true
	case ImageCompleted:
		return ev.TitleID, true
	case ImageFailed:
		return ev.TitleID, true
	case GenerationComplete:
		return ev.TitleID, true
	case GenerationError:
		return ev.TitleID, true
	}
	return uuid.Nil, false
}
