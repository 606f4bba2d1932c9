// Package events defines the progress events published during painting generation.
//
// Event is a closed set: only the types declared here implement it. Each
// event is encoded as a single JSON object whose "type" field names the case.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Type discriminates the event cases on the wire.
type Type string

const (
	TypeConnected              Type = "connected"
	TypeGenerationStarted      Type = "generation_started"
	TypeIdeaProgress           Type = "idea_progress"
	TypeIdeaCreated            Type = "idea_created"
	TypeIdeasComplete          Type = "ideas_complete"
	TypeImageProcessingStarted Type = "image_processing_started"
	TypeImageCompleted         Type = "image_completed"
	TypeImageFailed            Type = "image_failed"
	TypeGenerationComplete     Type = "generation_complete"
	TypeGenerationError        Type = "generation_error"
)

// Event is implemented by every event case.
type Event interface {
	Type() Type
	sealed()
}

// Connected is sent to a subscriber as soon as it registers.
type Connected struct {
	Message string `json:"message"`
}

type GenerationStarted struct {
	TitleID  uuid.UUID `json:"titleId"`
	Quantity int       `json:"quantity"`
}

// IdeaProgress is published before each idea provider call. Current is 1-based.
type IdeaProgress struct {
	TitleID uuid.UUID `json:"titleId"`
	Current int       `json:"current"`
	Total   int       `json:"total"`
}

type IdeaCreated struct {
	TitleID   uuid.UUID `json:"titleId"`
	IdeaID    uuid.UUID `json:"ideaId"`
	IdeaIndex int       `json:"ideaIndex"`
	Summary   string    `json:"summary"`
}

type IdeasComplete struct {
	TitleID uuid.UUID `json:"titleId"`
}

type ImageProcessingStarted struct {
	TitleID   uuid.UUID `json:"titleId"`
	IdeaID    uuid.UUID `json:"ideaId"`
	IdeaIndex int       `json:"ideaIndex"`
}

type ImageCompleted struct {
	TitleID   uuid.UUID `json:"titleId"`
	IdeaID    uuid.UUID `json:"ideaId"`
	IdeaIndex int       `json:"ideaIndex"`
	ImageURL  string    `json:"imageUrl"`
}

type ImageFailed struct {
	TitleID   uuid.UUID `json:"titleId"`
	IdeaID    uuid.UUID `json:"ideaId"`
	IdeaIndex int       `json:"ideaIndex"`
	Error     string    `json:"error"`
}

type GenerationComplete struct {
	TitleID uuid.UUID `json:"titleId"`
}

type GenerationError struct {
	TitleID uuid.UUID `json:"titleId"`
	Error   string    `json:"error"`
}

func (Connected) Type() Type              { return TypeConnected }
func (GenerationStarted) Type() Type      { return TypeGenerationStarted }
func (IdeaProgress) Type() Type           { return TypeIdeaProgress }
func (IdeaCreated) Type() Type            { return TypeIdeaCreated }
func (IdeasComplete) Type() Type          { return TypeIdeasComplete }
func (ImageProcessingStarted) Type() Type { return TypeImageProcessingStarted }
func (ImageCompleted) Type() Type         { return TypeImageCompleted }
func (ImageFailed) Type() Type            { return TypeImageFailed }
func (GenerationComplete) Type() Type     { return TypeGenerationComplete }
func (GenerationError) Type() Type        { return TypeGenerationError }

func (Connected) sealed()              {}
func (GenerationStarted) sealed()      {}
func (IdeaProgress) sealed()           {}
func (IdeaCreated) sealed()            {}
func (IdeasComplete) sealed()          {}
func (ImageProcessingStarted) sealed() {}
func (ImageCompleted) sealed()         {}
func (ImageFailed) sealed()            {}
func (GenerationComplete) sealed()     {}
func (GenerationError) sealed()        {}

// Marshal encodes e as a JSON object with a leading "type" field.
func Marshal(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type(), err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typ, _ := json.Marshal(e.Type())
	buf.Write(typ)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Unmarshal decodes a JSON object produced by Marshal.
func Unmarshal(data []byte) (Event, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch head.Type {
	case TypeConnected:
		e, err = decode[Connected](data)
	case TypeGenerationStarted:
		e, err = decode[GenerationStarted](data)
	case TypeIdeaProgress:
		e, err = decode[IdeaProgress](data)
	case TypeIdeaCreated:
		e, err = decode[IdeaCreated](data)
	case TypeIdeasComplete:
		e, err = decode[IdeasComplete](data)
	case TypeImageProcessingStarted:
		e, err = decode[ImageProcessingStarted](data)
	case TypeImageCompleted:
		e, err = decode[ImageCompleted](data)
	case TypeImageFailed:
		e, err = decode[ImageFailed](data)
	case TypeGenerationComplete:
		e, err = decode[GenerationComplete](data)
	case TypeGenerationError:
		e, err = decode[GenerationError](data)
	default:
		return nil, &UnknownTypeError{Type: head.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", head.Type, err)
	}
	return e, nil
}

func decode[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// UnknownTypeError is returned when an event carries an unrecognized type.
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}
