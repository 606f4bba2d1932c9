// Package imagegen implements the image providers: Gemini image models through
// google.golang.org/genai and Seedream through the Volcengine Ark runtime.
package imagegen

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/types"
)

// ErrInvalidDataURL is returned for payloads that are not base64 image data URLs.
var ErrInvalidDataURL = errors.New("invalid image data URL")

// ParseDataURL decodes a "data:image/<type>;base64,<payload>" string.
func ParseDataURL(s string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok || !strings.HasPrefix(mimeType, "image/") {
		return "", nil, ErrInvalidDataURL
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return "", nil, ErrInvalidDataURL
	}
	return mimeType, data, nil
}

// EncodeDataURL is the inverse of ParseDataURL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type reference struct {
	ID       uuid.UUID
	MIMEType string
	Data     []byte
	DataURL  string
}

// selectReferences keeps at most max decodable references in the given order
// and returns the ids of those kept. max <= 0 disables references.
func selectReferences(refs []types.ReferenceImage, max int) ([]reference, []uuid.UUID) {
	if max <= 0 {
		return nil, []uuid.UUID{}
	}

	out := make([]reference, 0, min(len(refs), max))
	used := make([]uuid.UUID, 0, min(len(refs), max))
	for _, ref := range refs {
		if len(out) == max {
			break
		}
		mimeType, data, err := ParseDataURL(ref.ImageData)
		if err != nil {
			continue
		}
		out = append(out, reference{ID: ref.ID, MIMEType: mimeType, Data: data, DataURL: ref.ImageData})
		used = append(used, ref.ID)
	}
	return out, used
}

// withReferenceHint appends a note about attached reference images to the prompt.
func withReferenceHint(prompt string, count int) string {
	if count == 0 {
		return prompt
	}
	return fmt.Sprintf("%s\n\nUse the %d attached reference image(s) as guidance for style, palette and composition.", prompt, count)
}
