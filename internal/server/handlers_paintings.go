package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/painting-generator/internal/cache"
	"github.com/jonathan/painting-generator/internal/orchestrator"
	"github.com/jonathan/painting-generator/internal/types"
)

const (
	unknownTitle           = "Unknown Title"
	noCustomInstructions   = "No custom instructions provided"
	generateFailedResponse = "Failed to generate paintings"
)

// GenerateRequest asks for quantity new paintings of a title. Zero uses the configured default.
type GenerateRequest struct {
	TitleID  string `json:"titleId"`
	Quantity int    `json:"quantity"`
}

// GenerateResponse is returned once every idea is stored; images continue in the background.
type GenerateResponse struct {
	Message string       `json:"message"`
	Ideas   []types.Idea `json:"ideas"`
	TitleID uuid.UUID    `json:"titleId"`
}

// PaintingsResponse lists a title's paintings with the reference payloads they used.
type PaintingsResponse struct {
	Paintings        []types.PaintingView `json:"paintings"`
	ReferenceDataMap map[uuid.UUID]string `json:"referenceDataMap"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	var req GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.serviceError(w, r, err)
		return
	}
	if req.TitleID == "" {
		s.errorResponse(w, http.StatusBadRequest, "Title ID is required")
		return
	}
	titleID, err := uuid.Parse(req.TitleID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid title ID")
		return
	}

	result, err := s.generator.StartGeneration(r.Context(), orchestrator.Request{
		TitleID:  titleID,
		UserID:   userID,
		Quantity: req.Quantity,
	})
	if err != nil {
		s.generateError(w, r, titleID, err)
		return
	}

	s.jsonResponse(w, http.StatusAccepted, GenerateResponse{
		Message: fmt.Sprintf("Generated %d painting ideas, image generation in progress", len(result.Ideas)),
		Ideas:   result.Ideas,
		TitleID: result.TitleID,
	})
}

func (s *Server) generateError(w http.ResponseWriter, r *http.Request, titleID uuid.UUID, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidQuantity):
		s.errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrTitleNotFound):
		s.errorResponse(w, http.StatusNotFound, "Title not found")
	case errors.Is(err, orchestrator.ErrJobActive):
		s.errorResponse(w, http.StatusConflict, "Generation already in progress for this title")
	default:
		s.logger.Error("generation failed",
			zap.String("title_id", titleID.String()),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, generateFailedResponse)
	}
}

// handleListPaintings joins paintings with their idea and title and attaches
// the payload of every reference image still present.
func (s *Server) handleListPaintings(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	titleID, err := pathID(r, "titleId")
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if _, err := s.ownedTitle(r.Context(), userID, titleID); err != nil {
		s.serviceError(w, r, err)
		return
	}

	details, err := s.store.ListPaintingDetails(r.Context(), titleID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	refIDs := usedReferenceIDs(details)
	refData := map[uuid.UUID]string{}
	if len(refIDs) > 0 {
		loaded, err := cache.Load(r.Context(), s.cache, refIDs, s.store.GetReferenceData)
		if err != nil {
			s.logger.Error("failed to load reference data",
				zap.String("title_id", titleID.String()), zap.Error(err))
		} else {
			refData = loaded
		}
	}

	views := make([]types.PaintingView, 0, len(details))
	for _, d := range details {
		views = append(views, paintingView(d, refData))
	}
	s.jsonResponse(w, http.StatusOK, PaintingsResponse{Paintings: views, ReferenceDataMap: refData})
}

// handleProgress reports the counters of a running job.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	titleID, err := pathID(r, "titleId")
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if _, err := s.ownedTitle(r.Context(), userID, titleID); err != nil {
		s.serviceError(w, r, err)
		return
	}

	counters, active := s.generator.Progress(titleID)
	counters.TitleID = titleID
	s.jsonResponse(w, http.StatusOK, map[string]any{"active": active, "progress": counters})
}

// usedReferenceIDs returns the distinct reference ids across paintings, in first-seen order.
func usedReferenceIDs(details []types.PaintingDetail) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, d := range details {
		for _, id := range d.UsedReferenceIDs {
			if _, ok := seen[id]; ok || id == uuid.Nil {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func paintingView(d types.PaintingDetail, refData map[uuid.UUID]string) types.PaintingView {
	present := make([]uuid.UUID, 0, len(d.UsedReferenceIDs))
	for _, id := range d.UsedReferenceIDs {
		if _, ok := refData[id]; ok {
			present = append(present, id)
		}
	}

	title := d.TitleText
	if title == "" {
		title = unknownTitle
	}
	instructions := d.Instructions
	if instructions == "" {
		instructions = noCustomInstructions
	}

	return types.PaintingView{
		PaintingDetail: d,
		PromptDetails: types.PromptDetails{
			Summary:         d.Summary,
			Title:           title,
			Instructions:    instructions,
			ReferenceCount:  len(present),
			ReferenceImages: present,
			FullPrompt:      d.FullPrompt,
		},
	}
}
