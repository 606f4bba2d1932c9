package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/types"
)

// TitleRequest is the body of title create and update calls.
type TitleRequest struct {
	Title        string `json:"title" validate:"required,max=255"`
	Instructions string `json:"instructions" validate:"max=10000"`
}

// ownedTitle loads a title and hides titles that belong to someone else.
func (s *Server) ownedTitle(ctx context.Context, userID, titleID uuid.UUID) (*types.Title, error) {
	title, err := s.store.GetTitle(ctx, titleID)
	if err != nil {
		return nil, err
	}
	if title == nil || title.UserID != userID {
		return nil, &ErrNotFound{Resource: "Title"}
	}
	return title, nil
}

func decodeTitleRequest(w http.ResponseWriter, r *http.Request) (*TitleRequest, error) {
	var req TitleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Instructions = strings.TrimSpace(req.Instructions)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Server) handleListTitles(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	titles, err := s.store.ListTitles(r.Context(), userID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, titles)
}

func (s *Server) handleCreateTitle(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	req, err := decodeTitleRequest(w, r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	title := &types.Title{UserID: userID, Title: req.Title, Instructions: req.Instructions}
	if err := s.store.CreateTitle(r.Context(), title); err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, title)
}

func (s *Server) handleGetTitle(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	title, err := s.ownedTitle(r.Context(), userID, id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, title)
}

func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	req, err := decodeTitleRequest(w, r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	title, err := s.ownedTitle(r.Context(), userID, id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	title.Title = req.Title
	title.Instructions = req.Instructions
	if err := s.store.UpdateTitle(r.Context(), title); err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, title)
}

// handleDeleteTitle removes the title with its ideas, paintings and title references.
func (s *Server) handleDeleteTitle(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	if _, err := s.ownedTitle(r.Context(), userID, id); err != nil {
		s.serviceError(w, r, err)
		return
	}
	if s.generator.Active(id) {
		s.serviceError(w, r, &ErrConflict{Message: "Generation in progress for this title"})
		return
	}

	refs, err := s.store.ListTitleReferences(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if err := s.store.DeleteTitle(r.Context(), id); err != nil {
		s.serviceError(w, r, err)
		return
	}
	for _, ref := range refs {
		s.invalidateReference(r.Context(), ref.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}
