package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/painting-generator/internal/fetch"
	"github.com/jonathan/painting-generator/internal/imagegen"
	"github.com/jonathan/painting-generator/internal/types"
)

// CreateReferenceRequest uploads a reference image as a data URL.
type CreateReferenceRequest struct {
	TitleID   *uuid.UUID `json:"titleId"`
	ImageData string     `json:"imageData" validate:"required"`
	IsGlobal  bool       `json:"isGlobal"`
}

// ImportReferenceRequest fetches a reference image from a URL.
type ImportReferenceRequest struct {
	URL      string     `json:"url" validate:"required,url"`
	TitleID  *uuid.UUID `json:"titleId"`
	IsGlobal bool       `json:"isGlobal"`
}

// referenceScope resolves which title a new reference attaches to. Global references have none.
func (s *Server) referenceScope(ctx context.Context, userID uuid.UUID, titleID *uuid.UUID, global bool) (*uuid.UUID, error) {
	if global {
		return nil, nil
	}
	if titleID == nil || *titleID == uuid.Nil {
		return nil, &ErrValidation{Field: "titleId", Message: "required unless isGlobal is set"}
	}
	if _, err := s.ownedTitle(ctx, userID, *titleID); err != nil {
		return nil, err
	}
	return titleID, nil
}

func (s *Server) saveReference(w http.ResponseWriter, r *http.Request, ref *types.ReferenceImage) {
	if err := s.store.CreateReference(r.Context(), ref); err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, ref)
}

func (s *Server) handleCreateReference(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	var req CreateReferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.serviceError(w, r, err)
		return
	}
	req.ImageData = strings.TrimSpace(req.ImageData)
	if err := validateStruct(&req); err != nil {
		s.serviceError(w, r, err)
		return
	}
	if _, _, err := imagegen.ParseDataURL(req.ImageData); err != nil {
		s.serviceError(w, r, &ErrValidation{Field: "imageData", Message: "must be a base64 image data URL"})
		return
	}

	titleID, err := s.referenceScope(r.Context(), userID, req.TitleID, req.IsGlobal)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	s.saveReference(w, r, &types.ReferenceImage{
		UserID:    userID,
		TitleID:   titleID,
		ImageData: req.ImageData,
		IsGlobal:  req.IsGlobal,
	})
}

// handleImportReference stores the image at a URL, or the preview image of an HTML page.
func (s *Server) handleImportReference(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	var req ImportReferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.serviceError(w, r, err)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := validateStruct(&req); err != nil {
		s.serviceError(w, r, err)
		return
	}

	titleID, err := s.referenceScope(r.Context(), userID, req.TitleID, req.IsGlobal)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	img, err := s.fetchImage(r.Context(), req.URL)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			s.logger.Info("reference import failed", zap.String("url", req.URL), zap.Error(err))
			s.errorResponse(w, http.StatusBadRequest, "Failed to import image: "+fetchErr.Message)
			return
		}
		s.serviceError(w, r, err)
		return
	}

	s.saveReference(w, r, &types.ReferenceImage{
		UserID:    userID,
		TitleID:   titleID,
		ImageData: img.DataURL(),
		IsGlobal:  req.IsGlobal,
	})
}

func (s *Server) handleListTitleReferences(w http.ResponseWriter, r *http.Request) {
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

	refs, err := s.store.ListTitleReferences(r.Context(), titleID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, refs)
}

func (s *Server) handleListGlobalReferences(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	refs, err := s.store.ListGlobalReferences(r.Context(), userID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, refs)
}

func (s *Server) handleDeleteReference(w http.ResponseWriter, r *http.Request) {
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

	ref, err := s.store.GetReference(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if ref == nil || ref.UserID != userID {
		s.serviceError(w, r, &ErrNotFound{Resource: "Reference"})
		return
	}

	if err := s.store.DeleteReference(r.Context(), id); err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.invalidateReference(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// invalidateReference drops a cached payload, logging failures.
func (s *Server) invalidateReference(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("failed to invalidate cached reference",
			zap.String("reference_id", id.String()), zap.Error(err))
	}
}
