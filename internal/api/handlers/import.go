package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quorumworks/logbook/internal/api"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/service"
)

type IngestService interface {
	ImportTranscript(ctx context.Context, input service.ImportTranscriptInput) (*domain.Document, error)
	IngestEmail(ctx context.Context, input service.IngestEmailInput) ([]*domain.Document, error)
}

type ImportHandler struct {
	svc IngestService
}

func NewImportHandler(svc IngestService) *ImportHandler {
	return &ImportHandler{svc: svc}
}

type ImportTranscriptRequest struct {
	UploadedBy   string `json:"uploaded_by"`
	Title        string `json:"title"`
	PrivacyLevel string `json:"privacy_level"`
	Content      string `json:"content"`
}

// ImportTranscript accepts a raw chat export and creates a document with
// its text pre-filled.
func (h *ImportHandler) ImportTranscript(w http.ResponseWriter, r *http.Request) {
	var req ImportTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UploadedBy == "" {
		api.Error(w, http.StatusBadRequest, "uploaded_by is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	privacy := req.PrivacyLevel
	if privacy == "" {
		privacy = string(domain.PrivacyShared)
	}

	doc, err := h.svc.ImportTranscript(r.Context(), service.ImportTranscriptInput{
		UploadedBy:   req.UploadedBy,
		Title:        req.Title,
		PrivacyLevel: domain.PrivacyLevel(privacy),
		Content:      req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}
