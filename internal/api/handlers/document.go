package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quorumworks/logbook/internal/api"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/service"
)

// maxUploadMemory caps the in-memory portion of multipart parsing.
const maxUploadMemory = 10 << 20

type DocumentService interface {
	Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error)
	Status(ctx context.Context, documentID string) (*service.StatusOutput, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	Reprocess(ctx context.Context, documentID string) error
	Delete(ctx context.Context, documentID string) error
	DownloadURL(ctx context.Context, documentID string) (string, error)
	Process(ctx context.Context, documentID string)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID               string   `json:"id"`
	UploadedBy       string   `json:"uploaded_by,omitempty"`
	Title            string   `json:"title"`
	OriginalFilename string   `json:"original_filename,omitempty"`
	FileSizeBytes    int64    `json:"file_size_bytes,omitempty"`
	MimeType         string   `json:"mime_type,omitempty"`
	PrivacyLevel     string   `json:"privacy_level"`
	DocType          string   `json:"doc_type,omitempty"`
	DocDate          string   `json:"doc_date,omitempty"`
	SourceChannel    string   `json:"source_channel"`
	ProcessingStatus string   `json:"processing_status"`
	ProcessingError  string   `json:"processing_error,omitempty"`
	AISummary        string   `json:"ai_summary,omitempty"`
	AIConfidence     *float64 `json:"ai_confidence,omitempty"`
	CreatedAt        string   `json:"created_at"`
	ProcessedAt      string   `json:"processed_at,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:               d.ID,
		UploadedBy:       d.UploadedBy,
		Title:            d.Title,
		OriginalFilename: d.OriginalFilename,
		FileSizeBytes:    d.FileSizeBytes,
		MimeType:         d.MimeType,
		PrivacyLevel:     string(d.PrivacyLevel),
		DocType:          d.DocType,
		SourceChannel:    string(d.SourceChannel),
		ProcessingStatus: string(d.ProcessingStatus),
		ProcessingError:  d.ProcessingError,
		AISummary:        d.AISummary,
		AIConfidence:     d.AIConfidence,
		CreatedAt:        d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.DocDate != nil {
		resp.DocDate = d.DocDate.Format("2006-01-02")
	}
	if d.ProcessedAt != nil {
		resp.ProcessedAt = d.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type StageResponse struct {
	Stage        string `json:"stage"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    string `json:"started_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

type StatusResponse struct {
	Document   *DocumentResponse `json:"document"`
	Stages     []StageResponse   `json:"stages"`
	ChunkCount int               `json:"chunk_count"`
}

// Upload accepts a multipart form with a "file" part plus metadata fields.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	uploadedBy := r.FormValue("uploaded_by")
	if uploadedBy == "" {
		api.Error(w, http.StatusBadRequest, "uploaded_by is required")
		return
	}

	privacy := r.FormValue("privacy_level")
	if privacy == "" {
		privacy = string(domain.PrivacyShared)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	doc, err := h.svc.Upload(r.Context(), service.UploadInput{
		UploadedBy:   uploadedBy,
		Title:        r.FormValue("title"),
		Filename:     header.Filename,
		MimeType:     mimeType,
		SizeBytes:    header.Size,
		PrivacyLevel: domain.PrivacyLevel(privacy),
		Body:         file,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	out, err := h.svc.Status(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := StatusResponse{
		Document:   documentToResponse(out.Document),
		Stages:     make([]StageResponse, 0, len(out.Stages)),
		ChunkCount: out.ChunkCount,
	}
	for _, entry := range out.Stages {
		stage := StageResponse{
			Stage:        string(entry.Stage),
			Status:       string(entry.Status),
			ErrorMessage: entry.ErrorMessage,
			StartedAt:    entry.StartedAt.UTC().Format(time.RFC3339),
		}
		if entry.CompletedAt != nil {
			stage.CompletedAt = entry.CompletedAt.UTC().Format(time.RFC3339)
		}
		resp.Stages = append(resp.Stages, stage)
	}

	api.Success(w, http.StatusOK, resp)
}

type ListDocumentsResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.svc.List(r.Context(), service.ListDocumentsInput{
		Status: domain.ProcessingStatus(r.URL.Query().Get("status")),
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ListDocumentsResponse{
		Items:   make([]*DocumentResponse, 0, len(out.Items)),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	}
	for _, doc := range out.Items {
		resp.Items = append(resp.Items, documentToResponse(doc))
	}

	api.Success(w, http.StatusOK, resp)
}

// Process triggers a pipeline run for a document already in pending state.
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	go h.svc.Process(context.Background(), id)

	api.Success(w, http.StatusAccepted, map[string]string{"id": id, "status": "processing"})
}

func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Reprocess(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{"id": id, "status": "processing"})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.svc.DownloadURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"url": url})
}
