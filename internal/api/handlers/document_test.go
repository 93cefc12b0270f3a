package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Status(ctx context.Context, documentID string) (*service.StatusOutput, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StatusOutput), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) Reprocess(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockDocumentService) Delete(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, documentID string) (string, error) {
	args := m.Called(ctx, documentID)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Process(ctx context.Context, documentID string) {
	m.Called(ctx, documentID)
}

func newTestDocument() *domain.Document {
	now := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:               "doc-123",
		UploadedBy:       "user-1",
		Title:            "Levy Notice",
		OriginalFilename: "levy.pdf",
		FileKey:          "uploads/doc-123/levy.pdf",
		FileSizeBytes:    1024,
		MimeType:         "application/pdf",
		PrivacyLevel:     domain.PrivacyShared,
		SourceChannel:    domain.SourceWebUpload,
		ProcessingStatus: domain.StatusPending,
		CreatedAt:        now,
	}
}

// withURLParam injects a chi route parameter into the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestDocumentHandler_Upload(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(input service.UploadInput) bool {
		return input.UploadedBy == "user-1" &&
			input.Filename == "levy.pdf" &&
			input.PrivacyLevel == domain.PrivacyShared
	})).Return(newTestDocument(), nil)

	body, contentType := multipartUpload(t, map[string]string{
		"uploaded_by": "user-1",
		"title":       "Levy Notice",
	}, "levy.pdf", []byte("%PDF-1.4"))

	r := httptest.NewRequest(http.MethodPost, "/documents", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Upload(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockSvc.AssertExpectations(t)

	var resp struct {
		Data DocumentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "doc-123", resp.Data.ID)
	assert.Equal(t, "pending", resp.Data.ProcessingStatus)
}

func TestDocumentHandler_Upload_MissingFile(t *testing.T) {
	mockSvc := new(MockDocumentService)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("uploaded_by", "user-1"))
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Upload(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestDocumentHandler_Upload_MissingUploadedBy(t *testing.T) {
	mockSvc := new(MockDocumentService)

	body, contentType := multipartUpload(t, nil, "levy.pdf", []byte("data"))
	r := httptest.NewRequest(http.MethodPost, "/documents", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Upload(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_Status(t *testing.T) {
	completedAt := time.Date(2024, 3, 16, 12, 5, 0, 0, time.UTC)
	mockSvc := new(MockDocumentService)
	mockSvc.On("Status", mock.Anything, "doc-123").Return(&service.StatusOutput{
		Document: newTestDocument(),
		Stages: []*domain.StageLogEntry{
			{
				Stage:       domain.StageExtraction,
				Status:      domain.StageStatusCompleted,
				StartedAt:   completedAt.Add(-time.Minute),
				CompletedAt: &completedAt,
			},
			{
				Stage:        domain.StagePIIScrub,
				Status:       domain.StageStatusFailed,
				ErrorMessage: "scrub service down",
				StartedAt:    completedAt,
			},
		},
		ChunkCount: 4,
	}, nil)

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-123/status", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Status(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.ChunkCount)
	require.Len(t, resp.Data.Stages, 2)
	assert.Equal(t, "extraction", resp.Data.Stages[0].Stage)
	assert.NotEmpty(t, resp.Data.Stages[0].CompletedAt)
	assert.Equal(t, "scrub service down", resp.Data.Stages[1].ErrorMessage)
	assert.Empty(t, resp.Data.Stages[1].CompletedAt)
}

func TestDocumentHandler_Status_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Status", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/missing/status", nil), "id", "missing")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Status(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("List", mock.Anything, service.ListDocumentsInput{
		Status: domain.StatusFlagged,
		Cursor: "abc",
		Limit:  5,
	}).Return(&service.ListDocumentsOutput{
		Items:   []*domain.Document{newTestDocument()},
		Cursor:  "next-cursor",
		HasMore: true,
	}, nil)

	r := httptest.NewRequest(http.MethodGet, "/documents?status=flagged_for_review&cursor=abc&limit=5", nil)
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).List(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data ListDocumentsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "next-cursor", resp.Data.Cursor)
	assert.True(t, resp.Data.HasMore)
}

func TestDocumentHandler_List_InvalidLimit(t *testing.T) {
	mockSvc := new(MockDocumentService)

	r := httptest.NewRequest(http.MethodGet, "/documents?limit=zero", nil)
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).List(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestDocumentHandler_Reprocess(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Reprocess", mock.Anything, "doc-123").Return(nil)

	r := withURLParam(httptest.NewRequest(http.MethodPost, "/documents/doc-123/reprocess", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Reprocess(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Reprocess_AlreadyProcessing(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Reprocess", mock.Anything, "doc-123").Return(domain.ErrAlreadyProcessing)

	r := withURLParam(httptest.NewRequest(http.MethodPost, "/documents/doc-123/reprocess", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Reprocess(w, r)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDocumentHandler_Delete(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Delete", mock.Anything, "doc-123").Return(nil)

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/documents/doc-123", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Delete(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Download(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("DownloadURL", mock.Anything, "doc-123").Return("https://storage.example/presigned", nil)

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-123/download", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Download(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "presigned")
}
