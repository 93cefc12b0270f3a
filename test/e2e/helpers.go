//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quorumworks/logbook/internal/api/handlers"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/extract"
	"github.com/quorumworks/logbook/internal/pipeline"
	"github.com/quorumworks/logbook/internal/repository"
	"github.com/quorumworks/logbook/internal/search"
	"github.com/quorumworks/logbook/internal/server"
	"github.com/quorumworks/logbook/internal/service"
	"github.com/quorumworks/logbook/internal/storage"
	"github.com/quorumworks/logbook/internal/testutil"
)

const webhookSecret = "e2e-webhook-secret"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Index        *memoryIndex
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and an
// in-process server. AI capabilities are replaced by deterministic fakes so
// the pipeline runs end to end without external providers.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	index := newMemoryIndex()
	serverURL, serverCloser := startServer(t, pool, s3Client, index, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		Index:        index,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, nil)
}

// Post performs a POST request with a JSON body
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body, nil)
}

// PostWithHeaders performs a POST request with extra headers
func (e *E2ETestEnv) PostWithHeaders(path string, body interface{}, headers map[string]string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, headers)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, headers map[string]string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if len(respBody) == 0 {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// UploadDocument uploads a file through the multipart endpoint and returns
// the created document's ID.
func (e *E2ETestEnv) UploadDocument(filename, contentType string, content []byte, fields map[string]string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", err
		}
	}

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/documents", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("upload failed with HTTP %d: %s", resp.StatusCode, respBody)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", err
	}

	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(apiResp.Data, &doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// StatusOutput mirrors the status endpoint payload.
type StatusOutput struct {
	Document struct {
		ID               string   `json:"id"`
		Title            string   `json:"title"`
		PrivacyLevel     string   `json:"privacy_level"`
		SourceChannel    string   `json:"source_channel"`
		ProcessingStatus string   `json:"processing_status"`
		ProcessingError  string   `json:"processing_error"`
		AISummary        string   `json:"ai_summary"`
		AIConfidence     *float64 `json:"ai_confidence"`
	} `json:"document"`
	Stages []struct {
		Stage        string `json:"stage"`
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	} `json:"stages"`
	ChunkCount int `json:"chunk_count"`
}

// GetStatus fetches a document's status payload.
func (e *E2ETestEnv) GetStatus(documentID string) (*StatusOutput, error) {
	resp, err := e.Get("/documents/" + documentID + "/status")
	if err != nil {
		return nil, err
	}
	var out StatusOutput
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForTerminalStatus polls until the document leaves pending/processing.
func (e *E2ETestEnv) WaitForTerminalStatus(documentID string, timeout time.Duration) *StatusOutput {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		out, err := e.GetStatus(documentID)
		if err == nil {
			switch out.Document.ProcessingStatus {
			case string(domain.StatusPending), string(domain.StatusProcessing):
			default:
				return out
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document %s did not reach a terminal status within %v", documentID, timeout)
	return nil
}

// fakeScrubber replaces anything that looks like an email address handle
// with a redaction marker. Deterministic stand-in for the LLM scrubber.
type fakeScrubber struct{}

func (s *fakeScrubber) Scrub(ctx context.Context, text string) (string, error) {
	out := text
	for _, word := range strings.Fields(text) {
		if strings.Contains(word, "@") {
			out = strings.ReplaceAll(out, word, "[REDACTED]")
		}
	}
	return out, nil
}

// fakeCategorizer derives confidence from the text itself so individual
// tests can steer the terminal-status decision.
type fakeCategorizer struct{}

func (c *fakeCategorizer) Categorize(ctx context.Context, text, documentID string) (*pipeline.Categorization, error) {
	confidence := 0.95
	if strings.Contains(text, "UNCLEAR") {
		confidence = 0.3
	}
	return &pipeline.Categorization{
		Summary:    "Test summary of the document.",
		Confidence: confidence,
	}, nil
}

// fakeEmbedder returns fixed-dimension deterministic vectors.
type fakeEmbedder struct{}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 1536)
		for j := range vec {
			vec[j] = float32((len(text)+i+j)%100) / 100
		}
		out[i] = vec
	}
	return out, nil
}

// fakeEntityExtractor reports no entities. The entity path has dedicated
// unit and integration coverage.
type fakeEntityExtractor struct{}

func (f *fakeEntityExtractor) ExtractEntities(ctx context.Context, text, documentID string) (*pipeline.EntityExtraction, error) {
	return &pipeline.EntityExtraction{}, nil
}

// memoryIndex is an in-memory search index implementing both the pipeline
// indexer and the search service.
type memoryIndex struct {
	mu   sync.Mutex
	docs map[string]pipeline.IndexPayload
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{docs: make(map[string]pipeline.IndexPayload)}
}

func (m *memoryIndex) IndexDocument(ctx context.Context, documentID string, payload pipeline.IndexPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[documentID] = payload
	return nil
}

func (m *memoryIndex) RemoveDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, documentID)
	return nil
}

func (m *memoryIndex) Search(ctx context.Context, input search.SearchInput) (*search.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[domain.PrivacyLevel]bool)
	for _, p := range input.PrivacyLevels {
		allowed[p] = true
	}

	var hits []search.Hit
	query := strings.ToLower(input.Query)
	for id, doc := range m.docs {
		if !allowed[doc.PrivacyLevel] {
			continue
		}
		if !strings.Contains(strings.ToLower(doc.Content), query) &&
			!strings.Contains(strings.ToLower(doc.Title), query) {
			continue
		}
		hits = append(hits, search.Hit{
			ID:           id,
			Title:        doc.Title,
			Snippet:      doc.Content,
			PrivacyLevel: string(doc.PrivacyLevel),
			UploadedBy:   doc.UploadedBy,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })

	return &search.SearchResult{Hits: hits, EstimatedTotalHits: int64(len(hits))}, nil
}

// startServer starts the HTTP server with all handlers and the real
// pipeline wired over fake AI capabilities.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, index *memoryIndex, port int) (string, func()) {
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	stageLogRepo := repository.NewStageLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	pipe := pipeline.New(pipeline.Deps{
		Documents:   docRepo,
		Chunks:      chunkRepo,
		StageLog:    stageLogRepo,
		Extractor:   extract.NewClient(s3Client, "", ""),
		Scrubber:    &fakeScrubber{},
		Categorizer: &fakeCategorizer{},
		Embedder:    &fakeEmbedder{},
		Indexer:     index,
		Entities:    &fakeEntityExtractor{},
	})

	documentSvc := service.NewDocumentService(docRepo, chunkRepo, stageLogRepo, s3Client, index, pipe, txRunner)
	ingestSvc := service.NewIngestService(docRepo, s3Client, pipe)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		ImportHandler:   handlers.NewImportHandler(ingestSvc),
		WebhookHandler:  handlers.NewWebhookHandler(ingestSvc),
		SearchHandler:   handlers.NewSearchHandler(index),
		WebhookSecret:   webhookSecret,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
