package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/pagination"
	"github.com/quorumworks/logbook/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ResetForReprocess(ctx context.Context, id string) error
	ListWithCursor(ctx context.Context, status domain.ProcessingStatus, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Delete(ctx context.Context, id string) error
}

// ChunkRepositoryInterface defines the chunk operations the services need
type ChunkRepositoryInterface interface {
	CountByDocument(ctx context.Context, documentID string) (int, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// StageLogReaderInterface exposes the per-document stage history
type StageLogReaderInterface interface {
	ListByDocument(ctx context.Context, documentID string) ([]*domain.StageLogEntry, error)
}

// StorageClientInterface defines the object storage operations for uploads
type StorageClientInterface interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	DeleteObject(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// IndexRemoverInterface removes a document from the full-text index
type IndexRemoverInterface interface {
	RemoveDocument(ctx context.Context, documentID string) error
}

// Processor runs the processing pipeline for one document
type Processor interface {
	Process(ctx context.Context, documentID string)
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService handles business logic for document lifecycle: upload,
// status, listing, reprocessing, and deletion.
type DocumentService struct {
	docRepo   DocumentRepositoryInterface
	chunkRepo ChunkRepositoryInterface
	stageLog  StageLogReaderInterface
	storage   StorageClientInterface
	index     IndexRemoverInterface
	processor Processor
	txRunner  TxRunner
	uuidGen   UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	chunkRepo ChunkRepositoryInterface,
	stageLog StageLogReaderInterface,
	storage StorageClientInterface,
	index IndexRemoverInterface,
	processor Processor,
	txRunner TxRunner,
) *DocumentService {
	return &DocumentService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		stageLog:  stageLog,
		storage:   storage,
		index:     index,
		processor: processor,
		txRunner:  txRunner,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// WithUUIDGen replaces the UUID generator (for testing).
func (s *DocumentService) WithUUIDGen(gen UUIDGenerator) *DocumentService {
	s.uuidGen = gen
	return s
}

// UploadInput represents the input for uploading a new document
type UploadInput struct {
	UploadedBy   string
	Title        string
	Filename     string
	MimeType     string
	SizeBytes    int64
	PrivacyLevel domain.PrivacyLevel
	Body         io.Reader
}

// Upload stores the file, creates the document row in pending state, and
// kicks off processing in the background.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		Operation: "upload",
	})
	defer span.End()

	if input.Filename == "" || input.UploadedBy == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if !domain.IsValidPrivacyLevel(input.PrivacyLevel) {
		return nil, domain.ErrInvalidPrivacyLevel
	}

	id := s.uuidGen.NewString()
	fileKey := fmt.Sprintf("uploads/%s/%s", id, input.Filename)

	if err := s.storage.Upload(ctx, fileKey, input.MimeType, input.Body, input.SizeBytes); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store upload", err)
	}

	doc := &domain.Document{
		ID:               id,
		UploadedBy:       input.UploadedBy,
		Title:            input.Title,
		OriginalFilename: input.Filename,
		FileKey:          fileKey,
		FileSizeBytes:    input.SizeBytes,
		MimeType:         input.MimeType,
		PrivacyLevel:     input.PrivacyLevel,
		SourceChannel:    domain.SourceWebUpload,
		ProcessingStatus: domain.StatusPending,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		// Best-effort cleanup of the orphaned object.
		if delErr := s.storage.DeleteObject(ctx, fileKey); delErr != nil {
			log.Printf("document: failed to clean up object %s after create failure: %v", fileKey, delErr)
		}
		span.SetError(err)
		return nil, err
	}

	s.triggerProcessing(doc.ID)
	return doc, nil
}

// StatusOutput is a document together with its stage history.
type StatusOutput struct {
	Document   *domain.Document
	Stages     []*domain.StageLogEntry
	ChunkCount int
}

// Status returns the document, its full stage history including earlier
// attempts, and the current chunk count.
func (s *DocumentService) Status(ctx context.Context, documentID string) (*StatusOutput, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	stages, err := s.stageLog.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	count, err := s.chunkRepo.CountByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return &StatusOutput{Document: doc, Stages: stages, ChunkCount: count}, nil
}

type ListDocumentsInput struct {
	Status domain.ProcessingStatus
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// List returns documents newest first with cursor pagination, optionally
// filtered by processing status.
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	if input.Status != "" && !domain.IsValidProcessingStatus(input.Status) {
		return nil, domain.ErrInvalidProcessingState
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}

	page, err := s.docRepo.ListWithCursor(ctx, input.Status, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   page.Items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	}, nil
}

// Reprocess resets a document's derived state and runs the pipeline again.
// Prior chunks and stage-log rows are cleared inside the same transaction
// as the reset so the new run starts from a clean slate.
func (s *DocumentService) Reprocess(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Reprocess", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "reprocess",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.ProcessingStatus == domain.StatusProcessing {
		return domain.ErrAlreadyProcessing
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().ResetForReprocess(ctx, documentID); err != nil {
			return err
		}
		if err := repos.Chunks().DeleteByDocument(ctx, documentID); err != nil {
			return err
		}
		return repos.StageLogs().DeleteByDocument(ctx, documentID)
	})
	if err != nil {
		span.SetError(err)
		return err
	}

	s.triggerProcessing(documentID)
	return nil
}

// Delete removes the document row and its stored artifacts. The search
// index entry and the stored file are cleaned up best-effort; database rows
// cascade from the document row.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.index.RemoveDocument(ctx, documentID); err != nil {
		log.Printf("document: failed to remove %s from search index: %v", documentID, err)
	}
	if doc.FileKey != "" {
		if err := s.storage.DeleteObject(ctx, doc.FileKey); err != nil {
			log.Printf("document: failed to delete object %s: %v", doc.FileKey, err)
		}
	}

	return s.docRepo.Delete(ctx, documentID)
}

// DownloadURL returns a presigned URL for the stored file.
func (s *DocumentService) DownloadURL(ctx context.Context, documentID string) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.FileKey == "" {
		return "", domain.NewDomainError(domain.ErrCodeInvalidOperation, "document has no stored file")
	}
	return s.storage.GenerateDownloadURL(ctx, doc.FileKey)
}

// Process runs the pipeline synchronously for one document. Exposed for
// the CLI and the background sweeper.
func (s *DocumentService) Process(ctx context.Context, documentID string) {
	s.processor.Process(ctx, documentID)
}

// triggerProcessing runs the pipeline in the background. The pipeline owns
// its error reporting through the document row, so nothing propagates here.
func (s *DocumentService) triggerProcessing(documentID string) {
	go s.processor.Process(context.Background(), documentID)
}
