package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/telemetry"
	"github.com/quorumworks/logbook/internal/transcript"
)

// IngestService handles the non-upload ingestion channels: chat transcript
// imports and inbound email.
type IngestService struct {
	docRepo   DocumentRepositoryInterface
	storage   StorageClientInterface
	processor Processor
	uuidGen   UUIDGenerator
}

// NewIngestService creates a new IngestService instance
func NewIngestService(
	docRepo DocumentRepositoryInterface,
	storage StorageClientInterface,
	processor Processor,
) *IngestService {
	return &IngestService{
		docRepo:   docRepo,
		storage:   storage,
		processor: processor,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// WithUUIDGen replaces the UUID generator (for testing).
func (s *IngestService) WithUUIDGen(gen UUIDGenerator) *IngestService {
	s.uuidGen = gen
	return s
}

// ImportTranscriptInput represents the input for importing a chat export
type ImportTranscriptInput struct {
	UploadedBy   string
	Title        string
	PrivacyLevel domain.PrivacyLevel
	Content      string
}

// ImportTranscript parses a raw chat export, renders it into the normalized
// text form, and creates a pending document with the text pre-filled so the
// pipeline skips extraction.
func (s *IngestService) ImportTranscript(ctx context.Context, input ImportTranscriptInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.ImportTranscript", telemetry.SpanAttributes{
		Operation: "import_transcript",
	})
	defer span.End()

	if !domain.IsValidPrivacyLevel(input.PrivacyLevel) {
		return nil, domain.ErrInvalidPrivacyLevel
	}

	result := transcript.Parse(input.Content)
	if result.MessageCount == 0 {
		return nil, domain.ErrEmptyTranscript
	}

	title := input.Title
	if title == "" {
		title = fmt.Sprintf("Chat transcript (%s)", strings.Join(result.Participants, ", "))
	}

	var docDate *time.Time
	if !result.StartsAt.IsZero() {
		start := result.StartsAt
		docDate = &start
	}

	doc := &domain.Document{
		ID:               s.uuidGen.NewString(),
		UploadedBy:       input.UploadedBy,
		Title:            title,
		MimeType:         "text/plain",
		PrivacyLevel:     input.PrivacyLevel,
		DocDate:          docDate,
		SourceChannel:    domain.SourceTranscriptImport,
		ProcessingStatus: domain.StatusPending,
		ExtractedText:    transcript.Render(result),
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		span.SetError(err)
		return nil, err
	}

	go s.processor.Process(context.Background(), doc.ID)
	return doc, nil
}

// EmailAttachment is one file attached to an inbound email.
type EmailAttachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// IngestEmailInput represents one inbound email delivered by the webhook
type IngestEmailInput struct {
	From        string
	Subject     string
	BodyText    string
	Channel     domain.SourceChannel // email_shared or email_private
	UploadedBy  string               // resolved from the sender, may be empty
	Attachments []EmailAttachment
}

// IngestEmail turns an inbound email into documents: one per attachment,
// plus one for the body text when it carries more than a trivial note. The
// privacy level follows the receiving address.
func (s *IngestService) IngestEmail(ctx context.Context, input IngestEmailInput) ([]*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestEmail", telemetry.SpanAttributes{
		Operation: "ingest_email",
	})
	defer span.End()

	if input.Channel != domain.SourceEmailShared && input.Channel != domain.SourceEmailPrivate {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid email channel")
	}

	privacy := domain.PrivacyShared
	if input.Channel == domain.SourceEmailPrivate {
		privacy = domain.PrivacyPrivate
	}

	now := time.Now().UTC()
	var docs []*domain.Document

	for _, att := range input.Attachments {
		if att.Filename == "" || len(att.Content) == 0 {
			continue
		}

		id := s.uuidGen.NewString()
		fileKey := fmt.Sprintf("email/%s/%s", id, att.Filename)
		if err := s.storage.Upload(ctx, fileKey, att.MimeType, bytes.NewReader(att.Content), int64(len(att.Content))); err != nil {
			span.SetError(err)
			return docs, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store attachment", err)
		}

		doc := &domain.Document{
			ID:               id,
			UploadedBy:       input.UploadedBy,
			Title:            emailTitle(input.Subject, att.Filename),
			OriginalFilename: att.Filename,
			FileKey:          fileKey,
			FileSizeBytes:    int64(len(att.Content)),
			MimeType:         att.MimeType,
			PrivacyLevel:     privacy,
			SourceChannel:    input.Channel,
			ProcessingStatus: domain.StatusPending,
			CreatedAt:        now,
		}
		if err := s.docRepo.Create(ctx, doc); err != nil {
			span.SetError(err)
			return docs, err
		}
		docs = append(docs, doc)
	}

	// The body becomes its own document when it is substantial enough to
	// archive, with the text pre-filled so extraction is skipped.
	if body := strings.TrimSpace(input.BodyText); len(body) >= minEmailBodyLength {
		doc := &domain.Document{
			ID:               s.uuidGen.NewString(),
			UploadedBy:       input.UploadedBy,
			Title:            emailTitle(input.Subject, "Email message"),
			MimeType:         "text/plain",
			PrivacyLevel:     privacy,
			SourceChannel:    input.Channel,
			ProcessingStatus: domain.StatusPending,
			ExtractedText:    body,
			CreatedAt:        now,
		}
		if err := s.docRepo.Create(ctx, doc); err != nil {
			span.SetError(err)
			return docs, err
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "email carried no usable content")
	}

	for _, doc := range docs {
		id := doc.ID
		go s.processor.Process(context.Background(), id)
	}
	return docs, nil
}

// minEmailBodyLength filters out signature-only and "see attached" bodies.
const minEmailBodyLength = 40

func emailTitle(subject, fallback string) string {
	if s := strings.TrimSpace(subject); s != "" {
		return s
	}
	return fallback
}
