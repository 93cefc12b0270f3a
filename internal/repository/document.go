package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/pagination"
	"github.com/quorumworks/logbook/internal/service"
)

const documentColumns = `id, uploaded_by, title, original_filename, file_key, file_size_bytes, mime_type,
	 privacy_level, doc_type, doc_date, source_channel, processing_status, processing_error,
	 extracted_text, scrubbed_text, ai_summary, ai_confidence, created_at, processed_at`

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(id, uploaded_by, title, original_filename, file_key, file_size_bytes, mime_type,
			 privacy_level, doc_type, doc_date, source_channel, processing_status, processing_error,
			 extracted_text, scrubbed_text, ai_summary, ai_confidence, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		d.ID, d.UploadedBy, d.Title, d.OriginalFilename, nullableString(d.FileKey), d.FileSizeBytes, d.MimeType,
		d.PrivacyLevel, nullableString(d.DocType), d.DocDate, d.SourceChannel, d.ProcessingStatus, nullableString(d.ProcessingError),
		nullableString(d.ExtractedText), nullableString(d.ScrubbedText), nullableString(d.AISummary), d.AIConfidence, d.CreatedAt, d.ProcessedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	)
	return scanDocument(row)
}

// MarkProcessing transitions the document into the processing state and
// clears any error left over from a previous run.
func (r *DocumentRepository) MarkProcessing(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET processing_status = $1, processing_error = NULL WHERE id = $2`,
		domain.StatusProcessing, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) SetExtractedText(ctx context.Context, id, text string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET extracted_text = $1 WHERE id = $2`,
		text, id,
	)
	return err
}

func (r *DocumentRepository) SetScrubbedText(ctx context.Context, id, text string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET scrubbed_text = $1 WHERE id = $2`,
		text, id,
	)
	return err
}

func (r *DocumentRepository) SetCategorization(ctx context.Context, id, summary string, confidence float64, docDate *time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET ai_summary = $1, ai_confidence = $2, doc_date = $3 WHERE id = $4`,
		nullableString(summary), confidence, docDate, id,
	)
	return err
}

// Finalize writes the terminal status, the aggregated error message, and
// the processing timestamp in one statement.
func (r *DocumentRepository) Finalize(ctx context.Context, id string, status domain.ProcessingStatus, errMsg string, processedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET processing_status = $1, processing_error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	return err
}

// ResetForReprocess clears derived fields and returns the document to
// pending. Extracted text survives only for documents without a stored
// file, where there is nothing to re-extract from.
func (r *DocumentRepository) ResetForReprocess(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET
			processing_status = $1,
			processing_error = NULL,
			scrubbed_text = NULL,
			ai_summary = NULL,
			ai_confidence = NULL,
			processed_at = NULL,
			extracted_text = CASE WHEN file_key IS NULL THEN extracted_text ELSE NULL END
		 WHERE id = $2`,
		domain.StatusPending, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListPending returns pending documents created before the given time,
// oldest first. Used by the background sweeper to pick up stuck uploads.
func (r *DocumentRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE processing_status = $1 AND created_at < $2
		 ORDER BY created_at ASC
		 LIMIT $3`,
		domain.StatusPending, olderThan, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (r *DocumentRepository) ListWithCursor(ctx context.Context, status domain.ProcessingStatus, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	switch {
	case cursor != nil && status != "":
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE processing_status = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			status, cursor.Timestamp, cursor.LastID, limit+1,
		)
	case cursor != nil:
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	case status != "":
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE processing_status = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			status, limit+1,
		)
	default:
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	nextCursor := ""
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var fileKey, docType, procErr, extracted, scrubbed, summary *string
	err := row.Scan(
		&d.ID, &d.UploadedBy, &d.Title, &d.OriginalFilename, &fileKey, &d.FileSizeBytes, &d.MimeType,
		&d.PrivacyLevel, &docType, &d.DocDate, &d.SourceChannel, &d.ProcessingStatus, &procErr,
		&extracted, &scrubbed, &summary, &d.AIConfidence, &d.CreatedAt, &d.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if fileKey != nil {
		d.FileKey = *fileKey
	}
	if docType != nil {
		d.DocType = *docType
	}
	if procErr != nil {
		d.ProcessingError = *procErr
	}
	if extracted != nil {
		d.ExtractedText = *extracted
	}
	if scrubbed != nil {
		d.ScrubbedText = *scrubbed
	}
	if summary != nil {
		d.AISummary = *summary
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
