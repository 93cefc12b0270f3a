package pipeline

import (
	"context"
	"time"

	"github.com/quorumworks/logbook/internal/domain"
)

// TextExtractor pulls raw text out of a stored file. Extraction failure is
// the only failure fatal to a pipeline run.
type TextExtractor interface {
	ExtractText(ctx context.Context, fileKey, mimeType string) (string, error)
}

// PIIScrubber redacts personally identifying information. Best-effort:
// on failure the raw text is substituted downstream.
type PIIScrubber interface {
	Scrub(ctx context.Context, text string) (string, error)
}

// Categorization is the categorizer's output for one document.
type Categorization struct {
	Links         []domain.CategoryLink
	Summary       string
	Confidence    float64 // in [0,1]
	ExtractedDate *time.Time
}

// Categorizer classifies a document against the category tree, producing
// the confidence score that drives the terminal-status decision. Category
// links are persisted by the collaborator, not the pipeline.
type Categorizer interface {
	Categorize(ctx context.Context, text, documentID string) (*Categorization, error)
}

// EmbeddingClient generates one vector per input text, same order,
// batching internally as needed.
type EmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexPayload is the document representation sent to full-text search.
// Content carries scrubbed text only, never raw text.
type IndexPayload struct {
	Title        string
	Content      string
	PrivacyLevel domain.PrivacyLevel
	DocType      string
	DocDate      *time.Time
	UploadedBy   string
	CreatedAt    time.Time
}

// SearchIndexer maintains the full-text index.
type SearchIndexer interface {
	IndexDocument(ctx context.Context, documentID string, payload IndexPayload) error
	RemoveDocument(ctx context.Context, documentID string) error
}

// EntityExtraction reports how many graph rows a run created.
type EntityExtraction struct {
	EntitiesCreated  int
	RelationsCreated int
}

// EntityExtractor discovers entities and relations in document text,
// deduplicating entities corpus-wide by (name, type).
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text, documentID string) (*EntityExtraction, error)
}

// DocumentRepository is the persistence surface the pipeline needs. Each
// stage's side effects are durably persisted before the next stage starts.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	MarkProcessing(ctx context.Context, id string) error
	SetExtractedText(ctx context.Context, id, text string) error
	SetScrubbedText(ctx context.Context, id, text string) error
	SetCategorization(ctx context.Context, id, summary string, confidence float64, docDate *time.Time) error
	Finalize(ctx context.Context, id string, status domain.ProcessingStatus, errMsg string, processedAt time.Time) error
}

// ChunkRepository stores embedded chunks. ReplaceChunks deletes all prior
// chunks for the document before inserting the new set.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// StageLogRepository records stage lifecycle entries.
type StageLogRepository interface {
	StartStage(ctx context.Context, documentID string, stage domain.Stage) error
	CompleteStage(ctx context.Context, documentID string, stage domain.Stage, errMsg string) error
}
