// Package pipeline drives the document processing pipeline: extraction,
// PII scrubbing, categorization, chunking+embedding, search indexing, and
// entity extraction, in strict sequence, with per-stage logging and
// failure isolation.
package pipeline

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/segment"
	"github.com/quorumworks/logbook/internal/telemetry"
)

// Deps holds the injected capabilities and repositories. Each capability is
// a constructed dependency with its own lifecycle, never a process-wide
// singleton.
type Deps struct {
	Documents DocumentRepository
	Chunks    ChunkRepository
	StageLog  StageLogRepository

	Extractor   TextExtractor
	Scrubber    PIIScrubber
	Categorizer Categorizer
	Embedder    EmbeddingClient
	Indexer     SearchIndexer
	Entities    EntityExtractor

	// SegmentOptions defaults to segment.DefaultOptions when zero.
	SegmentOptions segment.Options
}

// Pipeline is the orchestrator. One Process invocation owns its document
// row exclusively; concurrent invocations for different documents share no
// mutable state.
type Pipeline struct {
	docs        DocumentRepository
	chunks      ChunkRepository
	stageLog    StageLogRepository
	extractor   TextExtractor
	scrubber    PIIScrubber
	categorizer Categorizer
	embedder    EmbeddingClient
	indexer     SearchIndexer
	entities    EntityExtractor
	segmentOpts segment.Options
}

// New creates a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	opts := deps.SegmentOptions
	if opts.ChunkSize <= 0 {
		opts = segment.DefaultOptions()
	}
	return &Pipeline{
		docs:        deps.Documents,
		chunks:      deps.Chunks,
		stageLog:    deps.StageLog,
		extractor:   deps.Extractor,
		scrubber:    deps.Scrubber,
		categorizer: deps.Categorizer,
		embedder:    deps.Embedder,
		indexer:     deps.Indexer,
		entities:    deps.Entities,
		segmentOpts: opts,
	}
}

// Process runs the full pipeline for one document. It never returns an
// error: every outcome, including total failure, is written to the
// document's own status and error fields for the caller to poll.
func (p *Pipeline) Process(ctx context.Context, documentID string) {
	ctx, span := telemetry.StartSpan(ctx, "Pipeline.Process", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "process",
	})
	defer span.End()

	if err := p.docs.MarkProcessing(ctx, documentID); err != nil {
		log.Printf("pipeline: failed to mark document %s processing: %v", documentID, err)
		telemetry.CaptureError(ctx, err)
		return
	}

	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil || doc == nil {
		p.finalize(ctx, documentID, domain.StatusFailed, "document not found")
		return
	}

	results := make([]StageResult, 0, len(domain.Stages()))

	// Stage 1: extraction, skipped when text is already attached (pre-filled
	// ingestion paths such as transcript imports). The skip is still logged
	// as an instantly completed stage.
	extracted := doc.ExtractedText
	if strings.TrimSpace(extracted) != "" {
		p.logSkippedStage(ctx, doc.ID, domain.StageExtraction)
		results = append(results, StageResult{Stage: domain.StageExtraction})
	} else {
		res := p.runStage(ctx, doc.ID, domain.StageExtraction, func(ctx context.Context) error {
			text, err := p.extractor.ExtractText(ctx, doc.FileKey, doc.MimeType)
			if err != nil {
				return err
			}
			if err := p.docs.SetExtractedText(ctx, doc.ID, text); err != nil {
				return err
			}
			extracted = text
			return nil
		})
		results = append(results, res)

		if res.Failed() {
			// Extraction is fatal: remaining stages never log an entry.
			p.finalize(ctx, doc.ID, domain.StatusFailed, joinFailures(results))
			return
		}
	}

	// Stage 2: PII scrub over the extracted text. On failure the raw text
	// is substituted so downstream indexing never sees empty or stale
	// scrubbed text.
	scrubbed := ""
	res := p.runStage(ctx, doc.ID, domain.StagePIIScrub, func(ctx context.Context) error {
		out, err := p.scrubber.Scrub(ctx, extracted)
		if err != nil {
			return err
		}
		if err := p.docs.SetScrubbedText(ctx, doc.ID, out); err != nil {
			return err
		}
		scrubbed = out
		return nil
	})
	results = append(results, res)
	if res.Failed() {
		scrubbed = extracted
	}

	// Stage 3: categorization over raw extracted text. The confidence score
	// drives the terminal-status decision.
	confidence := 1.0
	res = p.runStage(ctx, doc.ID, domain.StageCategorization, func(ctx context.Context) error {
		cat, err := p.categorizer.Categorize(ctx, extracted, doc.ID)
		if err != nil {
			return err
		}
		confidence = cat.Confidence

		docDate := doc.DocDate
		if cat.ExtractedDate != nil {
			docDate = cat.ExtractedDate
		}
		return p.docs.SetCategorization(ctx, doc.ID, cat.Summary, cat.Confidence, docDate)
	})
	results = append(results, res)

	// Stage 4: segment + embed, full chunk replace.
	res = p.runStage(ctx, doc.ID, domain.StageEmbedding, func(ctx context.Context) error {
		return p.embedDocument(ctx, doc.ID, extracted)
	})
	results = append(results, res)

	// Stage 5: index scrubbed text only; raw text never reaches search.
	res = p.runStage(ctx, doc.ID, domain.StageIndexing, func(ctx context.Context) error {
		return p.indexer.IndexDocument(ctx, doc.ID, IndexPayload{
			Title:        documentTitle(doc),
			Content:      scrubbed,
			PrivacyLevel: doc.PrivacyLevel,
			DocType:      doc.DocType,
			DocDate:      doc.DocDate,
			UploadedBy:   doc.UploadedBy,
			CreatedAt:    doc.CreatedAt,
		})
	})
	results = append(results, res)

	// Stage 6: entity extraction over raw extracted text.
	res = p.runStage(ctx, doc.ID, domain.StageEntityExtraction, func(ctx context.Context) error {
		_, err := p.entities.ExtractEntities(ctx, extracted, doc.ID)
		return err
	})
	results = append(results, res)

	p.finalize(ctx, doc.ID, decideStatus(results, confidence), joinFailures(results))
}

func (p *Pipeline) embedDocument(ctx context.Context, documentID, text string) error {
	pieces := segment.Split(text, p.segmentOpts)
	if len(pieces) == 0 {
		return nil
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Content
	}

	vectors, err := p.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(pieces) {
		return domain.NewDomainError(domain.ErrCodeInternalError, "embedding count does not match chunk count")
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			DocumentID: documentID,
			Index:      piece.Index,
			Content:    piece.Content,
			CharStart:  piece.CharStart,
			CharEnd:    piece.CharEnd,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}

	return p.chunks.ReplaceChunks(ctx, documentID, chunks)
}

// runStage wraps one stage: a running log entry, the stage body, and a
// terminal log entry. Stage errors are captured as results, never
// propagated.
func (p *Pipeline) runStage(ctx context.Context, documentID string, stage domain.Stage, fn func(context.Context) error) StageResult {
	ctx, span := telemetry.StartSpan(ctx, "Pipeline."+string(stage), telemetry.SpanAttributes{
		DocumentID: documentID,
		Stage:      string(stage),
	})
	defer span.End()

	if err := p.stageLog.StartStage(ctx, documentID, stage); err != nil {
		log.Printf("pipeline: failed to log start of %s for document %s: %v", stage, documentID, err)
	}

	err := fn(ctx)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		span.SetError(err)
	}
	if logErr := p.stageLog.CompleteStage(ctx, documentID, stage, errMsg); logErr != nil {
		log.Printf("pipeline: failed to log completion of %s for document %s: %v", stage, documentID, logErr)
	}

	if err != nil {
		log.Printf("pipeline: stage %s failed for document %s: %v", stage, documentID, err)
	}
	return StageResult{Stage: stage, Err: err}
}

// logSkippedStage records an instantly completed stage entry.
func (p *Pipeline) logSkippedStage(ctx context.Context, documentID string, stage domain.Stage) {
	if err := p.stageLog.StartStage(ctx, documentID, stage); err != nil {
		log.Printf("pipeline: failed to log start of %s for document %s: %v", stage, documentID, err)
	}
	if err := p.stageLog.CompleteStage(ctx, documentID, stage, ""); err != nil {
		log.Printf("pipeline: failed to log completion of %s for document %s: %v", stage, documentID, err)
	}
}

func (p *Pipeline) finalize(ctx context.Context, documentID string, status domain.ProcessingStatus, errMsg string) {
	if err := p.docs.Finalize(ctx, documentID, status, errMsg, time.Now().UTC()); err != nil {
		log.Printf("pipeline: failed to finalize document %s: %v", documentID, err)
		telemetry.CaptureError(ctx, err)
		return
	}
	log.Printf("pipeline: document %s finished with status %s", documentID, status)
}

func documentTitle(doc *domain.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	if doc.OriginalFilename != "" {
		return doc.OriginalFilename
	}
	return "Untitled"
}
