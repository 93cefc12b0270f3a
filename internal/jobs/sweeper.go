package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/quorumworks/logbook/internal/domain"
)

const (
	// stalledAfter is how long a document may sit in pending before the
	// sweeper picks it up. Fresh uploads are processed inline; the grace
	// period avoids racing that goroutine.
	stalledAfter = 1 * time.Minute

	// sweepBatchSize limits how many documents one sweep picks up.
	sweepBatchSize = 10
)

// PendingLister finds documents stuck in pending
type PendingLister interface {
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Document, error)
}

// DocumentProcessor runs a document through the processing pipeline
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string)
}

// PendingSweeper re-queues documents whose inline processing never ran,
// typically after a crash or restart between upload and pipeline start.
type PendingSweeper struct {
	repo      PendingLister
	processor DocumentProcessor
}

// NewPendingSweeper creates a PendingSweeper.
func NewPendingSweeper(repo PendingLister, processor DocumentProcessor) *PendingSweeper {
	return &PendingSweeper{repo: repo, processor: processor}
}

// ProcessJobs implements the JobProcessor interface
func (s *PendingSweeper) ProcessJobs(ctx context.Context) error {
	docs, err := s.repo.ListPending(ctx, time.Now().Add(-stalledAfter), sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending documents: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	log.Printf("Sweeping %d stalled pending documents", len(docs))

	for _, doc := range docs {
		log.Printf("Reprocessing stalled document %s", doc.ID)
		s.processor.Process(ctx, doc.ID)
	}

	return nil
}
