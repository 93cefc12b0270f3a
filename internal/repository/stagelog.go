package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quorumworks/logbook/internal/domain"
)

// StageLogRepository records one row per (document, stage, attempt) in the
// processing log.
type StageLogRepository struct {
	db dbtx
}

func NewStageLogRepository(pool *pgxpool.Pool) *StageLogRepository {
	return &StageLogRepository{db: pool}
}

func NewStageLogRepositoryWithTx(tx pgx.Tx) *StageLogRepository {
	return &StageLogRepository{db: tx}
}

func (r *StageLogRepository) StartStage(ctx context.Context, documentID string, stage domain.Stage) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO processing_log (id, document_id, stage, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), documentID, stage, domain.StageStatusRunning, time.Now().UTC(),
	)
	return err
}

// CompleteStage moves the most recent running entry for the stage to its
// terminal state. Earlier attempts from previous runs are left untouched.
func (r *StageLogRepository) CompleteStage(ctx context.Context, documentID string, stage domain.Stage, errMsg string) error {
	status := domain.StageStatusCompleted
	if errMsg != "" {
		status = domain.StageStatusFailed
	}
	_, err := r.db.Exec(ctx,
		`UPDATE processing_log SET status = $1, error_message = $2, completed_at = $3
		 WHERE id = (
			SELECT id FROM processing_log
			WHERE document_id = $4 AND stage = $5 AND status = $6
			ORDER BY started_at DESC
			LIMIT 1
		 )`,
		status, nullableString(errMsg), time.Now().UTC(), documentID, stage, domain.StageStatusRunning,
	)
	return err
}

// ListByDocument returns all log entries for a document in start order, so
// callers see the full stage history including earlier attempts.
func (r *StageLogRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.StageLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, stage, status, error_message, started_at, completed_at
		 FROM processing_log
		 WHERE document_id = $1
		 ORDER BY started_at ASC, id ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.StageLogEntry
	for rows.Next() {
		var e domain.StageLogEntry
		var errMsg *string
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Stage, &e.Status, &errMsg, &e.StartedAt, &e.CompletedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			e.ErrorMessage = *errMsg
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *StageLogRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM processing_log WHERE document_id = $1`, documentID)
	return err
}
