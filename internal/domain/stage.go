package domain

import "time"

// Stage is one named unit of work in the processing pipeline.
type Stage string

const (
	StageExtraction       Stage = "extraction"
	StagePIIScrub         Stage = "pii_scrub"
	StageCategorization   Stage = "categorization"
	StageEmbedding        Stage = "embedding"
	StageIndexing         Stage = "indexing"
	StageEntityExtraction Stage = "entity_extraction"
)

// Stages lists every pipeline stage in execution order.
func Stages() []Stage {
	return []Stage{
		StageExtraction,
		StagePIIScrub,
		StageCategorization,
		StageEmbedding,
		StageIndexing,
		StageEntityExtraction,
	}
}

// StageStatus is the lifecycle state of one stage attempt.
type StageStatus string

const (
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// StageLogEntry is one row per (document, stage, attempt). Multiple entries
// may exist for the same document+stage across reprocessing attempts; the
// most recent running entry is the one mutated to its terminal state.
type StageLogEntry struct {
	ID           string
	DocumentID   string
	Stage        Stage
	Status       StageStatus
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}
