package pipeline

import (
	"fmt"
	"strings"

	"github.com/quorumworks/logbook/internal/domain"
)

// ConfidenceThreshold is the categorization-confidence cutoff below which a
// document is routed to human review regardless of other stage outcomes.
const ConfidenceThreshold = 0.6

// StageResult is the outcome of one stage attempt. A nil Err means success.
type StageResult struct {
	Stage domain.Stage
	Err   error
}

// Failed reports whether the stage ended in failure.
func (r StageResult) Failed() bool {
	return r.Err != nil
}

// decideStatus aggregates stage outcomes into the terminal status.
// Low confidence always forces review, even on a fully successful run;
// extraction is the only stage whose failure fails the whole document.
func decideStatus(results []StageResult, confidence float64) domain.ProcessingStatus {
	if confidence < ConfidenceThreshold {
		return domain.StatusFlagged
	}

	for _, r := range results {
		if r.Failed() && r.Stage == domain.StageExtraction {
			return domain.StatusFailed
		}
	}

	return domain.StatusCompleted
}

// joinFailures concatenates failed-stage messages as "stage: message"
// joined by "; ". Empty when no stage failed.
func joinFailures(results []StageResult) string {
	var failed []string
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Stage, r.Err.Error()))
		}
	}
	return strings.Join(failed, "; ")
}
