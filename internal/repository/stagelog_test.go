//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageLogRepository_StartAndComplete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	logRepo := NewStageLogRepository(pool)

	d := newTestDocument()
	require.NoError(t, docRepo.Create(ctx, d))

	require.NoError(t, logRepo.StartStage(ctx, d.ID, domain.StageExtraction))
	require.NoError(t, logRepo.CompleteStage(ctx, d.ID, domain.StageExtraction, ""))

	require.NoError(t, logRepo.StartStage(ctx, d.ID, domain.StagePIIScrub))
	require.NoError(t, logRepo.CompleteStage(ctx, d.ID, domain.StagePIIScrub, "scrub timeout"))

	entries, err := logRepo.ListByDocument(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, domain.StageExtraction, entries[0].Stage)
	assert.Equal(t, domain.StageStatusCompleted, entries[0].Status)
	assert.Empty(t, entries[0].ErrorMessage)
	require.NotNil(t, entries[0].CompletedAt)

	assert.Equal(t, domain.StagePIIScrub, entries[1].Stage)
	assert.Equal(t, domain.StageStatusFailed, entries[1].Status)
	assert.Equal(t, "scrub timeout", entries[1].ErrorMessage)
}

func TestStageLogRepository_CompleteTargetsLatestAttempt(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	logRepo := NewStageLogRepository(pool)

	d := newTestDocument()
	require.NoError(t, docRepo.Create(ctx, d))

	// First attempt completes, then a reprocess starts a second one.
	require.NoError(t, logRepo.StartStage(ctx, d.ID, domain.StageExtraction))
	require.NoError(t, logRepo.CompleteStage(ctx, d.ID, domain.StageExtraction, ""))
	require.NoError(t, logRepo.StartStage(ctx, d.ID, domain.StageExtraction))
	require.NoError(t, logRepo.CompleteStage(ctx, d.ID, domain.StageExtraction, "bad file"))

	entries, err := logRepo.ListByDocument(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.StageStatusCompleted, entries[0].Status)
	assert.Equal(t, domain.StageStatusFailed, entries[1].Status)
}

func TestStageLogRepository_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	logRepo := NewStageLogRepository(pool)

	d := newTestDocument()
	require.NoError(t, docRepo.Create(ctx, d))
	require.NoError(t, logRepo.StartStage(ctx, d.ID, domain.StageExtraction))

	require.NoError(t, logRepo.DeleteByDocument(ctx, d.ID))

	entries, err := logRepo.ListByDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
