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

func testEmbedding(fill float32) []float32 {
	v := make([]float32, 1536)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestChunkRepository_ReplaceChunks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	d := newTestDocument()
	require.NoError(t, docRepo.Create(ctx, d))

	first := []domain.Chunk{
		{DocumentID: d.ID, Index: 0, Content: "first pass chunk 0", CharStart: 0, CharEnd: 18, Embedding: testEmbedding(0.1)},
		{DocumentID: d.ID, Index: 1, Content: "first pass chunk 1", CharStart: 20, CharEnd: 38, Embedding: testEmbedding(0.2)},
	}
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, first))

	count, err := chunkRepo.CountByDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A second pass fully replaces the first.
	second := []domain.Chunk{
		{DocumentID: d.ID, Index: 0, Content: "second pass chunk 0", CharStart: 0, CharEnd: 19, Embedding: testEmbedding(0.3)},
	}
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, second))

	count, err = chunkRepo.CountByDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChunkRepository_ReplaceWithEmptySetClears(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	d := newTestDocument()
	require.NoError(t, docRepo.Create(ctx, d))

	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, []domain.Chunk{
		{DocumentID: d.ID, Index: 0, Content: "x", Embedding: testEmbedding(0.1)},
	}))
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, nil))

	count, err := chunkRepo.CountByDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestChunkRepository_CascadeOnDocumentDelete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	d := newTestDocument()
	require.NoError(t, docRepo.Create(ctx, d))
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, []domain.Chunk{
		{DocumentID: d.ID, Index: 0, Content: "x", Embedding: testEmbedding(0.1)},
	}))

	require.NoError(t, docRepo.Delete(ctx, d.ID))

	count, err := chunkRepo.CountByDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
