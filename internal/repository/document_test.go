//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/pagination"
	"github.com/quorumworks/logbook/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument() *domain.Document {
	return &domain.Document{
		ID:               uuid.NewString(),
		UploadedBy:       "user-1",
		Title:            "AGM Minutes 2024",
		OriginalFilename: "minutes.pdf",
		FileKey:          "uploads/minutes.pdf",
		FileSizeBytes:    2048,
		MimeType:         "application/pdf",
		PrivacyLevel:     domain.PrivacyShared,
		SourceChannel:    domain.SourceWebUpload,
		ProcessingStatus: domain.StatusPending,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	d := newTestDocument()
	require.NoError(t, repo.Create(ctx, d))

	retrieved, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, retrieved.ID)
	assert.Equal(t, d.Title, retrieved.Title)
	assert.Equal(t, d.FileKey, retrieved.FileKey)
	assert.Equal(t, d.PrivacyLevel, retrieved.PrivacyLevel)
	assert.Equal(t, d.SourceChannel, retrieved.SourceChannel)
	assert.Equal(t, domain.StatusPending, retrieved.ProcessingStatus)
	assert.Empty(t, retrieved.ProcessingError)
	assert.Nil(t, retrieved.ProcessedAt)
}

func TestDocumentRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	d := newTestDocument()
	require.NoError(t, repo.Create(ctx, d))

	require.NoError(t, repo.MarkProcessing(ctx, d.ID))
	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.ProcessingStatus)

	require.NoError(t, repo.SetExtractedText(ctx, d.ID, "raw text"))
	require.NoError(t, repo.SetScrubbedText(ctx, d.ID, "scrubbed text"))

	docDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetCategorization(ctx, d.ID, "minutes of the AGM", 0.92, &docDate))

	processedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Finalize(ctx, d.ID, domain.StatusCompleted, "", processedAt))

	got, err = repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.ProcessingStatus)
	assert.Equal(t, "raw text", got.ExtractedText)
	assert.Equal(t, "scrubbed text", got.ScrubbedText)
	assert.Equal(t, "minutes of the AGM", got.AISummary)
	require.NotNil(t, got.AIConfidence)
	assert.InDelta(t, 0.92, *got.AIConfidence, 0.0001)
	require.NotNil(t, got.DocDate)
	assert.True(t, got.DocDate.Equal(docDate))
	require.NotNil(t, got.ProcessedAt)
	assert.Empty(t, got.ProcessingError)
}

func TestDocumentRepository_Finalize_WithError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	d := newTestDocument()
	require.NoError(t, repo.Create(ctx, d))
	require.NoError(t, repo.Finalize(ctx, d.ID, domain.StatusFailed, "extraction: unreadable file", time.Now().UTC()))

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, "extraction: unreadable file", got.ProcessingError)
}

func TestDocumentRepository_MarkProcessing_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	err := repo.MarkProcessing(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ResetForReprocess(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	// A file-backed document loses its extracted text on reset.
	d := newTestDocument()
	require.NoError(t, repo.Create(ctx, d))
	require.NoError(t, repo.SetExtractedText(ctx, d.ID, "raw"))
	require.NoError(t, repo.SetScrubbedText(ctx, d.ID, "scrubbed"))
	require.NoError(t, repo.Finalize(ctx, d.ID, domain.StatusCompleted, "", time.Now().UTC()))

	require.NoError(t, repo.ResetForReprocess(ctx, d.ID))

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.ProcessingStatus)
	assert.Empty(t, got.ExtractedText)
	assert.Empty(t, got.ScrubbedText)
	assert.Empty(t, got.AISummary)
	assert.Nil(t, got.AIConfidence)
	assert.Nil(t, got.ProcessedAt)

	// A transcript-style document keeps its pre-filled text.
	tr := newTestDocument()
	tr.FileKey = ""
	tr.SourceChannel = domain.SourceTranscriptImport
	tr.ExtractedText = "Chat Export\n---\nmessages"
	require.NoError(t, repo.Create(ctx, tr))
	require.NoError(t, repo.ResetForReprocess(ctx, tr.ID))

	got, err = repo.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chat Export\n---\nmessages", got.ExtractedText)
}

func TestDocumentRepository_ListPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	old := newTestDocument()
	old.CreatedAt = time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, repo.Create(ctx, old))

	fresh := newTestDocument()
	require.NoError(t, repo.Create(ctx, fresh))

	done := newTestDocument()
	done.CreatedAt = time.Now().UTC().Add(-10 * time.Minute)
	done.ProcessingStatus = domain.StatusCompleted
	require.NoError(t, repo.Create(ctx, done))

	pending, err := repo.ListPending(ctx, time.Now().UTC().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, old.ID, pending[0].ID)
}

func TestDocumentRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		d := newTestDocument()
		d.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, d))
	}

	page1, err := repo.ListWithCursor(ctx, "", nil, 2)
	require.NoError(t, err)
	assert.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.NextCursor)

	// Newest first.
	assert.True(t, page1.Items[0].CreatedAt.After(page1.Items[1].CreatedAt))

	cursor, err := pagination.DecodeCursor(page1.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListWithCursor(ctx, "", cursor, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)

	// No overlap across pages.
	seen := map[string]bool{}
	for _, d := range append(page1.Items, page2.Items...) {
		assert.False(t, seen[d.ID])
		seen[d.ID] = true
	}

	cursor, err = pagination.DecodeCursor(page2.NextCursor)
	require.NoError(t, err)

	page3, err := repo.ListWithCursor(ctx, "", cursor, 2)
	require.NoError(t, err)
	assert.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)
}

func TestDocumentRepository_ListWithCursor_StatusFilter(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	pending := newTestDocument()
	require.NoError(t, repo.Create(ctx, pending))

	flagged := newTestDocument()
	flagged.ProcessingStatus = domain.StatusFlagged
	require.NoError(t, repo.Create(ctx, flagged))

	page, err := repo.ListWithCursor(ctx, domain.StatusFlagged, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, flagged.ID, page.Items[0].ID)
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	d := newTestDocument()
	require.NoError(t, repo.Create(ctx, d))
	require.NoError(t, repo.Delete(ctx, d.ID))

	_, err := repo.GetByID(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, d.ID), domain.ErrDocumentNotFound)
}
