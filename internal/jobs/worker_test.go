package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quorumworks/logbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockPendingLister is a mock implementation of PendingLister
type MockPendingLister struct {
	mock.Mock
}

func (m *MockPendingLister) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Document, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

// MockDocumentProcessor is a mock implementation of DocumentProcessor
type MockDocumentProcessor struct {
	mock.Mock
}

func (m *MockDocumentProcessor) Process(ctx context.Context, documentID string) {
	m.Called(ctx, documentID)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestPendingSweeper_NoStalledDocuments tests when nothing is stalled
func TestPendingSweeper_NoStalledDocuments(t *testing.T) {
	mockRepo := new(MockPendingLister)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("ListPending", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*domain.Document{}, nil)

	sweeper := NewPendingSweeper(mockRepo, mockProcessor)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

// TestPendingSweeper_ReprocessesStalledDocuments tests stalled documents are re-queued
func TestPendingSweeper_ReprocessesStalledDocuments(t *testing.T) {
	mockRepo := new(MockPendingLister)
	mockProcessor := new(MockDocumentProcessor)

	docs := []*domain.Document{
		{ID: "doc-1"},
		{ID: "doc-2"},
	}

	mockRepo.On("ListPending", mock.Anything, mock.MatchedBy(func(olderThan time.Time) bool {
		// The cutoff must be in the past by roughly the grace period.
		return time.Since(olderThan) >= stalledAfter-time.Second
	}), sweepBatchSize).Return(docs, nil)
	mockProcessor.On("Process", mock.Anything, "doc-1").Return()
	mockProcessor.On("Process", mock.Anything, "doc-2").Return()

	sweeper := NewPendingSweeper(mockRepo, mockProcessor)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertExpectations(t)
}

// TestPendingSweeper_RepositoryError tests repository error handling
func TestPendingSweeper_RepositoryError(t *testing.T) {
	mockRepo := new(MockPendingLister)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("ListPending", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("database error"))

	sweeper := NewPendingSweeper(mockRepo, mockProcessor)
	err := sweeper.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list pending documents")
	mockRepo.AssertExpectations(t)
}
