package service

import "context"

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
	Chunks() ChunkRepositoryInterface
	StageLogs() StageLogWriterInterface
}

// StageLogWriterInterface is the mutating stage-log surface used inside
// reprocess transactions.
type StageLogWriterInterface interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
