package domain

import "time"

// Chunk is a contiguous slice of a document's text with its vector embedding
// and positional metadata. Chunks are fully regenerated on every processing
// pass; insertion order equals chunk index.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	CharStart  int
	CharEnd    int
	Embedding  []float32
	CreatedAt  time.Time
}
