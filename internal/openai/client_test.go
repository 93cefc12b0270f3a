package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbeddingAPI struct {
	calls   [][]string
	err     error
	dimOver int // when > 0, return embeddings of this dimension instead
}

func (f *fakeEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	dim := DefaultEmbeddingDimensions
	if f.dimOver > 0 {
		dim = f.dimOver
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
		out[i][0] = float32(i)
	}
	return out, nil
}

func TestGenerateEmbeddings(t *testing.T) {
	api := &fakeEmbeddingAPI{}
	client := NewClientWithAPI(api)

	out, err := client.GenerateEmbeddings(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Len(t, out[0], DefaultEmbeddingDimensions)
	require.Len(t, api.calls, 1)
	assert.Equal(t, []string{"a", "b", "c"}, api.calls[0])
}

func TestGenerateEmbeddings_Empty(t *testing.T) {
	client := NewClientWithAPI(&fakeEmbeddingAPI{})

	_, err := client.GenerateEmbeddings(context.Background(), nil)

	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestGenerateEmbeddings_SplitsLargeBatches(t *testing.T) {
	api := &fakeEmbeddingAPI{}
	client := NewClientWithAPI(api)

	texts := make([]string, maxBatchSize+10)
	for i := range texts {
		texts[i] = "chunk"
	}

	out, err := client.GenerateEmbeddings(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, out, maxBatchSize+10)
	require.Len(t, api.calls, 2)
	assert.Len(t, api.calls[0], maxBatchSize)
	assert.Len(t, api.calls[1], 10)
}

func TestGenerateEmbeddings_APIError(t *testing.T) {
	api := &fakeEmbeddingAPI{err: errors.New("rate limited")}
	client := NewClientWithAPI(api)

	_, err := client.GenerateEmbeddings(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerateEmbeddings_WrongDimensions(t *testing.T) {
	api := &fakeEmbeddingAPI{dimOver: 8}
	client := NewClientWithAPI(api)

	_, err := client.GenerateEmbeddings(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, ErrWrongDimensions)
}
