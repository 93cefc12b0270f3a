package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	objects map[string]string
}

func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func TestExtractText_PlainTextBypassesAPI(t *testing.T) {
	storage := &fakeStorage{objects: map[string]string{
		"uploads/doc-1/notes.txt": "meeting notes line one\nline two",
	}}
	// No API URL configured at all: plain text must still work.
	c := NewClient(storage, "", "")

	text, err := c.ExtractText(context.Background(), "uploads/doc-1/notes.txt", "text/plain")

	require.NoError(t, err)
	assert.Equal(t, "meeting notes line one\nline two", text)
}

func TestExtractText_PartitionsViaAPI(t *testing.T) {
	storage := &fakeStorage{objects: map[string]string{
		"uploads/doc-2/report.pdf": "%PDF-1.4 fake bytes",
	}}

	var gotKey, gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("unstructured-api-key")
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"type": "Title", "text": "Annual Report"},
			{"type": "NarrativeText", "text": "  The lift was serviced in March.  "},
			{"type": "PageBreak", "text": ""}
		]`)
	}))
	defer server.Close()

	c := NewClient(storage, server.URL, "test-key")
	text, err := c.ExtractText(context.Background(), "uploads/doc-2/report.pdf", "application/pdf")

	require.NoError(t, err)
	assert.Equal(t, "Annual Report\n\nThe lift was serviced in March.", text)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "report.pdf", gotFilename)
}

func TestExtractText_APIError(t *testing.T) {
	storage := &fakeStorage{objects: map[string]string{"k": "data"}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported file type", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewClient(storage, server.URL, "")
	_, err := c.ExtractText(context.Background(), "k", "application/pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestExtractText_EmptyElements(t *testing.T) {
	storage := &fakeStorage{objects: map[string]string{"k": "data"}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type": "PageBreak", "text": "   "}]`)
	}))
	defer server.Close()

	c := NewClient(storage, server.URL, "")
	_, err := c.ExtractText(context.Background(), "k", "application/pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text could be extracted")
}

func TestExtractText_DownloadFailure(t *testing.T) {
	c := NewClient(&fakeStorage{objects: map[string]string{}}, "http://localhost:1", "")

	_, err := c.ExtractText(context.Background(), "missing-key", "application/pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download")
}

func TestExtractText_NoAPIConfigured(t *testing.T) {
	storage := &fakeStorage{objects: map[string]string{"k": "data"}}
	c := NewClient(storage, "", "")

	_, err := c.ExtractText(context.Background(), "k", "application/pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
