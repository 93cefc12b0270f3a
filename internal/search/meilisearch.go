// Package search maintains the full-text index. Only scrubbed text is
// indexed so PII cannot leak through search results.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/pipeline"
)

const indexName = "documents"

// indexedDocument is the shape stored in the search index.
type indexedDocument struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	PrivacyLevel string  `json:"privacy_level"`
	DocType      *string `json:"doc_type"`
	DocDate      *string `json:"doc_date"`
	UploadedBy   string  `json:"uploaded_by"`
	CreatedAt    string  `json:"created_at"`
}

// MeiliIndexer indexes and searches documents in Meilisearch.
type MeiliIndexer struct {
	client *meilisearch.Client

	ensureOnce sync.Once
	ensureErr  error
}

// NewMeiliIndexer creates a MeiliIndexer for the given host. The API key
// may be empty for unsecured instances.
func NewMeiliIndexer(host, apiKey string) *MeiliIndexer {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	return &MeiliIndexer{client: client}
}

// ensureIndex creates the documents index with its settings on first use.
func (m *MeiliIndexer) ensureIndex() error {
	m.ensureOnce.Do(func() {
		if _, err := m.client.GetIndex(indexName); err == nil {
			return
		}

		if _, err := m.client.CreateIndex(&meilisearch.IndexConfig{
			Uid:        indexName,
			PrimaryKey: "id",
		}); err != nil {
			m.ensureErr = fmt.Errorf("failed to create search index: %w", err)
			return
		}

		index := m.client.Index(indexName)
		if _, err := index.UpdateFilterableAttributes(&[]string{
			"privacy_level", "doc_type", "uploaded_by",
		}); err != nil {
			m.ensureErr = fmt.Errorf("failed to configure search index: %w", err)
			return
		}
		if _, err := index.UpdateSortableAttributes(&[]string{
			"doc_date", "created_at",
		}); err != nil {
			m.ensureErr = fmt.Errorf("failed to configure search index: %w", err)
			return
		}
		if _, err := index.UpdateSearchableAttributes(&[]string{
			"title", "content",
		}); err != nil {
			m.ensureErr = fmt.Errorf("failed to configure search index: %w", err)
			return
		}
	})
	return m.ensureErr
}

// IndexDocument adds or replaces a document in the index.
func (m *MeiliIndexer) IndexDocument(ctx context.Context, documentID string, payload pipeline.IndexPayload) error {
	if err := m.ensureIndex(); err != nil {
		return err
	}

	doc := toIndexedDocument(documentID, payload)
	if _, err := m.client.Index(indexName).AddDocuments([]indexedDocument{doc}); err != nil {
		return fmt.Errorf("failed to index document %s: %w", documentID, err)
	}
	return nil
}

// RemoveDocument deletes a document from the index.
func (m *MeiliIndexer) RemoveDocument(ctx context.Context, documentID string) error {
	if _, err := m.client.Index(indexName).DeleteDocument(documentID); err != nil {
		return fmt.Errorf("failed to remove document %s from index: %w", documentID, err)
	}
	return nil
}

// SearchInput narrows a full-text query.
type SearchInput struct {
	Query         string
	PrivacyLevels []domain.PrivacyLevel
	DocType       string
	Limit         int64
	Offset        int64
}

// Hit is one search result with highlighted snippets.
type Hit struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Snippet      string    `json:"snippet"`
	PrivacyLevel string    `json:"privacy_level"`
	DocType      string    `json:"doc_type,omitempty"`
	DocDate      string    `json:"doc_date,omitempty"`
	UploadedBy   string    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchResult is a page of hits.
type SearchResult struct {
	Hits               []Hit `json:"hits"`
	EstimatedTotalHits int64 `json:"estimated_total_hits"`
}

// Search queries the index with privacy filtering. Results outside the
// caller's allowed privacy levels are never returned.
func (m *MeiliIndexer) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	if err := m.ensureIndex(); err != nil {
		return nil, err
	}
	if len(input.PrivacyLevels) == 0 {
		return &SearchResult{Hits: []Hit{}}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.Index(indexName).Search(input.Query, &meilisearch.SearchRequest{
		Filter:                buildFilter(input),
		Limit:                 limit,
		Offset:                input.Offset,
		Sort:                  []string{"created_at:desc"},
		AttributesToHighlight: []string{"title", "content"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
		AttributesToCrop:      []string{"content"},
		CropLength:            200,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := &SearchResult{
		Hits:               make([]Hit, 0, len(resp.Hits)),
		EstimatedTotalHits: resp.EstimatedTotalHits,
	}
	for _, raw := range resp.Hits {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		hit := Hit{
			ID:           stringField(fields, "id"),
			Title:        stringField(fields, "title"),
			PrivacyLevel: stringField(fields, "privacy_level"),
			DocType:      stringField(fields, "doc_type"),
			DocDate:      stringField(fields, "doc_date"),
			UploadedBy:   stringField(fields, "uploaded_by"),
		}
		if created, err := time.Parse(time.RFC3339, stringField(fields, "created_at")); err == nil {
			hit.CreatedAt = created
		}
		hit.Snippet = croppedContent(fields)
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

func toIndexedDocument(documentID string, payload pipeline.IndexPayload) indexedDocument {
	doc := indexedDocument{
		ID:           documentID,
		Title:        payload.Title,
		Content:      payload.Content,
		PrivacyLevel: string(payload.PrivacyLevel),
		UploadedBy:   payload.UploadedBy,
		CreatedAt:    payload.CreatedAt.Format(time.RFC3339),
	}
	if payload.DocType != "" {
		docType := payload.DocType
		doc.DocType = &docType
	}
	if payload.DocDate != nil {
		docDate := payload.DocDate.Format("2006-01-02")
		doc.DocDate = &docDate
	}
	return doc
}

// buildFilter renders the privacy and doc-type constraints as a
// Meilisearch filter expression.
func buildFilter(input SearchInput) string {
	privacy := make([]string, 0, len(input.PrivacyLevels))
	for _, level := range input.PrivacyLevels {
		privacy = append(privacy, fmt.Sprintf("privacy_level = %q", level))
	}
	filters := []string{"(" + strings.Join(privacy, " OR ") + ")"}
	if input.DocType != "" {
		filters = append(filters, fmt.Sprintf("doc_type = %q", input.DocType))
	}
	return strings.Join(filters, " AND ")
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// croppedContent prefers the highlighted crop when Meilisearch provides
// one, falling back to the stored content.
func croppedContent(fields map[string]any) string {
	if formatted, ok := fields["_formatted"].(map[string]any); ok {
		if v := stringField(formatted, "content"); v != "" {
			return v
		}
	}
	return stringField(fields, "content")
}
