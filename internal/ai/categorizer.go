package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/pipeline"
)

const categorizerSystemPrompt = `You are a document classification AI for a small residential community's document archive. Analyze documents and return structured JSON.

You must respond with ONLY a JSON object (no markdown, no explanation) matching this schema:
{
  "categories": [
    { "categoryId": "<uuid>", "confidence": <0.0-1.0> }
  ],
  "summary": "<2-3 sentence summary of the document>",
  "overallConfidence": <0.0-1.0>,
  "extractedDate": "<YYYY-MM-DD or null>"
}

Rules:
- Select 1-3 most relevant categories from the tree below
- Use the CHILD category when applicable (more specific = better)
- overallConfidence reflects how sure you are about ALL your categorizations combined
- extractedDate is the date the document was created/sent (NOT today's date), null if not identifiable
- summary should be factual and useful for a trustee reviewing documents

Category tree:
%s`

const (
	categorizerMaxChars  = 12000
	categorizerMaxTokens = 2048
)

// CategoryReader lists the category tree
type CategoryReader interface {
	List(ctx context.Context) ([]*domain.Category, error)
}

// CategoryLinkWriter persists document-category links
type CategoryLinkWriter interface {
	UpsertLink(ctx context.Context, link domain.CategoryLink) error
}

// Categorizer classifies documents against the stored category tree and
// produces a summary, an overall confidence, and the document date.
type Categorizer struct {
	api        ChatAPI
	categories CategoryReader
	links      CategoryLinkWriter
}

// NewCategorizer creates a Categorizer.
func NewCategorizer(api ChatAPI, categories CategoryReader, links CategoryLinkWriter) *Categorizer {
	return &Categorizer{api: api, categories: categories, links: links}
}

type categorizerResponse struct {
	Categories []struct {
		CategoryID string   `json:"categoryId"`
		Confidence *float64 `json:"confidence"`
	} `json:"categories"`
	Summary           string   `json:"summary"`
	OverallConfidence *float64 `json:"overallConfidence"`
	ExtractedDate     *string  `json:"extractedDate"`
}

// Categorize classifies the document text. A response the model mangles
// beyond parsing yields a zero-confidence result instead of an error, so
// the document lands in review rather than failing outright.
func (c *Categorizer) Categorize(ctx context.Context, text, documentID string) (*pipeline.Categorization, error) {
	categories, err := c.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return &pipeline.Categorization{}, nil
	}

	system := fmt.Sprintf(categorizerSystemPrompt, categoryTree(categories))
	user := "Categorize this document:\n\n" + truncateRunes(text, categorizerMaxChars)

	response, err := c.api.Complete(ctx, system, user, categorizerMaxTokens)
	if err != nil {
		return nil, err
	}

	var parsed categorizerResponse
	raw, err := extractJSON(response)
	if err == nil {
		err = json.Unmarshal(raw, &parsed)
	}
	if err != nil {
		log.Printf("ai: failed to parse categorization response for document %s: %v", documentID, err)
		return &pipeline.Categorization{}, nil
	}

	known := make(map[string]bool, len(categories))
	for _, cat := range categories {
		known[cat.ID] = true
	}

	result := &pipeline.Categorization{
		Summary:    parsed.Summary,
		Confidence: 0.5,
	}
	if parsed.OverallConfidence != nil {
		result.Confidence = *parsed.OverallConfidence
	}
	if parsed.ExtractedDate != nil {
		if d, err := time.Parse("2006-01-02", *parsed.ExtractedDate); err == nil {
			result.ExtractedDate = &d
		}
	}

	for _, cat := range parsed.Categories {
		if !known[cat.CategoryID] {
			continue
		}
		confidence := 0.5
		if cat.Confidence != nil {
			confidence = *cat.Confidence
		}
		link := domain.CategoryLink{
			DocumentID: documentID,
			CategoryID: cat.CategoryID,
			Confidence: confidence,
		}
		if err := c.links.UpsertLink(ctx, link); err != nil {
			return nil, err
		}
		result.Links = append(result.Links, link)
	}

	return result, nil
}

// categoryTree renders the two-level tree the way the classifier prompt
// expects it.
func categoryTree(categories []*domain.Category) string {
	var b strings.Builder
	for _, parent := range categories {
		if parent.ParentID != "" {
			continue
		}
		fmt.Fprintf(&b, "  - %q (id: %s)\n", parent.Name, parent.ID)
		for _, child := range categories {
			if child.ParentID == parent.ID {
				fmt.Fprintf(&b, "    - %q (id: %s)\n", child.Name, child.ID)
			}
		}
	}
	return b.String()
}
