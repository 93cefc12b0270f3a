package ai

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/pipeline"
)

const entitySystemPrompt = `You are an entity extraction AI for a small residential community's document archive. Extract structured entities and relationships from documents.

You must respond with ONLY a JSON object (no markdown, no explanation):
{
  "entities": [
    {
      "name": "<entity name>",
      "entityType": "<one of: asset, contractor, person, contract, rule, decision, promise, event>",
      "properties": { "<key>": "<value>" },
      "contextSnippet": "<brief surrounding text where entity was found>"
    }
  ],
  "relations": [
    {
      "entityA": "<entity name>",
      "entityB": "<entity name>",
      "relationType": "<one of: maintained_by, located_in, governed_by, promised_in, contradicted_by, party_to, employed_by, manages, related_to>"
    }
  ]
}

Entity type guidelines:
- **asset**: Physical items — lifts, pool, parking, HVAC, fire equipment, specific building components
- **contractor**: Companies or individuals providing services — plumbers, electricians, managing agents
- **person**: Named individuals mentioned — trustees, managers, owners, lawyers, directors
- **contract**: Named agreements — management agreements, service contracts, deeds of sale
- **rule**: Specific rules, bylaws, constitutional provisions, or conduct rules mentioned
- **decision**: Specific decisions made at meetings, by trustees, or by management
- **promise**: Commitments, undertakings, or promises made by any party (especially developer)
- **event**: Specific dated events — meetings, incidents, inspections, handovers

Rules:
- Only extract clearly identifiable entities, not vague references
- For people, include role/position in properties if mentioned (e.g. {"role": "chairman", "unit": "42"})
- For contractors, include speciality if mentioned (e.g. {"speciality": "plumbing"})
- For promises, include who made the promise and to whom in properties
- contextSnippet should be 1-2 sentences showing where the entity appears
- Do NOT extract generic terms like "the building" or "the owners" — only specific named entities
- Aim for quality over quantity — 3-10 entities per document is typical
- Relations should only link entities you've extracted in this same response`

const (
	entityMaxChars      = 10000
	entityMaxTokens     = 4096
	contextSnippetLimit = 500
)

// EntityGraphRepository is the persistence surface for discovered entities
type EntityGraphRepository interface {
	GetOrCreate(ctx context.Context, e *domain.Entity) (*domain.Entity, bool, error)
	InsertMention(ctx context.Context, m *domain.EntityMention) error
	InsertRelation(ctx context.Context, rel *domain.EntityRelation) error
}

// EntityExtractor discovers entities and relations in document text and
// records them in the knowledge graph as unconfirmed.
type EntityExtractor struct {
	api  ChatAPI
	repo EntityGraphRepository
}

// NewEntityExtractor creates an EntityExtractor.
func NewEntityExtractor(api ChatAPI, repo EntityGraphRepository) *EntityExtractor {
	return &EntityExtractor{api: api, repo: repo}
}

type extractionResponse struct {
	Entities []struct {
		Name           string         `json:"name"`
		EntityType     string         `json:"entityType"`
		Properties     map[string]any `json:"properties"`
		ContextSnippet string         `json:"contextSnippet"`
	} `json:"entities"`
	Relations []struct {
		EntityA      string `json:"entityA"`
		EntityB      string `json:"entityB"`
		RelationType string `json:"relationType"`
	} `json:"relations"`
}

// ExtractEntities runs extraction over the text. Unparseable model output
// yields an empty result instead of an error.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text, documentID string) (*pipeline.EntityExtraction, error) {
	user := "Extract entities and relationships from this document:\n\n" + truncateRunes(text, entityMaxChars)

	response, err := e.api.Complete(ctx, entitySystemPrompt, user, entityMaxTokens)
	if err != nil {
		return nil, err
	}

	var parsed extractionResponse
	raw, err := extractJSON(response)
	if err == nil {
		err = json.Unmarshal(raw, &parsed)
	}
	if err != nil {
		log.Printf("ai: failed to parse entity extraction response for document %s: %v", documentID, err)
		return &pipeline.EntityExtraction{}, nil
	}

	result := &pipeline.EntityExtraction{}
	idsByName := make(map[string]string)

	for _, extracted := range parsed.Entities {
		name := strings.TrimSpace(extracted.Name)
		entityType := domain.EntityType(extracted.EntityType)
		if name == "" || !domain.IsValidEntityType(entityType) {
			continue
		}

		entity, created, err := e.repo.GetOrCreate(ctx, &domain.Entity{
			Type:           entityType,
			Name:           name,
			Properties:     extracted.Properties,
			DiscoveredFrom: documentID,
		})
		if err != nil {
			return nil, err
		}
		if created {
			result.EntitiesCreated++
		}
		idsByName[name] = entity.ID

		snippet := extracted.ContextSnippet
		if len([]rune(snippet)) > contextSnippetLimit {
			snippet = string([]rune(snippet)[:contextSnippetLimit])
		}
		if err := e.repo.InsertMention(ctx, &domain.EntityMention{
			EntityID:       entity.ID,
			DocumentID:     documentID,
			ContextSnippet: snippet,
		}); err != nil {
			return nil, err
		}
	}

	for _, rel := range parsed.Relations {
		relationType := domain.RelationType(rel.RelationType)
		aID := idsByName[strings.TrimSpace(rel.EntityA)]
		bID := idsByName[strings.TrimSpace(rel.EntityB)]
		if aID == "" || bID == "" || aID == bID || !domain.IsValidRelationType(relationType) {
			continue
		}
		if err := e.repo.InsertRelation(ctx, &domain.EntityRelation{
			EntityAID: aID,
			EntityBID: bID,
			Type:      relationType,
		}); err != nil {
			return nil, err
		}
		result.RelationsCreated++
	}

	return result, nil
}
