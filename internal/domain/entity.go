package domain

import "time"

// EntityType classifies a knowledge-graph node discovered in a document.
type EntityType string

const (
	EntityAsset      EntityType = "asset"
	EntityContractor EntityType = "contractor"
	EntityPerson     EntityType = "person"
	EntityContract   EntityType = "contract"
	EntityRule       EntityType = "rule"
	EntityDecision   EntityType = "decision"
	EntityPromise    EntityType = "promise"
	EntityEvent      EntityType = "event"
)

// IsValidEntityType checks whether t is a known entity type.
func IsValidEntityType(t EntityType) bool {
	switch t {
	case EntityAsset, EntityContractor, EntityPerson, EntityContract,
		EntityRule, EntityDecision, EntityPromise, EntityEvent:
		return true
	}
	return false
}

// RelationType classifies an edge between two entities.
type RelationType string

const (
	RelationMaintainedBy   RelationType = "maintained_by"
	RelationLocatedIn      RelationType = "located_in"
	RelationGovernedBy     RelationType = "governed_by"
	RelationPromisedIn     RelationType = "promised_in"
	RelationContradictedBy RelationType = "contradicted_by"
	RelationPartyTo        RelationType = "party_to"
	RelationEmployedBy     RelationType = "employed_by"
	RelationManages        RelationType = "manages"
	RelationRelatedTo      RelationType = "related_to"
)

// IsValidRelationType checks whether t is a known relation type.
func IsValidRelationType(t RelationType) bool {
	switch t {
	case RelationMaintainedBy, RelationLocatedIn, RelationGovernedBy,
		RelationPromisedIn, RelationContradictedBy, RelationPartyTo,
		RelationEmployedBy, RelationManages, RelationRelatedTo:
		return true
	}
	return false
}

// Entity is a knowledge-graph node. Entities are deduplicated corpus-wide
// by (name, type); a database uniqueness constraint backs the merge.
type Entity struct {
	ID             string
	Type           EntityType
	Name           string
	Properties     map[string]any
	DiscoveredFrom string // document that first mentioned this entity
	Confirmed      bool
	CreatedAt      time.Time
}

// EntityMention links an entity to a document it appears in.
type EntityMention struct {
	ID             string
	EntityID       string
	DocumentID     string
	ContextSnippet string
	CreatedAt      time.Time
}

// EntityRelation is a typed edge between two entities.
type EntityRelation struct {
	ID        string
	EntityAID string
	EntityBID string
	Type      RelationType
	CreatedAt time.Time
}
