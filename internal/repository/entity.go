package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quorumworks/logbook/internal/domain"
)

// EntityRepository persists the knowledge graph: entities, their document
// mentions, and typed relations between them.
type EntityRepository struct {
	db dbtx
}

func NewEntityRepository(pool *pgxpool.Pool) *EntityRepository {
	return &EntityRepository{db: pool}
}

func NewEntityRepositoryWithTx(tx pgx.Tx) *EntityRepository {
	return &EntityRepository{db: tx}
}

// GetOrCreate returns the existing entity for (name, type) or inserts a new
// one, reporting whether an insert happened. The insert relies on the
// table's uniqueness constraint, so two concurrent pipeline runs converge
// on a single row.
func (r *EntityRepository) GetOrCreate(ctx context.Context, e *domain.Entity) (*domain.Entity, bool, error) {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	props, err := json.Marshal(e.Properties)
	if err != nil {
		return nil, false, err
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO entities (id, entity_type, name, properties, discovered_from, confirmed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name, entity_type) DO NOTHING`,
		id, e.Type, e.Name, props, nullableString(e.DiscoveredFrom), e.Confirmed, createdAt,
	)
	if err != nil {
		return nil, false, err
	}

	entity, err := r.getByNameAndType(ctx, e.Name, e.Type)
	if err != nil {
		return nil, false, err
	}
	return entity, tag.RowsAffected() == 1, nil
}

func (r *EntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, entity_type, name, properties, discovered_from, confirmed, created_at
		 FROM entities WHERE id = $1`,
		id,
	)
	return scanEntity(row)
}

func (r *EntityRepository) getByNameAndType(ctx context.Context, name string, entityType domain.EntityType) (*domain.Entity, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, entity_type, name, properties, discovered_from, confirmed, created_at
		 FROM entities WHERE name = $1 AND entity_type = $2`,
		name, entityType,
	)
	return scanEntity(row)
}

func (r *EntityRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Entity, error) {
	rows, err := r.db.Query(ctx,
		`SELECT e.id, e.entity_type, e.name, e.properties, e.discovered_from, e.confirmed, e.created_at
		 FROM entities e
		 JOIN entity_mentions m ON m.entity_id = e.id
		 WHERE m.document_id = $1
		 ORDER BY e.name ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// InsertMention records that an entity appears in a document. Duplicate
// mentions from reprocessing are ignored.
func (r *EntityRepository) InsertMention(ctx context.Context, m *domain.EntityMention) error {
	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO entity_mentions (id, entity_id, document_id, context_snippet, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (entity_id, document_id) DO NOTHING`,
		id, m.EntityID, m.DocumentID, nullableString(m.ContextSnippet), createdAt,
	)
	return err
}

// InsertRelation records a typed edge. Duplicate edges are ignored.
func (r *EntityRepository) InsertRelation(ctx context.Context, rel *domain.EntityRelation) error {
	id := rel.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rel.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO entity_relations (id, entity_a_id, entity_b_id, relation_type, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (entity_a_id, entity_b_id, relation_type) DO NOTHING`,
		id, rel.EntityAID, rel.EntityBID, rel.Type, createdAt,
	)
	return err
}

func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var e domain.Entity
	var props []byte
	var discoveredFrom *string
	err := row.Scan(&e.ID, &e.Type, &e.Name, &props, &discoveredFrom, &e.Confirmed, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, err
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &e.Properties); err != nil {
			return nil, err
		}
	}
	if discoveredFrom != nil {
		e.DiscoveredFrom = *discoveredFrom
	}
	return &e, nil
}
