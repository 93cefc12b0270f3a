package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quorumworks/logbook/internal/domain"
)

type CategoryRepository struct {
	db dbtx
}

func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{db: pool}
}

func NewCategoryRepositoryWithTx(tx pgx.Tx) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

// List returns the whole category tree. The set is small and seeded by
// migration, so no pagination.
func (r *CategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, parent_id FROM categories ORDER BY parent_id NULLS FIRST, name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		var c domain.Category
		var parentID *string
		if err := rows.Scan(&c.ID, &c.Name, &parentID); err != nil {
			return nil, err
		}
		if parentID != nil {
			c.ParentID = *parentID
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	var c domain.Category
	var parentID *string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, parent_id FROM categories WHERE name = $1`,
		name,
	).Scan(&c.ID, &c.Name, &parentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	if parentID != nil {
		c.ParentID = *parentID
	}
	return &c, nil
}

// UpsertLink attaches a document to a category, keeping the higher
// confidence when the link already exists.
func (r *CategoryRepository) UpsertLink(ctx context.Context, link domain.CategoryLink) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_categories (document_id, category_id, confidence)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_id, category_id)
		 DO UPDATE SET confidence = GREATEST(document_categories.confidence, EXCLUDED.confidence)`,
		link.DocumentID, link.CategoryID, link.Confidence,
	)
	return err
}

func (r *CategoryRepository) DeleteLinksByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_categories WHERE document_id = $1`, documentID)
	return err
}
