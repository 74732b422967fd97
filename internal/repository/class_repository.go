package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ClassRepository reads class records.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, section, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByIDs returns the classes matching ids. Missing ids are skipped.
func (r *ClassRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Class, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, name, section, created_at, updated_at FROM classes WHERE id = ANY($1)`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list classes by ids: %w", err)
	}
	return classes, nil
}
