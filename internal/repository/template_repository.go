package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableTemplateRepository stores named generation presets.
type TimetableTemplateRepository struct {
	db *sqlx.DB
}

// NewTimetableTemplateRepository constructs a TimetableTemplateRepository.
func NewTimetableTemplateRepository(db *sqlx.DB) *TimetableTemplateRepository {
	return &TimetableTemplateRepository{db: db}
}

// List returns templates ordered by name.
func (r *TimetableTemplateRepository) List(ctx context.Context) ([]models.TimetableTemplate, error) {
	const query = `SELECT id, name, config, created_at, updated_at FROM timetable_templates ORDER BY name ASC`
	var templates []models.TimetableTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list timetable templates: %w", err)
	}
	return templates, nil
}

// FindByID loads a template.
func (r *TimetableTemplateRepository) FindByID(ctx context.Context, id string) (*models.TimetableTemplate, error) {
	const query = `SELECT id, name, config, created_at, updated_at FROM timetable_templates WHERE id = $1`
	var tmpl models.TimetableTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, id); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// Create stores a new template.
func (r *TimetableTemplateRepository) Create(ctx context.Context, tmpl *models.TimetableTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = now
	}
	tmpl.UpdatedAt = now

	const query = `INSERT INTO timetable_templates (id, name, config, created_at, updated_at) VALUES (:id, :name, :config, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tmpl); err != nil {
		return fmt.Errorf("create timetable template: %w", err)
	}
	return nil
}

// Delete removes a template. It reports false when nothing matched.
func (r *TimetableTemplateRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_templates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete timetable template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete timetable template rows affected: %w", err)
	}
	return affected > 0, nil
}
