package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const timetableColumns = `id, class_id, subject_id, teacher_id, day_of_week, start_time, end_time, is_break, period_name, created_at`

// TimetableRepository persists class timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ListByClass returns every live entry of a class.
func (r *TimetableRepository) ListByClass(ctx context.Context, classID string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE class_id = $1 ORDER BY start_time ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list timetable by class: %w", err)
	}
	return entries, nil
}

// ListByTeachers returns teaching entries of the given teachers in classes other than excludeClassID.
func (r *TimetableRepository) ListByTeachers(ctx context.Context, teacherIDs []string, excludeClassID string) ([]models.TimetableEntry, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE teacher_id = ANY($1) AND class_id <> $2 AND is_break = FALSE`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(teacherIDs), excludeClassID); err != nil {
		return nil, fmt.Errorf("list timetable by teachers: %w", err)
	}
	return entries, nil
}

// ListAll returns every live entry across classes.
func (r *TimetableRepository) ListAll(ctx context.Context) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries ORDER BY class_id ASC, start_time ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// DeleteByClass removes the class timetable and reports how many rows were dropped.
func (r *TimetableRepository) DeleteByClass(ctx context.Context, classID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_entries WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("delete timetable by class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete timetable rows affected: %w", err)
	}
	return affected, nil
}

// BulkInsert stores entries within a single transaction. Either all rows land or none.
func (r *TimetableRepository) BulkInsert(ctx context.Context, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin timetable insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range entries {
		payload := entries[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO timetable_entries (`+timetableColumns+`) VALUES (:id, :class_id, :subject_id, :teacher_id, :day_of_week, :start_time, :end_time, :is_break, :period_name, :created_at)`, &payload); err != nil {
			return fmt.Errorf("insert timetable entry: %w", err)
		}
		entries[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit timetable insert: %w", err)
	}
	return nil
}
