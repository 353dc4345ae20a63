package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
)

func (r *noteRepository) Create(ctx context.Context, note *model.ClinicalNote) error {
	query := `
		INSERT INTO clinical_notes (
			id, visit_id, discipline, note_type, sections, completed,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	note.ID = uuid.New()
	note.CreatedAt = time.Now()
	note.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		note.ID,
		note.VisitID,
		note.Discipline,
		note.NoteType,
		note.Sections,
		note.Completed,
		note.CreatedBy,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create clinical note: %w", err)
	}
	return nil
}

func (r *noteRepository) Get(ctx context.Context, id uuid.UUID) (*model.ClinicalNote, error) {
	query := `
		SELECT id, visit_id, discipline, note_type, sections, completed,
			   created_by, created_at, updated_at
		FROM clinical_notes
		WHERE id = $1
	`
	var note model.ClinicalNote
	err := r.db.GetContext(ctx, &note, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinical note: %w", err)
	}
	return &note, nil
}

func (r *noteRepository) GetByVisit(ctx context.Context, visitID uuid.UUID) (*model.ClinicalNote, error) {
	query := `
		SELECT id, visit_id, discipline, note_type, sections, completed,
			   created_by, created_at, updated_at
		FROM clinical_notes
		WHERE visit_id = $1
	`
	var note model.ClinicalNote
	err := r.db.GetContext(ctx, &note, query, visitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinical note for visit: %w", err)
	}
	return &note, nil
}

func (r *noteRepository) Update(ctx context.Context, note *model.ClinicalNote) error {
	query := `
		UPDATE clinical_notes
		SET sections = $1, completed = $2, updated_at = $3
		WHERE id = $4
	`
	note.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		note.Sections,
		note.Completed,
		note.UpdatedAt,
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update clinical note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("clinical note not found")
	}

	return nil
}
