package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/therapysync/schedule-api/internal/model"
)

func (r *staffRepository) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	query := `
		SELECT id, email, name, role, is_active, created_at, updated_at
		FROM staff
		WHERE id = $1
	`
	var staff model.Staff
	err := r.db.GetContext(ctx, &staff, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get staff member: %w", err)
	}
	return &staff, nil
}

func (r *staffRepository) List(ctx context.Context, filters *model.StaffFilters) ([]*model.Staff, error) {
	query := `
		SELECT id, email, name, role, is_active, created_at, updated_at
		FROM staff
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil && filters.ActiveOnly {
		query += " AND is_active = true"
	}

	if filters != nil && filters.Discipline != "" {
		query += fmt.Sprintf(" AND role = ANY($%d)", argCount)
		args = append(args, pq.Array(model.RolesForDiscipline(filters.Discipline)))
		argCount++
	}

	query += " ORDER BY name ASC"

	var staff []*model.Staff
	err := r.db.SelectContext(ctx, &staff, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, nil
}
