package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/therapysync/schedule-api/internal/model"
)

const visitColumns = `
	id, patient_id, staff_id, certification_period_id,
	visit_date, scheduled_time, visit_type, status, notes,
	has_note_saved, is_active, missed_reason, missed_action,
	md_notified, no_show, created_at, updated_at
`

func (r *visitRepository) Create(ctx context.Context, visit *model.Visit) error {
	query := `
		INSERT INTO visits (
			id, patient_id, staff_id, certification_period_id,
			visit_date, scheduled_time, visit_type, status, notes,
			has_note_saved, is_active, missed_reason, missed_action,
			md_notified, no_show, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	visit.ID = uuid.New()
	visit.CreatedAt = time.Now()
	visit.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		visit.ID,
		visit.PatientID,
		visit.StaffID,
		visit.CertificationPeriodID,
		visit.VisitDate,
		visit.ScheduledTime,
		visit.VisitType,
		visit.Status,
		visit.Notes,
		visit.HasNoteSaved,
		visit.IsActive,
		visit.MissedReason,
		visit.MissedAction,
		visit.MDNotified,
		visit.NoShow,
		visit.CreatedAt,
		visit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}
	return nil
}

func (r *visitRepository) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1`

	var visit model.Visit
	err := r.db.GetContext(ctx, &visit, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return &visit, nil
}

func (r *visitRepository) Update(ctx context.Context, visit *model.Visit) error {
	query := `
		UPDATE visits
		SET staff_id = $1, certification_period_id = $2, visit_date = $3,
			scheduled_time = $4, visit_type = $5, status = $6, notes = $7,
			has_note_saved = $8, is_active = $9, missed_reason = $10,
			missed_action = $11, md_notified = $12, no_show = $13, updated_at = $14
		WHERE id = $15
	`
	visit.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		visit.StaffID,
		visit.CertificationPeriodID,
		visit.VisitDate,
		visit.ScheduledTime,
		visit.VisitType,
		visit.Status,
		visit.Notes,
		visit.HasNoteSaved,
		visit.IsActive,
		visit.MissedReason,
		visit.MissedAction,
		visit.MDNotified,
		visit.NoShow,
		visit.UpdatedAt,
		visit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update visit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("visit not found")
	}

	return nil
}

func (r *visitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM visits WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("visit not found")
	}

	return nil
}

func (r *visitRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE visits
		SET is_active = false, updated_at = $1
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate visit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("visit not found")
	}

	return nil
}

func (r *visitRepository) ListByCertPeriod(ctx context.Context, certPeriodID uuid.UUID, filters *model.VisitFilters) ([]*model.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE certification_period_id = $1`
	args := []interface{}{certPeriodID}
	argCount := 2

	if filters == nil || !filters.IncludeInactive {
		query += " AND is_active = true"
	}

	if filters != nil && filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	if filters != nil && filters.Discipline != "" && filters.Discipline != model.DisciplineOther {
		query += fmt.Sprintf(" AND staff_id IN (SELECT id FROM staff WHERE role = ANY($%d))", argCount)
		args = append(args, pq.Array(model.RolesForDiscipline(filters.Discipline)))
		argCount++
	}

	query += " ORDER BY visit_date ASC, scheduled_time ASC NULLS LAST"

	var visits []*model.Visit
	err := r.db.SelectContext(ctx, &visits, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	return visits, nil
}

func (r *visitRepository) CheckTimeSlotConflict(ctx context.Context, staffID uuid.UUID, visitDate time.Time, scheduledTime string, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM visits
			WHERE staff_id = $1
			AND visit_date = $2
			AND scheduled_time = $3
			AND is_active = true
			AND status NOT IN ('Cancelled', 'Missed')
	`
	args := []interface{}{staffID, visitDate, scheduledTime}

	if excludeID != nil {
		query += " AND id != $4"
		args = append(args, *excludeID)
	}

	query += ")"

	var hasConflict bool
	err := r.db.GetContext(ctx, &hasConflict, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return hasConflict, nil
}
