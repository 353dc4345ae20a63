package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
)

func (r *certPeriodRepository) Get(ctx context.Context, id uuid.UUID) (*model.CertificationPeriod, error) {
	query := `
		SELECT id, patient_id, start_date, end_date, is_active, created_at, updated_at
		FROM certification_periods
		WHERE id = $1
	`
	var period model.CertificationPeriod
	err := r.db.GetContext(ctx, &period, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get certification period: %w", err)
	}
	return &period, nil
}

func (r *certPeriodRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.CertificationPeriod, error) {
	query := `
		SELECT id, patient_id, start_date, end_date, is_active, created_at, updated_at
		FROM certification_periods
		WHERE patient_id = $1
		ORDER BY start_date DESC
	`
	var periods []*model.CertificationPeriod
	err := r.db.SelectContext(ctx, &periods, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certification periods: %w", err)
	}
	return periods, nil
}

func (r *certPeriodRepository) UpdateActiveFlags(ctx context.Context, today time.Time) (int64, error) {
	query := `
		UPDATE certification_periods
		SET is_active = (start_date <= $1 AND end_date >= $1), updated_at = $2
		WHERE is_active != (start_date <= $1 AND end_date >= $1)
	`
	result, err := r.db.ExecContext(ctx, query, today, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to update active flags: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
