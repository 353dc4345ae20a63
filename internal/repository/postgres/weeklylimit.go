package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/therapysync/schedule-api/internal/model"

	"github.com/google/uuid"
)

type weeklyLimitRow struct {
	Discipline model.Discipline `db:"discipline"`
	WeekNumber int              `db:"week_number"`
	Cap        int              `db:"cap"`
}

func (r *weeklyLimitRepository) GetForPeriod(ctx context.Context, certPeriodID uuid.UUID) (model.WeeklyLimit, error) {
	query := `
		SELECT discipline, week_number, cap
		FROM weekly_limits
		WHERE certification_period_id = $1
	`
	var rows []weeklyLimitRow
	if err := r.db.SelectContext(ctx, &rows, query, certPeriodID); err != nil {
		return nil, fmt.Errorf("failed to get weekly limits: %w", err)
	}

	limits := make(model.WeeklyLimit)
	for _, row := range rows {
		limits.Set(row.Discipline, row.WeekNumber, row.Cap)
	}
	return limits, nil
}

func (r *weeklyLimitRepository) ReplaceForPeriod(ctx context.Context, certPeriodID uuid.UUID, limits model.WeeklyLimit) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM weekly_limits WHERE certification_period_id = $1`, certPeriodID); err != nil {
		return fmt.Errorf("failed to clear weekly limits: %w", err)
	}

	insert := `
		INSERT INTO weekly_limits (certification_period_id, discipline, week_number, cap, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	now := time.Now()
	for discipline, weeks := range limits {
		for week, cap := range weeks {
			if _, err := tx.ExecContext(ctx, insert, certPeriodID, discipline, week, cap, now); err != nil {
				return fmt.Errorf("failed to insert weekly limit: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit weekly limits: %w", err)
	}
	return nil
}

func (r *weeklyLimitRepository) SetCap(ctx context.Context, certPeriodID uuid.UUID, discipline model.Discipline, week, cap int) error {
	query := `
		INSERT INTO weekly_limits (certification_period_id, discipline, week_number, cap, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (certification_period_id, discipline, week_number)
		DO UPDATE SET cap = EXCLUDED.cap, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, certPeriodID, discipline, week, cap, time.Now()); err != nil {
		return fmt.Errorf("failed to set weekly cap: %w", err)
	}
	return nil
}
