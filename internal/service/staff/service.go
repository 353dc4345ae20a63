package staff

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/repository"
	"github.com/therapysync/schedule-api/pkg/errors"
)

// Service is the read-only staff directory used by the scheduling surface.
type Service struct {
	repo repository.StaffRepository
}

func NewService(repo repository.StaffRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	staff, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, errors.NotFound("staff member", err)
	}
	return staff, nil
}

func (s *Service) List(ctx context.Context, filters *model.StaffFilters) ([]*model.Staff, error) {
	staff, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, nil
}
