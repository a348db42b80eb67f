package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/models"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

type vacationRepository interface {
	List(ctx context.Context) ([]models.VacationPeriod, error)
	Create(ctx context.Context, v *models.VacationPeriod) error
	Delete(ctx context.Context, id string) (int64, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// VacationService manages the admin-maintained vacation periods.
type VacationService struct {
	repo      vacationRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVacationService constructs a VacationService instance.
func NewVacationService(repo vacationRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *VacationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &VacationService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns all stored vacation periods.
func (s *VacationService) List(ctx context.Context) ([]models.VacationPeriod, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vacations")
	}
	if out == nil {
		out = []models.VacationPeriod{}
	}
	return out, nil
}

// Create validates, normalises and stores a vacation period, then drops the
// combined vacation cache so the next layout sees it.
func (s *VacationService) Create(ctx context.Context, v models.VacationPeriod) (*models.VacationPeriod, error) {
	if !v.Normalise() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "vacation needs a title and a start date")
	}

	if err := s.repo.Create(ctx, &v); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store vacation")
	}
	s.dropCache(ctx)
	return &v, nil
}

// Delete removes a vacation period.
func (s *VacationService) Delete(ctx context.Context, id string) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete vacation")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "vacation not found")
	}
	s.dropCache(ctx)
	return nil
}

func (s *VacationService) dropCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, cacheKeyVacations); err != nil {
		s.logger.Warn("invalidating vacation cache failed", zap.Error(err))
	}
}
