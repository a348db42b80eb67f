package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/normalize"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

type profileRepository interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, userID string, profile *models.Profile) error
}

type examStateRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.ExamEntry, error)
	ReplaceAll(ctx context.Context, userID string, entries []models.ExamEntry) error
}

// syncScheduler is the debounced upstream push; a nil scheduler disables it.
type syncScheduler interface {
	Schedule()
}

// ProfileService reads and writes the per-user preference state. The exam
// list is part of the profile contract but stored in its own table.
type ProfileService struct {
	profiles  profileRepository
	exams     examStateRepository
	scheduler syncScheduler
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService instance.
func NewProfileService(profiles profileRepository, exams examStateRepository, scheduler syncScheduler, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{profiles: profiles, exams: exams, scheduler: scheduler, validator: validate, logger: logger}
}

// Get returns the complete profile including the stored exam entries.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	entries, err := s.exams.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exams")
	}
	profile.Klausuren = entries
	return profile, nil
}

// Update replaces the stored profile. Course keys are normalised, the exam
// list is normalised entry by entry (unusable entries are dropped) and swapped
// wholesale. A successful write schedules a debounced upstream sync.
func (s *ProfileService) Update(ctx context.Context, userID string, incoming models.Profile) (*models.Profile, error) {
	courses := make([]string, 0, len(incoming.Courses))
	seen := make(map[string]struct{}, len(incoming.Courses))
	for _, c := range incoming.Courses {
		key := normalize.Strong(c)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		courses = append(courses, key)
	}
	incoming.Courses = courses

	entries := make([]models.ExamEntry, 0, len(incoming.Klausuren))
	for _, k := range incoming.Klausuren {
		record := models.ExamRecord{
			ID:          k.ID,
			Subject:     k.Subject,
			Name:        k.Name,
			Date:        k.Date,
			PeriodStart: k.PeriodStart,
			PeriodEnd:   k.PeriodEnd,
		}
		entry, ok := record.Normalise(models.ExamSourceLocal)
		if !ok {
			s.logger.Debug("dropping unusable exam entry from profile update", zap.String("name", k.Name))
			continue
		}
		entries = append(entries, entry)
	}

	if err := s.profiles.Upsert(ctx, userID, &incoming); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store profile")
	}
	if err := s.exams.ReplaceAll(ctx, userID, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store exams")
	}

	if s.scheduler != nil {
		s.scheduler.Schedule()
	}

	incoming.Klausuren = entries
	return &incoming, nil
}
