package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/timegrid"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

const (
	cacheKeyRemoteExams         = "exams:remote"
	cacheKeyRemoteExamsLastGood = "exams:remote:lastgood"
)

type examRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.ExamEntry, error)
	Create(ctx context.Context, userID string, entry *models.ExamEntry) error
	Delete(ctx context.Context, userID, examID string) (int64, error)
}

type examFeedClient interface {
	Fetch(ctx context.Context) ([]models.ExamEntry, error)
}

type payloadCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ExamService manages user-authored exams and the merged view with the
// school feed.
type ExamService struct {
	repo      examRepository
	feed      examFeedClient
	cache     payloadCache
	logger    *zap.Logger
	remoteTTL time.Duration
}

// NewExamService constructs an ExamService instance.
func NewExamService(repo examRepository, feed examFeedClient, cache payloadCache, logger *zap.Logger, remoteTTL time.Duration) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, feed: feed, cache: cache, logger: logger, remoteTTL: remoteTTL}
}

// List returns the user's local exam entries.
func (s *ExamService) List(ctx context.Context, userID string) ([]models.ExamEntry, error) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return entries, nil
}

// Create validates and stores one exam entry. An entry overlapping an
// existing one on the same date is rejected.
func (s *ExamService) Create(ctx context.Context, userID string, record models.ExamRecord) (*models.ExamEntry, error) {
	entry, ok := record.Normalise(models.ExamSourceLocal)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam needs a name and a period")
	}
	if entry.Date == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam needs a date")
	}
	if _, _, ok := timegrid.PeriodBounds(entry.PeriodStart); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam start period outside the school day")
	}
	if _, _, ok := timegrid.PeriodBounds(entry.PeriodEnd); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam end period outside the school day")
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exams")
	}
	if hit := models.FindOverlap(existing, entry.Date, entry.PeriodStart, entry.PeriodEnd); hit != nil {
		return nil, appErrors.ErrExamOverlap
	}

	if err := s.repo.Create(ctx, userID, &entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store exam")
	}
	return &entry, nil
}

// Delete removes one of the user's exams.
func (s *ExamService) Delete(ctx context.Context, userID, examID string) error {
	affected, err := s.repo.Delete(ctx, userID, examID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}
	return nil
}

// Merged returns the combined remote+local view. The merge happens on every
// call and is never persisted; the remote feed wins key collisions.
func (s *ExamService) Merged(ctx context.Context, userID string) ([]models.ExamEntry, error) {
	local, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	remote := s.remoteExams(ctx)
	return models.MergeExams(remote, local), nil
}

// RefreshRemote forces a feed fetch, updating both cache copies. Used by the
// periodic refresh job.
func (s *ExamService) RefreshRemote(ctx context.Context) error {
	if s.feed == nil {
		return nil
	}
	entries, err := s.feed.Fetch(ctx)
	if err != nil {
		return err
	}
	s.storeRemote(ctx, entries)
	return nil
}

// remoteExams serves the feed through the TTL cache, falling back to the
// last good copy (and finally to empty) when the upstream is down.
func (s *ExamService) remoteExams(ctx context.Context) []models.ExamEntry {
	var cached []models.ExamEntry
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKeyRemoteExams, &cached); err == nil {
			return cached
		}
	}

	if s.feed == nil {
		return []models.ExamEntry{}
	}

	entries, err := s.feed.Fetch(ctx)
	if err != nil {
		s.logger.Warn("exam feed fetch failed, serving last good copy", zap.Error(err))
		var lastGood []models.ExamEntry
		if s.cache != nil {
			if cacheErr := s.cache.Get(ctx, cacheKeyRemoteExamsLastGood, &lastGood); cacheErr == nil {
				return lastGood
			}
		}
		return []models.ExamEntry{}
	}

	s.storeRemote(ctx, entries)
	return entries
}

func (s *ExamService) storeRemote(ctx context.Context, entries []models.ExamEntry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyRemoteExams, entries, s.remoteTTL); err != nil {
		s.logger.Warn("caching remote exams failed", zap.Error(err))
	}
	if err := s.cache.Set(ctx, cacheKeyRemoteExamsLastGood, entries, 0); err != nil {
		s.logger.Warn("caching last good exams failed", zap.Error(err))
	}
}
