package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/normalize"
	"github.com/planwerk/stundenplan-api/internal/timegrid"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

const cacheKeyVacations = "vacations"

type untisClient interface {
	FetchWeek(ctx context.Context, weekStart string) ([]models.Lesson, error)
	FetchHolidays(ctx context.Context) ([]models.VacationPeriod, error)
}

type vacationLister interface {
	List(ctx context.Context) ([]models.VacationPeriod, error)
}

type profileReader interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
}

type mergedExamSource interface {
	Merged(ctx context.Context, userID string) ([]models.ExamEntry, error)
}

// TimetableTTLs bundles the cache lifetimes per remote source.
type TimetableTTLs struct {
	Lessons   time.Duration
	Vacations time.Duration
}

// TimetableView is the complete answer for one week: the laid-out grid plus
// the filtered lesson list it was built from.
type TimetableView struct {
	WeekStart string          `json:"weekStart"`
	Grid      timegrid.Grid   `json:"grid"`
	Lessons   []models.Lesson `json:"lessons"`
}

// TimetableService assembles the weekly view: upstream lessons, vacations,
// merged exams and the user's course selection all feed one layout pass.
type TimetableService struct {
	untis     untisClient
	vacations vacationLister
	profiles  profileReader
	exams     mergedExamSource
	cache     payloadCache
	mappings  models.Mappings
	logger    *zap.Logger
	ttls      TimetableTTLs
}

// NewTimetableService constructs a TimetableService instance.
func NewTimetableService(untis untisClient, vacations vacationLister, profiles profileReader, exams mergedExamSource, cache payloadCache, mappings models.Mappings, logger *zap.Logger, ttls TimetableTTLs) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		untis:     untis,
		vacations: vacations,
		profiles:  profiles,
		exams:     exams,
		cache:     cache,
		mappings:  mappings,
		logger:    logger,
		ttls:      ttls,
	}
}

// Week builds the grid for the week containing the given date. An empty date
// means the current week; force bypasses the lesson cache.
func (s *TimetableService) Week(ctx context.Context, userID, date string, force bool) (*TimetableView, error) {
	weekStart, err := MondayOf(date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid week date")
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	lessons, err := s.weekLessons(ctx, weekStart, force)
	if err != nil {
		return nil, err
	}
	vacations := s.allVacations(ctx)

	exams, err := s.exams.Merged(ctx, userID)
	if err != nil {
		s.logger.Warn("merged exams unavailable, layouting without them", zap.Error(err))
		exams = nil
	}

	selected := selectionSet(profile.Courses)
	visible := s.decorateAndFilter(lessons, selected)

	grid := timegrid.Layout(visible, exams, vacations, selected, weekStart, s.resolveCourseKey)
	return &TimetableView{WeekStart: weekStart, Grid: grid, Lessons: visible}, nil
}

// RefreshWeek re-fetches and re-caches the lessons for a week. Used by the
// periodic refresh job to keep the common week warm.
func (s *TimetableService) RefreshWeek(ctx context.Context, date string) error {
	weekStart, err := MondayOf(date)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid week date")
	}
	_, err = s.weekLessons(ctx, weekStart, true)
	return err
}

// weekLessons serves the upstream through the TTL cache with a last-good
// fallback, so a flapping upstream degrades to stale data instead of errors.
func (s *TimetableService) weekLessons(ctx context.Context, weekStart string, force bool) ([]models.Lesson, error) {
	key := "lessons:" + weekStart
	lastGoodKey := key + ":lastgood"

	if !force && s.cache != nil {
		var cached []models.Lesson
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	lessons, err := s.untis.FetchWeek(ctx, weekStart)
	if err != nil {
		s.logger.Warn("untis fetch failed", zap.String("week", weekStart), zap.Error(err))
		if s.cache != nil {
			var lastGood []models.Lesson
			if cacheErr := s.cache.Get(ctx, lastGoodKey, &lastGood); cacheErr == nil {
				return lastGood, nil
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "timetable upstream unavailable")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, lessons, s.ttls.Lessons); err != nil {
			s.logger.Warn("caching lessons failed", zap.Error(err))
		}
		if err := s.cache.Set(ctx, lastGoodKey, lessons, 0); err != nil {
			s.logger.Warn("caching last good lessons failed", zap.Error(err))
		}
	}
	return lessons, nil
}

// allVacations merges the admin-maintained rows with the upstream holiday
// list. Failures on either source degrade to the other.
func (s *TimetableService) allVacations(ctx context.Context) []models.VacationPeriod {
	if s.cache != nil {
		var cached []models.VacationPeriod
		if err := s.cache.Get(ctx, cacheKeyVacations, &cached); err == nil {
			return cached
		}
	}

	var out []models.VacationPeriod
	seen := make(map[string]struct{})
	add := func(list []models.VacationPeriod) {
		for _, v := range list {
			if !v.Normalise() {
				continue
			}
			dedup := fmt.Sprintf("%s|%s|%s", v.StartDate, v.EndDate, normalize.Strong(v.Title))
			if _, dup := seen[dedup]; dup {
				continue
			}
			seen[dedup] = struct{}{}
			out = append(out, v)
		}
	}

	if stored, err := s.vacations.List(ctx); err != nil {
		s.logger.Warn("loading stored vacations failed", zap.Error(err))
	} else {
		add(stored)
	}
	if holidays, err := s.untis.FetchHolidays(ctx); err != nil {
		s.logger.Warn("fetching untis holidays failed", zap.Error(err))
	} else {
		add(holidays)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKeyVacations, out, s.ttls.Vacations); err != nil {
			s.logger.Warn("caching vacations failed", zap.Error(err))
		}
	}
	return out
}

// decorateAndFilter applies the display mappings, drops lessons outside the
// course selection and sorts the survivors chronologically. Special slots
// without a subject key always stay visible.
func (s *TimetableService) decorateAndFilter(lessons []models.Lesson, selected map[string]struct{}) []models.Lesson {
	out := make([]models.Lesson, 0, len(lessons))
	for _, l := range lessons {
		key := lessonKey(l)
		if len(selected) > 0 && key != "" && !l.Special {
			if _, ok := selected[key]; !ok {
				continue
			}
		}

		if mapped, found := normalize.Lookup(s.mappings.Courses, lessonRawSubject(l)); found && mapped != "" {
			l.Subject = mapped
		}
		if mapped, found := normalize.Lookup(s.mappings.Rooms, l.Room); found {
			// An explicit empty mapping hides the room on purpose.
			l.Room = mapped
		}

		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// resolveCourseKey maps a free-text exam subject onto a selected-course key:
// directly when the strong form is a known course, otherwise via the display
// labels, otherwise the strong key itself so unmapped subjects still face the
// selection filter. Empty only for empty subjects, which layout always shows.
func (s *TimetableService) resolveCourseKey(subject string) string {
	key := normalize.Strong(subject)
	if key == "" {
		return ""
	}
	if _, ok := s.mappings.Courses[key]; ok {
		return key
	}
	for candidate, label := range s.mappings.Courses {
		if label != "" && normalize.Strong(label) == key {
			return candidate
		}
	}
	return key
}

func lessonKey(l models.Lesson) string {
	return normalize.Strong(lessonRawSubject(l))
}

func lessonRawSubject(l models.Lesson) string {
	if l.SubjectOriginal != "" {
		return l.SubjectOriginal
	}
	return l.Subject
}

func selectionSet(courses []string) map[string]struct{} {
	out := make(map[string]struct{}, len(courses))
	for _, c := range courses {
		if key := normalize.Strong(c); key != "" {
			out[key] = struct{}{}
		}
	}
	return out
}

// MondayOf snaps a date to the Monday of its ISO week. An empty date means
// the current week.
func MondayOf(date string) (string, error) {
	var t time.Time
	if date == "" {
		t = time.Now()
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return "", err
		}
		t = parsed
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format("2006-01-02"), nil
}
