package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/timegrid"
)

type stubUntis struct {
	lessons  []models.Lesson
	holidays []models.VacationPeriod
	err      error
	calls    int
}

func (s *stubUntis) FetchWeek(_ context.Context, _ string) ([]models.Lesson, error) {
	s.calls++
	return s.lessons, s.err
}

func (s *stubUntis) FetchHolidays(_ context.Context) ([]models.VacationPeriod, error) {
	return s.holidays, nil
}

type stubVacations struct {
	list []models.VacationPeriod
}

func (s *stubVacations) List(_ context.Context) ([]models.VacationPeriod, error) {
	return s.list, nil
}

type stubProfiles struct {
	profile models.Profile
}

func (s *stubProfiles) Get(_ context.Context, _ string) (*models.Profile, error) {
	p := s.profile
	return &p, nil
}

type stubMerged struct {
	entries []models.ExamEntry
}

func (s *stubMerged) Merged(_ context.Context, _ string) ([]models.ExamEntry, error) {
	return s.entries, nil
}

func newTimetableService(untis *stubUntis, profile models.Profile, m models.Mappings, exams []models.ExamEntry, cache payloadCache) *TimetableService {
	return NewTimetableService(
		untis,
		&stubVacations{},
		&stubProfiles{profile: profile},
		&stubMerged{entries: exams},
		cache,
		m,
		nil,
		TimetableTTLs{Lessons: 5 * time.Minute, Vacations: time.Minute},
	)
}

func TestWeekAppliesSelectionFilter(t *testing.T) {
	untis := &stubUntis{lessons: []models.Lesson{
		{ID: "1", Date: "2024-03-04", Start: "07:55", End: "08:55", SubjectOriginal: "M-GK-1", Subject: "Mathematik"},
		{ID: "2", Date: "2024-03-04", Start: "09:10", End: "10:10", SubjectOriginal: "D-LK-2", Subject: "Deutsch"},
		{ID: "3", Date: "2024-03-05", Start: "07:55", End: "10:10", Subject: "Wandertag", Special: true},
	}}
	profile := models.Profile{Courses: []string{"m 1"}}

	svc := newTimetableService(untis, profile, models.Mappings{}, nil, nil)
	view, err := svc.Week(context.Background(), "u1", "2024-03-04", false)
	require.NoError(t, err)

	require.Len(t, view.Lessons, 2, "selection keeps the matching course plus special slots")
	assert.Equal(t, "1", view.Lessons[0].ID)
	assert.Equal(t, "3", view.Lessons[1].ID)
}

func TestWeekAppliesDisplayMappings(t *testing.T) {
	untis := &stubUntis{lessons: []models.Lesson{
		{ID: "1", Date: "2024-03-04", Start: "07:55", End: "08:55", SubjectOriginal: "M-GK-1", Subject: "M", Room: "A113"},
		{ID: "2", Date: "2024-03-04", Start: "09:10", End: "10:10", SubjectOriginal: "SP-1", Subject: "Sport", Room: "TH1"},
	}}
	m := models.Mappings{
		Courses: map[string]string{"m 1": "Mathe GK"},
		Rooms:   map[string]string{"a113": "Physikraum", "th1": ""},
	}

	svc := newTimetableService(untis, models.Profile{}, m, nil, nil)
	view, err := svc.Week(context.Background(), "u1", "2024-03-04", false)
	require.NoError(t, err)

	require.Len(t, view.Lessons, 2)
	assert.Equal(t, "Mathe GK", view.Lessons[0].Subject)
	assert.Equal(t, "Physikraum", view.Lessons[0].Room)
	assert.Equal(t, "Sport", view.Lessons[1].Subject, "unmapped subject keeps its live name")
	assert.Equal(t, "", view.Lessons[1].Room, "empty mapping hides the room")
}

func TestWeekSnapsToMonday(t *testing.T) {
	untis := &stubUntis{}
	svc := newTimetableService(untis, models.Profile{}, models.Mappings{}, nil, nil)

	view, err := svc.Week(context.Background(), "u1", "2024-03-07", false)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", view.WeekStart)
}

func TestWeekUsesLessonCache(t *testing.T) {
	untis := &stubUntis{lessons: []models.Lesson{
		{ID: "1", Date: "2024-03-04", Start: "07:55", End: "08:55", Subject: "Mathe"},
	}}
	cache := newMemoryCache()
	svc := newTimetableService(untis, models.Profile{}, models.Mappings{}, nil, cache)

	_, err := svc.Week(context.Background(), "u1", "2024-03-04", false)
	require.NoError(t, err)
	_, err = svc.Week(context.Background(), "u1", "2024-03-04", false)
	require.NoError(t, err)
	assert.Equal(t, 1, untis.calls)

	_, err = svc.Week(context.Background(), "u1", "2024-03-04", true)
	require.NoError(t, err)
	assert.Equal(t, 2, untis.calls, "force bypasses the cache")
}

func TestWeekFallsBackToLastGoodLessons(t *testing.T) {
	untis := &stubUntis{lessons: []models.Lesson{
		{ID: "1", Date: "2024-03-04", Start: "07:55", End: "08:55", Subject: "Mathe"},
	}}
	cache := newMemoryCache()
	svc := newTimetableService(untis, models.Profile{}, models.Mappings{}, nil, cache)

	_, err := svc.Week(context.Background(), "u1", "2024-03-04", false)
	require.NoError(t, err)

	delete(cache.values, "lessons:2024-03-04")
	untis.err = errors.New("untis down")

	view, err := svc.Week(context.Background(), "u1", "2024-03-04", false)
	require.NoError(t, err)
	require.Len(t, view.Lessons, 1)
}

func TestWeekLaysOutExamOverLesson(t *testing.T) {
	untis := &stubUntis{lessons: []models.Lesson{
		{ID: "1", Date: "2024-03-04", Start: "07:55", End: "08:55", SubjectOriginal: "M-GK-1", Subject: "Mathe"},
	}}
	exams := []models.ExamEntry{
		{ID: "k1", Subject: "Mathe", Name: "Analysis", Date: "2024-03-04", PeriodStart: 1, PeriodEnd: 1},
	}

	svc := newTimetableService(untis, models.Profile{}, models.Mappings{}, exams, nil)
	view, err := svc.Week(context.Background(), "u1", "2024-03-04", false)
	require.NoError(t, err)

	var examCells, lessonCells int
	for _, c := range view.Grid.Cells {
		switch c.Kind {
		case timegrid.CellExam:
			examCells++
		case timegrid.CellLesson:
			lessonCells++
		}
	}
	assert.Equal(t, 1, examCells)
	assert.Equal(t, 0, lessonCells)
}

func TestResolveCourseKeyViaLabel(t *testing.T) {
	m := models.Mappings{Courses: map[string]string{"m 1": "Mathe GK"}}
	svc := newTimetableService(&stubUntis{}, models.Profile{}, m, nil, nil)

	assert.Equal(t, "m 1", svc.resolveCourseKey("M-GK-1"), "strong form is a known key")
	assert.Equal(t, "m 1", svc.resolveCourseKey("Mathe GK"), "label resolves to its key")
	assert.Equal(t, "unbekannt", svc.resolveCourseKey("Unbekannt"), "unmapped subjects fall back to their strong key")
	assert.Equal(t, "", svc.resolveCourseKey("  "))
}

func TestWeekHidesUnmappedExamOutsideSelection(t *testing.T) {
	untis := &stubUntis{lessons: []models.Lesson{
		{ID: "1", Date: "2024-03-04", Start: "07:55", End: "08:55", SubjectOriginal: "M-GK-1", Subject: "Mathe"},
	}}
	exams := []models.ExamEntry{
		{ID: "k1", Subject: "Sport", Name: "Sprinttest", Date: "2024-03-05", PeriodStart: 2, PeriodEnd: 2},
		{ID: "k2", Subject: "", Name: "Nachschrift", Date: "2024-03-06", PeriodStart: 3, PeriodEnd: 3},
	}
	profile := models.Profile{Courses: []string{"m 1"}}
	m := models.Mappings{Courses: map[string]string{"m 1": "Mathe GK"}}

	svc := newTimetableService(untis, profile, m, exams, nil)
	view, err := svc.Week(context.Background(), "u1", "2024-03-04", false)
	require.NoError(t, err)

	var examIDs []string
	for _, c := range view.Grid.Cells {
		if c.Kind == timegrid.CellExam {
			examIDs = append(examIDs, c.Exam.ID)
		}
	}
	// "Sport" resolves to a key outside the selection and is hidden; the
	// subjectless exam has nothing to resolve and stays visible.
	assert.Equal(t, []string{"k2"}, examIDs)
}

func TestMondayOf(t *testing.T) {
	got, err := MondayOf("2024-03-10") // a Sunday
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", got)

	got, err = MondayOf("2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", got)

	_, err = MondayOf("04.03.2024")
	assert.Error(t, err)
}
