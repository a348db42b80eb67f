package timegrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/normalize"
)

const weekMonday = "2024-03-04"

func cellsOfKind(g Grid, kind CellKind) []Cell {
	var out []Cell
	for _, c := range g.Cells {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestLayoutExamReplacesLesson(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "l1", Date: weekMonday, Start: "08:00", End: "08:55", Subject: "Mathe"},
	}
	exams := []models.ExamEntry{
		{ID: "k1", Name: "Analysis", Subject: "Mathe", Date: weekMonday, PeriodStart: 1, PeriodEnd: 1, Source: models.ExamSourceLocal},
	}

	grid := Layout(lessons, exams, nil, nil, weekMonday, nil)
	require.False(t, grid.Empty)

	assert.Empty(t, cellsOfKind(grid, CellLesson), "lesson must be suppressed by the exam")
	examCells := cellsOfKind(grid, CellExam)
	require.Len(t, examCells, 1)

	// The exam spans period 1's minute range (07:55-08:55), which the
	// 08:00 lesson boundary splits into two axis rows.
	cell := examCells[0]
	assert.Equal(t, 2, cell.Row)
	assert.Equal(t, 2, cell.RowSpan)
	assert.Equal(t, 2, cell.Column)
	assert.Equal(t, "k1", cell.Exam.ID)
}

func TestLayoutLessonBeforeExamStartSurvives(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "early", Date: weekMonday, Start: "07:55", End: "08:55", Subject: "Deutsch"},
		{ID: "hit", Date: weekMonday, Start: "10:20", End: "11:20", Subject: "Mathe"},
		{ID: "late", Date: weekMonday, Start: "11:45", End: "12:45", Subject: "Mathe"},
	}
	exams := []models.ExamEntry{
		{ID: "k1", Name: "Klausur", Subject: "Mathe", Date: weekMonday, PeriodStart: 3, PeriodEnd: 4},
	}

	grid := Layout(lessons, exams, nil, nil, weekMonday, nil)

	lessonCells := cellsOfKind(grid, CellLesson)
	require.Len(t, lessonCells, 1)
	assert.Equal(t, "early", lessonCells[0].Lesson.ID)

	examCells := cellsOfKind(grid, CellExam)
	require.Len(t, examCells, 1, "matched exam must render exactly once")
	// spans periods 3..4: 10:20 through 12:45
	axis := BuildAxis(lessons)
	assert.Equal(t, axis.RowIndexFor(620)+2, examCells[0].Row)
}

func TestLayoutVacationWeek(t *testing.T) {
	vacations := []models.VacationPeriod{
		{ID: "v1", Title: "Osterferien", StartDate: "2024-03-25", EndDate: "2024-03-29"},
	}

	grid := Layout(nil, nil, vacations, nil, "2024-03-25", nil)
	require.False(t, grid.Empty)

	vacCells := cellsOfKind(grid, CellVacation)
	require.Len(t, vacCells, 5, "every weekday becomes active")
	for _, c := range vacCells {
		assert.Equal(t, 2, c.Row)
		assert.Equal(t, len(grid.Rows), c.RowSpan)
		require.Len(t, c.Vacations, 1)
		assert.Equal(t, "Osterferien", c.Vacations[0].Title)
	}
	assert.Empty(t, cellsOfKind(grid, CellLesson))
	assert.Empty(t, cellsOfKind(grid, CellPlaceholder))
}

func TestLayoutPlaceholdersForEmptyDays(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "l1", Date: weekMonday, Start: "07:55", End: "08:55", Subject: "Bio"},
	}

	grid := Layout(lessons, nil, nil, nil, weekMonday, nil)

	placeholders := cellsOfKind(grid, CellPlaceholder)
	require.Len(t, placeholders, 4)
	columns := make(map[int]bool)
	for _, c := range placeholders {
		columns[c.Column] = true
		assert.Equal(t, len(grid.Rows), c.RowSpan)
	}
	assert.Equal(t, map[int]bool{3: true, 4: true, 5: true, 6: true}, columns)
}

func TestLayoutSkipsExamOutsidePeriodTable(t *testing.T) {
	exams := []models.ExamEntry{
		{ID: "k1", Name: "Phantom", Date: weekMonday, PeriodStart: 9, PeriodEnd: 9},
	}
	grid := Layout(nil, exams, nil, nil, weekMonday, nil)
	assert.Empty(t, cellsOfKind(grid, CellExam))
	// the day still counted as active, so no placeholder either
	placeholders := cellsOfKind(grid, CellPlaceholder)
	assert.Len(t, placeholders, 4)
}

func TestLayoutUnmatchedExamFiltering(t *testing.T) {
	resolver := func(subject string) string {
		return normalize.Strong(subject)
	}
	exams := []models.ExamEntry{
		{ID: "k1", Name: "A", Subject: "Mathe", Date: weekMonday, PeriodStart: 1, PeriodEnd: 1},
		{ID: "k2", Name: "B", Subject: "Deutsch", Date: weekMonday, PeriodStart: 2, PeriodEnd: 2},
		{ID: "k3", Name: "C", Subject: "", Date: weekMonday, PeriodStart: 3, PeriodEnd: 3},
	}
	selected := map[string]struct{}{"mathe": {}}

	grid := Layout(nil, exams, nil, selected, weekMonday, resolver)

	examCells := cellsOfKind(grid, CellExam)
	ids := make([]string, 0, len(examCells))
	for _, c := range examCells {
		ids = append(ids, c.Exam.ID)
	}
	// k2 is filtered out; k3 has no subject to resolve and stays visible.
	assert.ElementsMatch(t, []string{"k1", "k3"}, ids)
}

func TestLayoutEmptyFilterShowsAllExams(t *testing.T) {
	exams := []models.ExamEntry{
		{ID: "k1", Name: "A", Subject: "Mathe", Date: weekMonday, PeriodStart: 1, PeriodEnd: 1},
	}
	grid := Layout(nil, exams, nil, map[string]struct{}{}, weekMonday, func(string) string { return "other" })
	assert.Len(t, cellsOfKind(grid, CellExam), 1)
}

func TestLayoutExcludesMalformedDates(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "bad", Date: "garbage", Start: "07:55", End: "08:55"},
		{ID: "weekend", Date: "2024-03-09", Start: "07:55", End: "08:55"},
	}
	exams := []models.ExamEntry{
		{ID: "kbad", Name: "X", Date: "also-garbage", PeriodStart: 1, PeriodEnd: 1},
	}
	grid := Layout(lessons, exams, nil, nil, weekMonday, nil)
	assert.Empty(t, cellsOfKind(grid, CellLesson))
	assert.Empty(t, cellsOfKind(grid, CellExam))
	assert.Len(t, cellsOfKind(grid, CellPlaceholder), 5)
}

func TestLayoutExamOutsideWeekIgnored(t *testing.T) {
	exams := []models.ExamEntry{
		{ID: "next-week", Name: "X", Date: "2024-03-11", PeriodStart: 1, PeriodEnd: 1},
	}
	grid := Layout(nil, exams, nil, nil, weekMonday, nil)
	assert.Empty(t, cellsOfKind(grid, CellExam))
}

func TestLayoutVacationCoexistsWithLessons(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "l1", Date: weekMonday, Start: "07:55", End: "08:55", Subject: "Bio"},
	}
	vacations := []models.VacationPeriod{
		{ID: "v1", Title: "Brückentag", StartDate: weekMonday, EndDate: weekMonday},
	}
	grid := Layout(lessons, nil, vacations, nil, weekMonday, nil)
	assert.Len(t, cellsOfKind(grid, CellLesson), 1)
	assert.Len(t, cellsOfKind(grid, CellVacation), 1)
}
