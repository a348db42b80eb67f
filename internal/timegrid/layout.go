package timegrid

import (
	"time"

	"github.com/planwerk/stundenplan-api/internal/models"
)

// CellKind discriminates the payload of a grid cell.
type CellKind string

const (
	CellLesson      CellKind = "lesson"
	CellExam        CellKind = "exam"
	CellVacation    CellKind = "vacation"
	CellPlaceholder CellKind = "placeholder"
)

// Cell is one placed entry of the weekly grid. Addressing is 1-based with
// row 1 reserved for the weekday header and column 1 for the time gutter.
type Cell struct {
	Row     int      `json:"row"`
	RowSpan int      `json:"rowSpan"`
	Column  int      `json:"column"`
	Kind    CellKind `json:"kind"`

	Lesson    *models.Lesson          `json:"lesson,omitempty"`
	Exam      *models.ExamEntry       `json:"exam,omitempty"`
	Vacations []models.VacationPeriod `json:"vacations,omitempty"`
}

// Grid is the complete output of one layout pass. It is rebuilt from
// scratch on every render and never cached across refreshes.
type Grid struct {
	WeekStart string `json:"weekStart"`
	Empty     bool   `json:"empty"`
	Rows      []Row  `json:"rows"`
	Cells     []Cell `json:"cells"`
}

// KeyResolver maps a free-text exam subject to a canonical course key.
// An empty result means the subject could not be resolved.
type KeyResolver func(subject string) string

const (
	headerRows = 1
	gutterCols = 1
	weekdays   = 5
)

// Layout places the week's lessons, exams and vacations onto the shared
// time axis. The engine is pure: it never mutates its inputs and treats
// malformed entries as absent rather than failing the pass.
//
// Precedence per weekday column: an exam whose period range contains a
// lesson's period replaces that lesson; lesson rows at or after the exam's
// start period are suppressed while earlier same-day lessons stay. Exams
// not matched against any lesson row are placed in a second pass, subject
// to the course-selection filter. Vacations overlay the full column without
// removing lessons.
func Layout(lessons []models.Lesson, exams []models.ExamEntry, vacations []models.VacationPeriod, selected map[string]struct{}, weekStart string, resolve KeyResolver) Grid {
	grid := Grid{WeekStart: weekStart}

	weekExams := filterWeekExams(exams, weekStart)
	isoByDay := weekdayDates(weekStart)

	valid := make([]models.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if day := WeekdayIndex(l.Date); day >= 1 && day <= weekdays {
			valid = append(valid, l)
		}
	}

	axis := BuildAxis(valid)
	if axis.Empty() {
		grid.Empty = true
		return grid
	}
	grid.Rows = axis.Rows()
	totalRows := len(grid.Rows)

	// A day earns row slots when anything at all happens on it.
	activeDays := make(map[int]struct{})
	vacationsByDay := make(map[int][]models.VacationPeriod)
	for _, l := range valid {
		activeDays[WeekdayIndex(l.Date)] = struct{}{}
	}
	for day := 1; day <= weekdays; day++ {
		iso := isoByDay[day]
		if iso == "" {
			continue
		}
		for _, v := range vacations {
			if v.Covers(iso) {
				vacationsByDay[day] = append(vacationsByDay[day], v)
			}
		}
		if len(vacationsByDay[day]) > 0 {
			activeDays[day] = struct{}{}
		}
	}
	for _, k := range weekExams {
		if day := WeekdayIndex(k.Date); day >= 1 && day <= weekdays {
			activeDays[day] = struct{}{}
		}
	}

	for day := 1; day <= weekdays; day++ {
		if list := vacationsByDay[day]; len(list) > 0 {
			grid.Cells = append(grid.Cells, Cell{
				Row:       headerRows + 1,
				RowSpan:   totalRows,
				Column:    gutterCols + day,
				Kind:      CellVacation,
				Vacations: list,
			})
		}
	}

	matched := make(map[string]struct{})
	for i := range valid {
		l := valid[i]
		day := WeekdayIndex(l.Date)
		startMin, okS := ParseHM(l.Start)
		endMin, okE := ParseHM(l.End)
		if !okS || !okE || endMin <= startMin {
			continue
		}

		r0 := axis.RowIndexFor(startMin)
		r1 := axis.RowIndexFor(endMin)
		span := r1 - r0
		if span < 1 {
			span = 1
		}

		periodNum := 0
		if l.Period != nil {
			periodNum = *l.Period
		}
		if periodNum == 0 {
			periodNum = InferPeriod(startMin)
		}
		if periodNum == 0 {
			// Start minute outside every fixed period: fall back to the
			// axis position, first row of the day counting as period 1.
			periodNum = r0 + 1
		}

		exam := findExamForPeriod(weekExams, l.Date, periodNum)
		if exam != nil {
			if periodNum > exam.PeriodStart {
				continue
			}
			if _, seen := matched[exam.ID]; seen {
				continue
			}
			matched[exam.ID] = struct{}{}

			cell, ok := examCell(axis, *exam, day)
			if !ok {
				// Unknown period bounds: fall back to the lesson's own range.
				cell = Cell{
					Row:     headerRows + 1 + r0,
					RowSpan: span,
					Column:  gutterCols + day,
					Kind:    CellExam,
				}
				entry := *exam
				cell.Exam = &entry
			}
			grid.Cells = append(grid.Cells, cell)
			continue
		}

		lesson := l
		grid.Cells = append(grid.Cells, Cell{
			Row:     headerRows + 1 + r0,
			RowSpan: span,
			Column:  gutterCols + day,
			Kind:    CellLesson,
			Lesson:  &lesson,
		})
	}

	for i := range weekExams {
		k := weekExams[i]
		if _, seen := matched[k.ID]; seen {
			continue
		}
		day := WeekdayIndex(k.Date)
		if day < 1 || day > weekdays {
			continue
		}
		if len(selected) > 0 {
			key := ""
			if resolve != nil {
				key = resolve(k.Subject)
			}
			if key != "" {
				if _, ok := selected[key]; !ok {
					continue
				}
			}
		}
		cell, ok := examCell(axis, k, day)
		if !ok {
			// Period range outside the fixed table: nothing to anchor on.
			continue
		}
		grid.Cells = append(grid.Cells, cell)
	}

	for day := 1; day <= weekdays; day++ {
		if _, active := activeDays[day]; active {
			continue
		}
		grid.Cells = append(grid.Cells, Cell{
			Row:     headerRows + 1,
			RowSpan: totalRows,
			Column:  gutterCols + day,
			Kind:    CellPlaceholder,
		})
	}

	return grid
}

// examCell places an exam across its period-derived minute range.
func examCell(axis Axis, k models.ExamEntry, day int) (Cell, bool) {
	startMin, _, okS := PeriodBounds(k.PeriodStart)
	_, endMin, okE := PeriodBounds(k.PeriodEnd)
	if !okS || !okE {
		return Cell{}, false
	}
	r0 := axis.RowIndexFor(startMin)
	r1 := axis.RowIndexFor(endMin)
	span := r1 - r0
	if span < 1 {
		span = 1
	}
	entry := k
	return Cell{
		Row:     headerRows + 1 + r0,
		RowSpan: span,
		Column:  gutterCols + day,
		Kind:    CellExam,
		Exam:    &entry,
	}, true
}

func findExamForPeriod(exams []models.ExamEntry, date string, period int) *models.ExamEntry {
	if period < 1 {
		return nil
	}
	for i := range exams {
		k := &exams[i]
		if k.Date != date {
			continue
		}
		if period >= k.PeriodStart && period <= k.PeriodEnd {
			return k
		}
	}
	return nil
}

// filterWeekExams keeps exams whose date falls inside [weekStart, weekStart+6].
// Without a parseable week start every exam passes through.
func filterWeekExams(exams []models.ExamEntry, weekStart string) []models.ExamEntry {
	start, err := time.Parse("2006-01-02", weekStart)
	if err != nil {
		out := make([]models.ExamEntry, len(exams))
		copy(out, exams)
		return out
	}
	end := start.AddDate(0, 0, 6)
	out := make([]models.ExamEntry, 0, len(exams))
	for _, k := range exams {
		d, err := time.Parse("2006-01-02", k.Date)
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, k)
	}
	return out
}

// weekdayDates maps weekday index 1..5 to its ISO date within the week.
func weekdayDates(weekStart string) map[int]string {
	out := make(map[int]string, weekdays)
	start, err := time.Parse("2006-01-02", weekStart)
	if err != nil {
		return out
	}
	for offset := 0; offset < weekdays; offset++ {
		out[offset+1] = start.AddDate(0, 0, offset).Format("2006-01-02")
	}
	return out
}
