package service

import (
	"bytes"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/timegrid"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

var weekdayLabels = []string{"Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag"}

// ExportService renders a laid-out week as ICS or PDF.
type ExportService struct {
	logger *zap.Logger
}

// NewExportService constructs an ExportService instance.
func NewExportService(logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{logger: logger}
}

// ICS serialises the week's grid as an iCalendar document. Lessons and exams
// become timed events, vacations all-day events.
func (s *ExportService) ICS(view *TimetableView) ([]byte, error) {
	weekStart, err := time.ParseInLocation("2006-01-02", view.WeekStart, time.Local)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid week start for export")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//planwerk//stundenplan-api//DE")

	now := time.Now()
	for i, cell := range view.Grid.Cells {
		day := cell.Column - 2
		if day < 0 || day >= len(weekdayLabels) {
			continue
		}
		date := weekStart.AddDate(0, 0, day)

		switch cell.Kind {
		case timegrid.CellLesson:
			l := cell.Lesson
			start, okS := timegrid.ParseHM(l.Start)
			end, okE := timegrid.ParseHM(l.End)
			if !okS || !okE {
				continue
			}
			ev := cal.AddEvent(fmt.Sprintf("lesson-%s-%d@stundenplan", l.ID, i))
			ev.SetDtStampTime(now)
			ev.SetStartAt(atMinute(date, start))
			ev.SetEndAt(atMinute(date, end))
			ev.SetSummary(l.Subject)
			if l.Room != "" {
				ev.SetLocation(l.Room)
			}
			if l.Teacher != "" {
				ev.SetDescription(l.Teacher)
			}
		case timegrid.CellExam:
			k := cell.Exam
			start, _, okS := timegrid.PeriodBounds(k.PeriodStart)
			_, end, okE := timegrid.PeriodBounds(k.PeriodEnd)
			if !okS || !okE {
				continue
			}
			ev := cal.AddEvent(fmt.Sprintf("exam-%s@stundenplan", k.ID))
			ev.SetDtStampTime(now)
			ev.SetStartAt(atMinute(date, start))
			ev.SetEndAt(atMinute(date, end))
			ev.SetSummary("Klausur: " + k.Name)
			if k.Subject != "" {
				ev.SetDescription(k.Subject)
			}
		case timegrid.CellVacation:
			for _, v := range cell.Vacations {
				ev := cal.AddEvent(fmt.Sprintf("vacation-%s-%d@stundenplan", v.ID, day))
				ev.SetDtStampTime(now)
				ev.SetAllDayStartAt(date)
				ev.SetAllDayEndAt(date.AddDate(0, 0, 1))
				ev.SetSummary(v.Title)
			}
		}
	}

	return []byte(cal.Serialize()), nil
}

// PDF renders the week's grid as a printable table.
func (s *ExportService) PDF(view *TimetableView) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, translate("Stundenplan ab "+view.WeekStart), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	const timeColWidth = 32.0
	dayColWidth := (277.0 - timeColWidth) / float64(len(weekdayLabels))

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(timeColWidth, 8, "Zeit", "1", 0, "C", false, 0, "")
	for _, label := range weekdayLabels {
		pdf.CellFormat(dayColWidth, 8, translate(label), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	if view.Grid.Empty {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 10, translate("Keine Termine in dieser Woche"), "", 1, "C", false, 0, "")
	} else {
		content := cellTexts(view)
		pdf.SetFont("Arial", "", 8)
		for rowIdx, row := range view.Grid.Rows {
			height := 7.0
			if row.Break {
				height = 4.0
			}
			window := fmt.Sprintf("%s - %s", timegrid.FormatHM(row.StartMin), timegrid.FormatHM(row.EndMin))
			pdf.CellFormat(timeColWidth, height, window, "1", 0, "C", false, 0, "")
			for day := 0; day < len(weekdayLabels); day++ {
				text := content[gridPos{row: rowIdx + 2, col: day + 2}]
				pdf.CellFormat(dayColWidth, height, translate(text), "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rendering pdf failed")
	}
	return buf.Bytes(), nil
}

type gridPos struct {
	row int
	col int
}

// cellTexts expands every placed cell over its row span so each table row
// carries its text.
func cellTexts(view *TimetableView) map[gridPos]string {
	out := make(map[gridPos]string)
	for _, cell := range view.Grid.Cells {
		var text string
		switch cell.Kind {
		case timegrid.CellLesson:
			text = cell.Lesson.Subject
			if cell.Lesson.Room != "" {
				text += " (" + cell.Lesson.Room + ")"
			}
		case timegrid.CellExam:
			text = "Klausur: " + cell.Exam.Name
		case timegrid.CellVacation:
			if len(cell.Vacations) > 0 {
				text = cell.Vacations[0].Title
			}
		default:
			continue
		}
		for span := 0; span < cell.RowSpan; span++ {
			pos := gridPos{row: cell.Row + span, col: cell.Column}
			if _, taken := out[pos]; !taken {
				out[pos] = text
			}
		}
	}
	return out
}

func atMinute(date time.Time, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, date.Location())
}
