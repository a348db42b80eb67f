package timegrid

import (
	"sort"
	"time"

	"github.com/planwerk/stundenplan-api/internal/models"
)

// breakThresholdMinutes separates compact break rows from full lesson rows.
const breakThresholdMinutes = 30

// Row is one horizontal band of the grid between two adjacent axis
// boundaries. Break rows render compact; this is a presentation hint only.
type Row struct {
	StartMin int  `json:"startMin"`
	EndMin   int  `json:"endMin"`
	Break    bool `json:"break"`
}

// Axis is the sorted, deduplicated minute boundary set shared by all
// weekday columns.
type Axis struct {
	times []int
}

// BuildAxis collects the start and end minute of every weekday lesson plus
// every fixed period boundary. The period table is always included so breaks
// between teaching periods stay visible on days without lessons in that gap.
func BuildAxis(lessons []models.Lesson) Axis {
	set := make(map[int]struct{})
	for _, l := range lessons {
		day := WeekdayIndex(l.Date)
		if day < 1 || day > 5 {
			continue
		}
		if s, ok := ParseHM(l.Start); ok {
			set[s] = struct{}{}
		}
		if e, ok := ParseHM(l.End); ok {
			set[e] = struct{}{}
		}
	}
	for _, m := range BoundaryMinutes() {
		set[m] = struct{}{}
	}

	times := make([]int, 0, len(set))
	for m := range set {
		times = append(times, m)
	}
	sort.Ints(times)
	return Axis{times: times}
}

// Empty reports whether the axis has too few boundaries to form a grid.
func (a Axis) Empty() bool {
	return len(a.times) < 2
}

// Times returns the boundary minutes in ascending order.
func (a Axis) Times() []int {
	out := make([]int, len(a.times))
	copy(out, a.times)
	return out
}

// Rows returns the bands between adjacent boundaries with their break flag.
func (a Axis) Rows() []Row {
	if a.Empty() {
		return nil
	}
	rows := make([]Row, 0, len(a.times)-1)
	for i := 0; i < len(a.times)-1; i++ {
		delta := a.times[i+1] - a.times[i]
		rows = append(rows, Row{
			StartMin: a.times[i],
			EndMin:   a.times[i+1],
			Break:    delta <= breakThresholdMinutes,
		})
	}
	return rows
}

// RowIndexFor returns the zero-based axis row containing the minute: the
// exact boundary when present, otherwise the last row starting before it.
func (a Axis) RowIndexFor(minute int) int {
	for i, t := range a.times {
		if t == minute {
			return i
		}
	}
	for i, t := range a.times {
		if t > minute {
			if i == 0 {
				return 0
			}
			return i - 1
		}
	}
	if len(a.times) == 0 {
		return 0
	}
	return len(a.times) - 1
}

// WeekdayIndex returns ISO weekday 1..7 for an ISO date, or 0 when the date
// cannot be parsed.
func WeekdayIndex(isoDate string) int {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return 0
	}
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
