// Package timegrid derives the weekly grid: a minute-based time axis built
// from heterogeneous lesson times plus the fixed period table, and the
// collision-free placement of lessons, exams and vacation overlays onto it.
package timegrid

import (
	"fmt"
	"sort"
)

// Period is one of the eight fixed daily teaching slots.
type Period struct {
	Number int    `json:"number"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// periodTable is the authoritative period/minute mapping. It never changes
// at runtime; period 6 is the short mid-afternoon slot.
var periodTable = []Period{
	{1, "07:55", "08:55"},
	{2, "09:10", "10:10"},
	{3, "10:20", "11:20"},
	{4, "11:45", "12:45"},
	{5, "12:55", "13:55"},
	{6, "13:55", "14:25"},
	{7, "14:25", "15:25"},
	{8, "15:35", "16:35"},
}

// Periods returns the fixed period definitions in ascending order.
func Periods() []Period {
	out := make([]Period, len(periodTable))
	copy(out, periodTable)
	return out
}

// PeriodBounds returns the minute-of-day bounds for a period number.
// ok is false for numbers outside the fixed table.
func PeriodBounds(number int) (startMin, endMin int, ok bool) {
	if number < 1 || number > len(periodTable) {
		return 0, 0, false
	}
	p := periodTable[number-1]
	s, _ := ParseHM(p.Start)
	e, _ := ParseHM(p.End)
	return s, e, true
}

// InferPeriod maps a minute-of-day to the period whose range contains it,
// or 0 when the minute falls outside every period.
func InferPeriod(minute int) int {
	for _, p := range periodTable {
		s, _ := ParseHM(p.Start)
		e, _ := ParseHM(p.End)
		if minute >= s && minute < e {
			return p.Number
		}
	}
	return 0
}

// BoundaryMinutes returns the deduplicated, sorted minute set of all period
// starts and ends.
func BoundaryMinutes() []int {
	set := make(map[int]struct{}, 2*len(periodTable))
	for _, p := range periodTable {
		s, _ := ParseHM(p.Start)
		e, _ := ParseHM(p.End)
		set[s] = struct{}{}
		set[e] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

// ParseHM converts "HH:MM" to minute-of-day. ok is false for malformed input.
func ParseHM(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// FormatHM renders a minute-of-day as "HH:MM".
func FormatHM(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// FormatPeriodRange renders a human label like "1. - 2. Stunde (07:55 - 10:10 Uhr)".
func FormatPeriodRange(start, end int) string {
	sMin, _, okS := PeriodBounds(start)
	if !okS {
		return ""
	}
	if _, _, okE := PeriodBounds(end); !okE || end < start {
		end = start
	}
	_, eMin, _ := PeriodBounds(end)
	label := fmt.Sprintf("%d. Stunde", start)
	if start != end {
		label = fmt.Sprintf("%d. - %d. Stunde", start, end)
	}
	return fmt.Sprintf("%s (%s - %s Uhr)", label, FormatHM(sMin), FormatHM(eMin))
}
