package models

// VacationPeriod is an inclusive date range with a title. Normalised so
// StartDate <= EndDate before it reaches the layout engine.
type VacationPeriod struct {
	ID        string `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	StartDate string `db:"start_date" json:"start_date"`
	EndDate   string `db:"end_date" json:"end_date"`
}

// Normalise trims fields, defaults a missing end date to the start date and
// swaps an inverted range. Returns false when the entry is unusable.
func (v *VacationPeriod) Normalise() bool {
	if v == nil {
		return false
	}
	if v.EndDate == "" {
		v.EndDate = v.StartDate
	}
	if v.Title == "" || v.StartDate == "" {
		return false
	}
	if v.EndDate < v.StartDate {
		v.StartDate, v.EndDate = v.EndDate, v.StartDate
	}
	return true
}

// Covers reports whether the ISO date falls inside the vacation range.
func (v VacationPeriod) Covers(isoDate string) bool {
	return isoDate != "" && v.StartDate <= isoDate && isoDate <= v.EndDate
}
