package models

// LessonStatus classifies how a lesson deviates from the regular plan.
type LessonStatus string

const (
	StatusNormal       LessonStatus = "normal"
	StatusCancelled    LessonStatus = "cancelled"
	StatusSubstitution LessonStatus = "substitution"
	StatusChanged      LessonStatus = "changed"
)

// Lesson is one scheduled class occurrence as delivered by the upstream.
// Dates are ISO calendar dates and times are HH:MM in school-local time;
// lessons are replaced wholesale on every refresh and never mutated.
type Lesson struct {
	ID              string       `json:"id"`
	Date            string       `json:"date"`
	Start           string       `json:"start"`
	End             string       `json:"end"`
	Subject         string       `json:"subject"`
	SubjectOriginal string       `json:"subject_original"`
	Teacher         string       `json:"teacher"`
	Room            string       `json:"room"`
	Status          LessonStatus `json:"status"`
	Note            string       `json:"note"`
	Special         bool         `json:"special"`
	Period          *int         `json:"period,omitempty"`
}