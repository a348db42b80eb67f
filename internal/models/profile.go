package models

// ColorPrefs carries the user's theme choice plus per-subject colours
// (hex strings keyed by course key).
type ColorPrefs struct {
	Theme    string            `json:"theme,omitempty"`
	Subjects map[string]string `json:"subjects,omitempty"`
}

// Profile is the per-user preference state synchronised across devices:
// display name, selected course keys, locally authored exams and colours.
type Profile struct {
	Name      string      `json:"name"`
	Courses   []string    `json:"courses"`
	Klausuren []ExamEntry `json:"klausuren"`
	Colors    ColorPrefs  `json:"colors"`
}
