package models

// CourseOption is a selectable course from the canonical mapping source.
// Key is the normalised identifier used for selection and filtering,
// Label the display string.
type CourseOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Mappings holds the display-label lookup tables keyed by normalised
// subject/room identifiers.
type Mappings struct {
	Courses map[string]string `json:"courses"`
	Rooms   map[string]string `json:"rooms"`
}
