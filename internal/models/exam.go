package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/planwerk/stundenplan-api/internal/normalize"
)

// ExamSource tags where an exam entry originated.
type ExamSource string

const (
	ExamSourceLocal  ExamSource = "local"
	ExamSourceRemote ExamSource = "remote"
)

// ExamEntry represents a written exam ("Klausur") occupying one or more
// periods on a single date. Local entries are user-authored and persisted;
// remote entries are read-only snapshots from the school feed.
type ExamEntry struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	Name        string     `json:"name"`
	Date        string     `json:"date"`
	PeriodStart int        `json:"periodStart"`
	PeriodEnd   int        `json:"periodEnd"`
	Source      ExamSource `json:"source,omitempty"`
}

// ExamRecord is the loosely-typed wire/storage shape of an exam entry.
// Older payloads carry a single "period" field instead of a range.
type ExamRecord struct {
	ID          string      `json:"id"`
	Subject     string      `json:"subject"`
	Name        string      `json:"name"`
	Date        string      `json:"date"`
	PeriodStart interface{} `json:"periodStart,omitempty"`
	PeriodEnd   interface{} `json:"periodEnd,omitempty"`
	Period      interface{} `json:"period,omitempty"`
}

// Normalise coerces the loose wire shape into a well-formed entry:
// the legacy single "period" field feeds both bounds, a missing end
// defaults to the start, inverted ranges are swapped and a missing ID
// gets generated. Entries without a usable name are rejected.
func (r ExamRecord) Normalise(source ExamSource) (ExamEntry, bool) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return ExamEntry{}, false
	}

	start, okStart := coercePeriod(r.PeriodStart)
	if !okStart {
		start, okStart = coercePeriod(r.Period)
	}
	if !okStart || start < 1 {
		return ExamEntry{}, false
	}
	end, okEnd := coercePeriod(r.PeriodEnd)
	if !okEnd || end < 1 {
		end = start
	}
	if end < start {
		start, end = end, start
	}

	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.New().String()
	}

	return ExamEntry{
		ID:          id,
		Subject:     strings.TrimSpace(r.Subject),
		Name:        name,
		Date:        strings.TrimSpace(r.Date),
		PeriodStart: start,
		PeriodEnd:   end,
		Source:      source,
	}, true
}

// Overlaps reports whether the entry intersects the given period range on
// the given date. Ranges touching at a shared period count as overlapping.
func (k ExamEntry) Overlaps(date string, periodStart, periodEnd int) bool {
	if k.Date != date {
		return false
	}
	return !(periodEnd < k.PeriodStart || periodStart > k.PeriodEnd)
}

// FindOverlap returns the first entry overlapping the range, or nil.
func FindOverlap(entries []ExamEntry, date string, periodStart, periodEnd int) *ExamEntry {
	for i := range entries {
		if entries[i].Overlaps(date, periodStart, periodEnd) {
			return &entries[i]
		}
	}
	return nil
}

// MergeKey identifies an exam for deduplication across sources. Entries on
// the same date and period range referring to the same subject (or, lacking
// one, the same name) collapse into a single key.
func (k ExamEntry) MergeKey() string {
	label := k.Subject
	if label == "" {
		label = k.Name
	}
	return fmt.Sprintf("%s|%d|%d|%s", k.Date, k.PeriodStart, k.PeriodEnd, normalize.Strong(label))
}

// MergeExams combines the remote feed with the user's local entries. Remote
// entries are inserted first and win key collisions; neither input slice is
// modified. The result is a transient view and never written back.
func MergeExams(remote, local []ExamEntry) []ExamEntry {
	out := make([]ExamEntry, 0, len(remote)+len(local))
	seen := make(map[string]struct{}, len(remote)+len(local))
	for _, k := range remote {
		key := k.MergeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		k.Source = ExamSourceRemote
		out = append(out, k)
	}
	for _, k := range local {
		key := k.MergeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		k.Source = ExamSourceLocal
		out = append(out, k)
	}
	return out
}

// coercePeriod accepts the numeric encodings JSON round-trips produce.
func coercePeriod(v interface{}) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
