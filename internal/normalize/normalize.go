// Package normalize turns free-text subject and room labels into canonical
// comparison keys. Feeds deliver the same course in several spellings
// ("Mathe GK", "mathe-gk", "Mathe (GK)"), so selection, filtering and
// colour lookup all go through these keys instead of raw labels.
package normalize

import "strings"

var diacritics = strings.NewReplacer(
	"ä", "a", "ö", "o", "ü", "u",
	"Ä", "a", "Ö", "o", "Ü", "u",
	"ß", "ss",
)

var quoteChars = strings.NewReplacer(
	`"`, "", "'", "", "„", "", "“", "", "”", "", "‚", "", "’", "", "‘", "",
)

// courseTags are whole-word course-level markers stripped by Strong
// (Grundkurs, Leistungskurs, Arbeitsgemeinschaft).
var courseTags = map[string]struct{}{
	"gk": {},
	"lk": {},
	"ag": {},
}

func isDash(r rune) bool {
	switch r {
	case '-', '‐', '‑', '‒', '–', '—', '―':
		return true
	}
	return false
}

// Soft lowercases, trims and collapses internal whitespace. Total on any
// input; the empty string maps to the empty key.
func Soft(s string) string {
	return strings.ToLower(collapseSpaces(s))
}

// Strong applies Soft semantics plus diacritic folding, parenthesis and
// quote stripping, dash-run collapsing and removal of course-level tags.
// Strong is idempotent: Strong(Strong(x)) == Strong(x).
func Strong(s string) string {
	if s == "" {
		return ""
	}
	s = diacritics.Replace(strings.TrimSpace(s))
	s = strings.ToLower(s)
	s = quoteChars.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '(' || r == ')':
			b.WriteByte(' ')
		case isDash(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	out := words[:0]
	for _, w := range words {
		if _, tagged := courseTags[w]; tagged {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// Lookup resolves a raw label against a mapping table in three precision
// tiers: strong-normalised key, soft-normalised key, then the trimmed raw
// value. The first present key wins, including explicit empty values.
func Lookup(mapping map[string]string, raw string) (string, bool) {
	if len(mapping) == 0 {
		return "", false
	}
	if v, ok := mapping[Strong(raw)]; ok {
		return v, true
	}
	if v, ok := mapping[Soft(raw)]; ok {
		return v, true
	}
	if v, ok := mapping[strings.TrimSpace(raw)]; ok {
		return v, true
	}
	return "", false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
