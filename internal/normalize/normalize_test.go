package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftCollapsesAndLowercases(t *testing.T) {
	assert.Equal(t, "mathe gk", Soft("  Mathe   GK "))
	assert.Equal(t, "", Soft(""))
	assert.Equal(t, "", Soft("   \t\n"))
}

func TestStrongFoldsDiacritics(t *testing.T) {
	assert.Equal(t, "franzosisch", Strong("Französisch"))
	assert.Equal(t, "spass", Strong("Spaß"))
	assert.Equal(t, "ubung", Strong("ÜBUNG"))
}

func TestStrongStripsParenthesesKeepsContent(t *testing.T) {
	assert.Equal(t, "mathe vertiefung", Strong("Mathe (Vertiefung)"))
}

func TestStrongCollapsesDashRuns(t *testing.T) {
	assert.Equal(t, "bio chemie", Strong("Bio--Chemie"))
	assert.Equal(t, "bio chemie", Strong("Bio – Chemie"))
}

func TestStrongRemovesCourseTags(t *testing.T) {
	assert.Equal(t, "mathe", Strong("Mathe GK"))
	assert.Equal(t, "mathe", Strong("Mathe LK"))
	assert.Equal(t, "theater", Strong("Theater-AG"))
	// only whole words are stripped
	assert.Equal(t, "agrarkunde", Strong("Agrarkunde"))
}

func TestStrongIdempotent(t *testing.T) {
	inputs := []string{
		"Mathe (GK) – Übung",
		"  Deutsch  LK  ",
		"Französisch-AG",
		"",
		"ohne änderung",
	}
	for _, in := range inputs {
		once := Strong(in)
		require.Equal(t, once, Strong(once), "Strong not idempotent for %q", in)
	}
}

func TestStrongTotalOnEmpty(t *testing.T) {
	assert.Equal(t, "", Strong(""))
	assert.Equal(t, "", Strong("  ( ) -- "))
}

func TestLookupTierOrder(t *testing.T) {
	mapping := map[string]string{
		"mathe":   "Mathematik (strong)",
		"mathe ": "never",
	}
	got, ok := Lookup(mapping, "Mathe GK")
	require.True(t, ok)
	assert.Equal(t, "Mathematik (strong)", got)
}

func TestLookupSoftTier(t *testing.T) {
	mapping := map[string]string{"mathe gk": "Mathematik"}
	got, ok := Lookup(mapping, " Mathe   GK ")
	require.True(t, ok)
	assert.Equal(t, "Mathematik", got)
}

func TestLookupRawTier(t *testing.T) {
	mapping := map[string]string{"Mathe GK": "Mathematik"}
	got, ok := Lookup(mapping, " Mathe GK ")
	require.True(t, ok)
	assert.Equal(t, "Mathematik", got)
}

func TestLookupExplicitEmptyValueWins(t *testing.T) {
	mapping := map[string]string{"r101": ""}
	got, ok := Lookup(mapping, "R101")
	require.True(t, ok)
	assert.Equal(t, "", got)
}

func TestLookupMiss(t *testing.T) {
	_, ok := Lookup(map[string]string{"a": "b"}, "unknown")
	assert.False(t, ok)
	_, ok = Lookup(nil, "anything")
	assert.False(t, ok)
}

func TestLookupSoftAndStrongAgree(t *testing.T) {
	// When both tiers would match, tier 1 wins and the results agree.
	mapping := map[string]string{"mathe": "Mathematik"}
	got, ok := Lookup(mapping, "Mathe ")
	require.True(t, ok)
	assert.Equal(t, "Mathematik", got)
}
