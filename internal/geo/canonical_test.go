package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newCanonicalizer(t *testing.T) *Canonicalizer {
	t.Helper()
	return NewCanonicalizer(DefaultGazetteer(), "")
}

func TestCanonicalizeExactAndAliases(t *testing.T) {
	t.Parallel()
	c := newCanonicalizer(t)

	cases := map[string]string{
		"Casablanca":   "Casablanca",
		"casablanca":   "Casablanca",
		"CASABLANCA":   "Casablanca",
		"Fès":          "Fès",
		"fes":          "Fès",
		"Kénitra":      "Kénitra",
		"kenitra":      "Kénitra",
		"Mohammédia":   "Mohammedia",
		"salé":         "Salé",
		"Sidi Maarouf": "Casablanca",
		"Agdal":        "Rabat",
	}
	for in, want := range cases {
		require.Equal(t, want, c.Canonicalize(in), "input %q", in)
	}
}

func TestCanonicalizeCompoundStrings(t *testing.T) {
	t.Parallel()
	c := newCanonicalizer(t)

	cases := map[string]string{
		"Casablanca / Sidi Maarouf": "Casablanca",
		"Rabat - Hay Riad":          "Rabat",
		"Ville de Tanger":           "Tanger",
		"Région de : Rabat":         "Rabat",
		"Province de Settat":        "Settat",
		"Agadir (Maroc)":            "Agadir",
		"Casablanca-Settat":         "Casablanca-Settat",
	}
	for in, want := range cases {
		require.Equal(t, want, c.Canonicalize(in), "input %q", in)
	}
}

func TestCanonicalizeWordBoundaries(t *testing.T) {
	t.Parallel()
	c := newCanonicalizer(t)

	// "sale" must only match as a whole word, never inside another word.
	require.Equal(t, "Salé", c.Canonicalize("Sale Medina"))
	require.Equal(t, "Wholesale District", c.Canonicalize("Wholesale District"))
}

func TestCanonicalizeSentinel(t *testing.T) {
	t.Parallel()
	c := newCanonicalizer(t)

	for _, in := range []string{"", "  ", "Tout le Maroc", "tout maroc", "Morocco", "المغرب"} {
		require.Equal(t, UnknownRegion, c.Canonicalize(in), "input %q", in)
	}

	// Strings too long to plausibly be a city name collapse to the sentinel.
	require.Equal(t, UnknownRegion, c.Canonicalize("poste ouvert dans toutes nos agences du royaume sans exception"))
}

func TestCanonicalizeUnknownShortCity(t *testing.T) {
	t.Parallel()
	c := newCanonicalizer(t)

	// Towns missing from the gazetteer pass through title-cased.
	require.Equal(t, "Zagora", c.Canonicalize("zagora"))
	require.Equal(t, "Oued Zem", c.Canonicalize("oued zem"))
}

func TestCanonicalizeCustomSentinel(t *testing.T) {
	t.Parallel()
	c := NewCanonicalizer(DefaultGazetteer(), "Unknown")
	require.Equal(t, "Unknown", c.Canonicalize(""))
}
