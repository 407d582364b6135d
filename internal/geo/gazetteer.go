// Package geo maps the free-text location strings found on job boards to
// canonical place names.
package geo

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Entry is one gazetteer row: a canonical place name and the aliases that
// should resolve to it. Alias matching is case- and diacritic-insensitive.
type Entry struct {
	CanonicalName string
	Aliases       []string
}

// Gazetteer is a static, read-only lookup of canonical location names.
// Build it once at process start.
type Gazetteer struct {
	// byAlias maps folded alias -> canonical name.
	byAlias map[string]string
	// aliases holds all folded aliases sorted longest-first, so that a more
	// specific alias embedded in the same string wins over a shorter one.
	aliases []string
}

// NewGazetteer builds a Gazetteer from entries. Each entry's canonical name is
// implicitly also an alias for itself.
func NewGazetteer(entries []Entry) *Gazetteer {
	g := &Gazetteer{byAlias: make(map[string]string)}
	for _, e := range entries {
		g.add(e.CanonicalName, e.CanonicalName)
		for _, a := range e.Aliases {
			g.add(a, e.CanonicalName)
		}
	}
	g.aliases = make([]string, 0, len(g.byAlias))
	for a := range g.byAlias {
		g.aliases = append(g.aliases, a)
	}
	sort.Slice(g.aliases, func(i, j int) bool {
		if len(g.aliases[i]) != len(g.aliases[j]) {
			return len(g.aliases[i]) > len(g.aliases[j])
		}
		return g.aliases[i] < g.aliases[j]
	})
	return g
}

func (g *Gazetteer) add(alias, canonical string) {
	folded := Fold(alias)
	if folded == "" {
		return
	}
	g.byAlias[folded] = canonical
}

// Lookup returns the canonical name for an exactly matching alias.
func (g *Gazetteer) Lookup(text string) (string, bool) {
	name, ok := g.byAlias[Fold(text)]
	return name, ok
}

// AliasesLongestFirst returns all folded aliases ordered longest first.
func (g *Gazetteer) AliasesLongestFirst() []string {
	return g.aliases
}

// Canonical resolves a folded alias that is already known to exist.
func (g *Gazetteer) Canonical(foldedAlias string) string {
	return g.byAlias[foldedAlias]
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lower-cases text and strips diacritics, producing the form used for
// all alias comparisons.
func Fold(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}
