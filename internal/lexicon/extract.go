package lexicon

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Extractor matches lexicon terms against free text. Safe for concurrent use
// after construction.
type Extractor struct {
	technologies []term
	skills       []term
}

type term struct {
	name string
	re   *regexp.Regexp
}

// NewExtractor compiles one pattern per lexicon term.
func NewExtractor(lex Lexicon) *Extractor {
	return &Extractor{
		technologies: compileTerms(lex.Technologies),
		skills:       compileTerms(lex.Skills),
	}
}

// Extract returns the distinct technologies and skills found in text, sorted.
// Matching is case-insensitive and word-bounded: a term embedded in a longer
// word ("Reactive") does not count.
func (e *Extractor) Extract(text string) (technologies, skills []string) {
	return match(e.technologies, text), match(e.skills, text)
}

func match(terms []term, text string) []string {
	var found []string
	for _, t := range terms {
		if t.re.MatchString(text) {
			found = append(found, t.name)
		}
	}
	sort.Strings(found)
	return found
}

func compileTerms(names []string) []term {
	terms := make([]term, 0, len(names))
	for _, name := range names {
		terms = append(terms, term{name: name, re: compileTerm(name)})
	}
	return terms
}

// compileTerm builds a case-insensitive whole-word pattern for one term.
// \b is ASCII-only and does nothing useful next to symbols ("C++", "C#") or
// accented letters ("Qualité"), so those edges get explicit guard classes.
func compileTerm(name string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?i)`)
	first, _ := utf8.DecodeRuneInString(name)
	last, _ := utf8.DecodeLastRuneInString(name)
	if isASCIIWord(first) {
		b.WriteString(`\b`)
	} else {
		b.WriteString(`(?:^|[^\p{L}\p{N}_])`)
	}
	b.WriteString(regexp.QuoteMeta(name))
	if isASCIIWord(last) {
		b.WriteString(`\b`)
	} else {
		b.WriteString(`(?:$|[^\p{L}\p{N}_+#])`)
	}
	return regexp.MustCompile(b.String())
}

func isASCIIWord(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
