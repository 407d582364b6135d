package lexicon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractBasicTerms(t *testing.T) {
	t.Parallel()
	e := NewExtractor(DefaultLexicon())

	techs, skills := e.Extract("Développeur fullstack avec React and Docker experience, anglais courant")
	require.Subset(t, techs, []string{"React", "Docker"})
	require.Contains(t, skills, "Anglais")
}

func TestExtractWordBoundaries(t *testing.T) {
	t.Parallel()
	e := NewExtractor(DefaultLexicon())

	// A term embedded inside a longer word must not match.
	techs, _ := e.Extract("Reactive programming with RxJS")
	require.NotContains(t, techs, "React")

	techs, _ = e.Extract("Nous utilisons Google Workspace")
	require.NotContains(t, techs, "Go")

	techs, _ = e.Extract("Expertise Javascripting")
	require.NotContains(t, techs, "JavaScript")
}

func TestExtractSymbolTerms(t *testing.T) {
	t.Parallel()
	e := NewExtractor(DefaultLexicon())

	techs, _ := e.Extract("Développeur C++ / C# confirmé")
	require.Contains(t, techs, "C++")
	require.Contains(t, techs, "C#")

	techs, _ = e.Extract("Stack: Node.js, Vue.js et PostgreSQL.")
	require.Contains(t, techs, "Node.js")
	require.Contains(t, techs, "Vue.js")
	require.Contains(t, techs, "PostgreSQL")
}

func TestExtractAccentedTerms(t *testing.T) {
	t.Parallel()
	e := NewExtractor(DefaultLexicon())

	_, skills := e.Extract("Rigueur et qualité exigées, gestion projet")
	require.Contains(t, skills, "Qualité")
	require.Contains(t, skills, "Rigueur")
	require.Contains(t, skills, "Gestion projet")

	// Plural is a different word.
	_, skills = e.Extract("hautes qualités humaines")
	require.NotContains(t, skills, "Qualité")
}

func TestExtractSetSemantics(t *testing.T) {
	t.Parallel()
	e := NewExtractor(DefaultLexicon())

	techs, _ := e.Extract("Python, python et encore PYTHON")
	require.Equal(t, []string{"Python"}, techs)
}

func TestExtractSorted(t *testing.T) {
	t.Parallel()
	e := NewExtractor(DefaultLexicon())

	techs, _ := e.Extract("Kubernetes, Docker et AWS")
	require.Equal(t, []string{"AWS", "Docker", "Kubernetes"}, techs)
}

func TestExtractEmptyText(t *testing.T) {
	t.Parallel()
	e := NewExtractor(DefaultLexicon())

	techs, skills := e.Extract("")
	require.Empty(t, techs)
	require.Empty(t, skills)
}
