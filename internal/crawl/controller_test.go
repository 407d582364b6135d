package crawl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	archmem "jobradar/internal/archive/memory"
	"jobradar/internal/fetch"
	"jobradar/internal/geo"
	"jobradar/internal/ingest"
	"jobradar/internal/lexicon"
	"jobradar/internal/metrics"
	"jobradar/internal/posting"
	"jobradar/internal/source"
	memstore "jobradar/internal/store/memory"
)

func init() {
	metrics.Init()
}

var testNow = time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)

// fakeAdapter serves scripted pages. Pages beyond the script are empty.
type fakeAdapter struct {
	id       string
	pages    map[int][]posting.Raw
	fetchErr map[int]error
	fetches  int
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) FetchPage(_ context.Context, page int) (*source.Page, error) {
	f.fetches++
	if err := f.fetchErr[page]; err != nil {
		return nil, err
	}
	return &source.Page{
		Number:   page,
		URL:      fmt.Sprintf("https://%s/offres?page=%d", f.id, page),
		Response: &fetch.Response{StatusCode: 200, Body: []byte("<html>listing</html>")},
	}, nil
}

func (f *fakeAdapter) ExtractCards(page *source.Page) ([]posting.Raw, error) {
	return f.pages[page.Number], nil
}

func card(sourceID string, n int, dateText string) posting.Raw {
	return posting.Raw{
		Title:        fmt.Sprintf("Poste %d", n),
		Company:      "Acme",
		LocationText: "Casablanca",
		DateText:     dateText,
		Description:  "Description du poste",
		URL:          fmt.Sprintf("https://%s/offre/%d", sourceID, n),
		SourceID:     sourceID,
	}
}

func cards(sourceID string, startN, count int, dateText string) []posting.Raw {
	out := make([]posting.Raw, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, card(sourceID, startN+i, dateText))
	}
	return out
}

func newController(t *testing.T) (*Controller, *memstore.Store) {
	t.Helper()
	st := memstore.New(geo.UnknownRegion)
	gate := ingest.New(
		st,
		geo.NewCanonicalizer(geo.DefaultGazetteer(), ""),
		lexicon.NewExtractor(lexicon.DefaultLexicon()),
		nil,
		zaptest.NewLogger(t),
	).WithNow(func() time.Time { return testNow })
	return NewController(gate, zaptest.NewLogger(t)).WithNow(func() time.Time { return testNow }), st
}

func TestCrawlSourceEndToEnd(t *testing.T) {
	t.Parallel()
	c, st := newController(t)

	// Page 1: three fresh postings. Page 2: six postings confidently older
	// than the cutoff.
	adapter := &fakeAdapter{
		id: "emploi.ma",
		pages: map[int][]posting.Raw{
			1: cards("emploi.ma", 1, 3, "il y a 2 jours"),
			2: cards("emploi.ma", 4, 6, "15/01/2024"),
		},
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:       adapter,
		RecencyCutoff: testNow.AddDate(0, 0, -7),
	})

	require.Equal(t, StopStaleThreshold, report.StopReason)
	require.Equal(t, 2, report.Pages)
	require.Equal(t, 3, report.Accepted)
	require.Equal(t, 5, report.SkippedStale)
	require.False(t, report.Failed())
	require.Len(t, st.Postings(), 3)
}

func TestCrawlSourceStopsWithinStaleThreshold(t *testing.T) {
	t.Parallel()
	c, st := newController(t)

	adapter := &fakeAdapter{
		id: "rekrute",
		pages: map[int][]posting.Raw{
			1: cards("rekrute", 1, 20, "10/01/2024"),
		},
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:        adapter,
		RecencyCutoff:  testNow.AddDate(0, 0, -7),
		StaleThreshold: 5,
	})

	require.Equal(t, StopStaleThreshold, report.StopReason)
	require.Equal(t, 5, report.SkippedStale)
	require.Empty(t, st.Postings())
}

func TestCrawlSourceFreshResetsStaleStreak(t *testing.T) {
	t.Parallel()
	c, st := newController(t)

	// Old postings interleaved with fresh ones never build a streak of 5.
	var mixed []posting.Raw
	for i := 0; i < 4; i++ {
		mixed = append(mixed, cards("bayt", i*10, 4, "10/01/2024")...)
		mixed = append(mixed, card("bayt", i*10+9, "il y a 1 jour"))
	}
	adapter := &fakeAdapter{
		id:    "bayt",
		pages: map[int][]posting.Raw{1: mixed},
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:        adapter,
		RecencyCutoff:  testNow.AddDate(0, 0, -7),
		StaleThreshold: 5,
		StaleTolerance: 365 * 24 * time.Hour,
		MaxPages:       1,
	})

	require.Equal(t, StopPageLimit, report.StopReason)
	require.Equal(t, 4, report.Accepted)
	require.Len(t, st.Postings(), 4)
}

func TestCrawlSourcePageToleranceStop(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)

	// A single ancient posting on the page trips the tolerance check even
	// without a consecutive streak.
	page := cards("tanqeeb", 1, 2, "il y a 1 jour")
	page = append(page, card("tanqeeb", 3, "01/06/2023"))
	adapter := &fakeAdapter{
		id:    "tanqeeb",
		pages: map[int][]posting.Raw{1: page},
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:        adapter,
		RecencyCutoff:  testNow.AddDate(0, 0, -7),
		StaleTolerance: 60 * 24 * time.Hour,
	})

	require.Equal(t, StopStaleThreshold, report.StopReason)
	require.Equal(t, 2, report.Accepted)
}

func TestCrawlSourceExhausted(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)

	adapter := &fakeAdapter{
		id: "marocannonces",
		pages: map[int][]posting.Raw{
			1: cards("marocannonces", 1, 2, "il y a 1 jour"),
		},
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:       adapter,
		RecencyCutoff: testNow.AddDate(0, 0, -7),
	})

	require.Equal(t, StopExhausted, report.StopReason)
	require.Equal(t, 2, report.Accepted)
	require.Equal(t, 2, report.Pages)
}

func TestCrawlSourcePageLimit(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)

	adapter := &fakeAdapter{id: "indeed", pages: map[int][]posting.Raw{}}
	for p := 1; p <= 10; p++ {
		adapter.pages[p] = []posting.Raw{card("indeed", p, "il y a 1 jour")}
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:       adapter,
		RecencyCutoff: testNow.AddDate(0, 0, -7),
		MaxPages:      3,
	})

	require.Equal(t, StopPageLimit, report.StopReason)
	require.Equal(t, 3, report.Pages)
	require.Equal(t, 3, report.Accepted)
}

func TestCrawlSourceTransientFailureLimit(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)

	adapter := &fakeAdapter{
		id: "emploi.ma",
		fetchErr: map[int]error{
			1: errors.New("connection reset"),
			2: errors.New("connection reset"),
			3: errors.New("connection reset"),
		},
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:       adapter,
		RecencyCutoff: testNow.AddDate(0, 0, -7),
		FailureLimit:  3,
	})

	require.Equal(t, StopTransientFailureLimit, report.StopReason)
	require.True(t, report.Failed())
	require.Error(t, report.Err)
	require.Equal(t, 3, adapter.fetches)
}

func TestCrawlSourceFailureStreakResets(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)

	adapter := &fakeAdapter{
		id: "rekrute",
		pages: map[int][]posting.Raw{
			2: {card("rekrute", 1, "il y a 1 jour")},
		},
		fetchErr: map[int]error{
			1: errors.New("boom"),
			3: errors.New("boom"),
			4: errors.New("boom"),
		},
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:       adapter,
		RecencyCutoff: testNow.AddDate(0, 0, -7),
		FailureLimit:  3,
		MaxPages:      4,
	})

	// The success on page 2 resets the failure streak, so only the page
	// ceiling stops the source.
	require.Equal(t, StopPageLimit, report.StopReason)
	require.Equal(t, 1, report.Accepted)
}

func TestCrawlSourceCanceled(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := &fakeAdapter{id: "bayt"}
	report := c.CrawlSource(ctx, SourceRun{Adapter: adapter, RecencyCutoff: testNow})
	require.Equal(t, StopCanceled, report.StopReason)
	require.Zero(t, adapter.fetches)
}

func TestCrawlSourceArchivesPages(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)
	arch := archmem.New()

	adapter := &fakeAdapter{
		id: "emploi.ma",
		pages: map[int][]posting.Raw{
			1: cards("emploi.ma", 1, 2, "il y a 1 jour"),
		},
	}

	report := c.CrawlSource(context.Background(), SourceRun{
		Adapter:       adapter,
		RecencyCutoff: testNow.AddDate(0, 0, -7),
		Archive:       arch,
	})

	require.Equal(t, StopExhausted, report.StopReason)
	require.Equal(t, 2, arch.Len())
}
