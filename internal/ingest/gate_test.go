package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobradar/internal/geo"
	"jobradar/internal/lexicon"
	"jobradar/internal/notify/memory"
	"jobradar/internal/posting"
	memstore "jobradar/internal/store/memory"
)

func newGate(t *testing.T, st *memstore.Store) (*Gate, *memory.Publisher) {
	t.Helper()
	pub := memory.New()
	g := New(
		st,
		geo.NewCanonicalizer(geo.DefaultGazetteer(), ""),
		lexicon.NewExtractor(lexicon.DefaultLexicon()),
		pub,
		zaptest.NewLogger(t),
	)
	return g, pub
}

func sampleRaw(url string) posting.Raw {
	return posting.Raw{
		Title:        "Développeur React",
		Company:      "Acme Maroc",
		LocationText: "Casablanca / Sidi Maarouf",
		DateText:     "il y a 2 jours",
		Description:  "Stack React and Docker, anglais requis",
		URL:          url,
		SourceID:     "emploi.ma",
	}
}

func TestIngestAcceptsAndNormalizes(t *testing.T) {
	t.Parallel()
	st := memstore.New(geo.UnknownRegion)
	g, pub := newGate(t, st)

	out := g.Ingest(context.Background(), sampleRaw("https://www.emploi.ma/offre/1"))
	require.Equal(t, posting.Accepted, out.Disposition)
	require.NotNil(t, out.Posting)
	require.Equal(t, "Casablanca", out.Posting.Location)
	require.Equal(t, posting.TierConfident, out.Posting.DateTier)
	require.NotNil(t, out.Posting.PostedAt)
	require.Subset(t, out.Posting.Technologies, []string{"React", "Docker"})
	require.Contains(t, out.Posting.Skills, "Anglais")
	require.Len(t, pub.Messages(), 1)
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()
	st := memstore.New(geo.UnknownRegion)
	g, pub := newGate(t, st)
	ctx := context.Background()

	raw := sampleRaw("https://www.emploi.ma/offre/2")
	require.Equal(t, posting.Accepted, g.Ingest(ctx, raw).Disposition)
	require.Equal(t, posting.DuplicateSkipped, g.Ingest(ctx, raw).Disposition)

	// Exactly one posting and exactly one increment per term.
	require.Len(t, st.Postings(), 1)
	stats, err := st.TechnologyStats(ctx, 10)
	require.NoError(t, err)
	for _, tc := range stats {
		require.Equal(t, int64(1), tc.Count, "term %s", tc.Name)
	}
	require.Len(t, pub.Messages(), 1)
}

func TestIngestConcurrentSameURL(t *testing.T) {
	t.Parallel()
	st := memstore.New(geo.UnknownRegion)
	g, _ := newGate(t, st)
	ctx := context.Background()

	const workers = 8
	outcomes := make([]posting.IngestOutcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = g.Ingest(ctx, sampleRaw("https://www.rekrute.com/offres/77"))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, out := range outcomes {
		switch out.Disposition {
		case posting.Accepted:
			accepted++
		case posting.DuplicateSkipped:
		default:
			t.Fatalf("unexpected disposition %s (%s)", out.Disposition, out.Reason)
		}
	}
	require.Equal(t, 1, accepted)
	require.Len(t, st.Postings(), 1)
}

func TestIngestRejectsInvalid(t *testing.T) {
	t.Parallel()
	st := memstore.New(geo.UnknownRegion)
	g, _ := newGate(t, st)
	ctx := context.Background()

	raw := sampleRaw("")
	require.Equal(t, posting.Rejected, g.Ingest(ctx, raw).Disposition)

	raw = sampleRaw("https://x/1")
	raw.Title = "  "
	require.Equal(t, posting.Rejected, g.Ingest(ctx, raw).Disposition)

	require.Empty(t, st.Postings())
}

func TestIngestUnresolvedDateUsesFallback(t *testing.T) {
	t.Parallel()
	st := memstore.New(geo.UnknownRegion)
	g, _ := newGate(t, st)

	fallback := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	raw := sampleRaw("https://www.bayt.com/job/5")
	raw.DateText = "CDI temps plein"
	raw.FallbackPostedAt = fallback
	raw.HasFallbackPostedAt = true

	out := g.Ingest(context.Background(), raw)
	require.Equal(t, posting.Accepted, out.Disposition)
	require.Equal(t, posting.TierEstimated, out.Posting.DateTier)
	require.NotNil(t, out.Posting.PostedAt)
	require.Equal(t, fallback, *out.Posting.PostedAt)
}

func TestIngestUnresolvedDateWithoutFallback(t *testing.T) {
	t.Parallel()
	st := memstore.New(geo.UnknownRegion)
	g, _ := newGate(t, st)

	raw := sampleRaw("https://www.bayt.com/job/6")
	raw.DateText = ""

	out := g.Ingest(context.Background(), raw)
	require.Equal(t, posting.Accepted, out.Disposition)
	require.Equal(t, posting.TierUnresolved, out.Posting.DateTier)
	require.Nil(t, out.Posting.PostedAt)
}
