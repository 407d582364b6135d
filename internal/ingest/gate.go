// Package ingest turns raw extracted cards into canonical postings behind a
// dedup gate.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobradar/internal/geo"
	"jobradar/internal/lexicon"
	"jobradar/internal/normalize"
	"jobradar/internal/notify"
	"jobradar/internal/posting"
	"jobradar/internal/store"
)

// PostingTopic is the topic new-posting events are published on.
const PostingTopic = "postings.ingested"

// Gate is the single entry point for persisting postings. It deduplicates by
// source URL, normalizes, extracts keywords and persists atomically. Safe for
// concurrent use from all crawl workers.
type Gate struct {
	store     store.Store
	canon     *geo.Canonicalizer
	extractor *lexicon.Extractor
	publisher notify.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// New wires a Gate. publisher may be nil to disable notifications.
func New(st store.Store, canon *geo.Canonicalizer, ex *lexicon.Extractor, pub notify.Publisher, logger *zap.Logger) *Gate {
	return &Gate{
		store:     st,
		canon:     canon,
		extractor: ex,
		publisher: pub,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (g *Gate) WithNow(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Ingest submits one raw card. Duplicates do no normalization work. The
// storage uniqueness constraint is the final authority, so a race between two
// concurrent ingests of the same URL yields exactly one Accepted.
func (g *Gate) Ingest(ctx context.Context, raw posting.Raw) posting.IngestOutcome {
	if strings.TrimSpace(raw.URL) == "" {
		return rejected("missing url")
	}
	if strings.TrimSpace(raw.Title) == "" {
		return rejected("missing title")
	}

	exists, err := g.store.Exists(ctx, raw.URL)
	if err != nil {
		return rejected(fmt.Sprintf("existence check: %v", err))
	}
	if exists {
		return posting.IngestOutcome{Disposition: posting.DuplicateSkipped}
	}

	now := g.now().UTC()
	postedAt, tier := normalize.NormalizeWithFallback(raw.DateText, now, raw.FallbackPostedAt, raw.HasFallbackPostedAt)

	fullText := raw.Title + " " + raw.Description + " " + raw.Company
	techs, skills := g.extractor.Extract(fullText)

	p := &posting.Posting{
		Title:        strings.TrimSpace(raw.Title),
		Company:      orDefault(raw.Company, "Non spécifié"),
		Location:     g.canon.Canonicalize(raw.LocationText),
		Technologies: techs,
		Skills:       skills,
		Description:  strings.TrimSpace(raw.Description),
		DateTier:     tier,
		SourceID:     raw.SourceID,
		SourceURL:    raw.URL,
		IngestedAt:   now,
	}
	if !postedAt.IsZero() {
		p.PostedAt = &postedAt
	}

	err = g.store.InsertPostingAndIncrementStats(ctx, p)
	if errors.Is(err, store.ErrDuplicateURL) {
		// Lost a race with a concurrent ingest of the same URL.
		return posting.IngestOutcome{Disposition: posting.DuplicateSkipped}
	}
	if err != nil {
		g.logger.Warn("posting insert failed",
			zap.String("url", raw.URL),
			zap.String("source", raw.SourceID),
			zap.Error(err))
		return rejected(err.Error())
	}

	g.notifyAccepted(ctx, p)
	return posting.IngestOutcome{Disposition: posting.Accepted, Posting: p}
}

func (g *Gate) notifyAccepted(ctx context.Context, p *posting.Posting) {
	if g.publisher == nil {
		return
	}
	event := notify.PostingEvent{
		ID:         p.ID,
		Title:      p.Title,
		Company:    p.Company,
		Location:   p.Location,
		SourceID:   p.SourceID,
		SourceURL:  p.SourceURL,
		IngestedAt: p.IngestedAt,
	}
	if _, err := g.publisher.Publish(ctx, PostingTopic, event); err != nil {
		g.logger.Warn("posting event publish failed",
			zap.String("url", p.SourceURL),
			zap.Error(err))
	}
}

func rejected(reason string) posting.IngestOutcome {
	return posting.IngestOutcome{Disposition: posting.Rejected, Reason: reason}
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
