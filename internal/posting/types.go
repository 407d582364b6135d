// Package posting defines the core domain types shared across the crawl,
// normalization and persistence subsystems.
package posting

import "time"

// DateTier classifies how a posting's publication date was resolved.
type DateTier string

// Date confidence tiers, ordered from most to least trustworthy.
const (
	// TierConfident means the date was parsed from an explicit absolute or
	// relative phrase on the card.
	TierConfident DateTier = "confident"
	// TierEstimated means the date was derived from a weak signal such as
	// page position or an open-ended phrase ("30+ jours").
	TierEstimated DateTier = "estimated"
	// TierUnresolved means no date could be determined at all.
	TierUnresolved DateTier = "unresolved"
)

// Confident reports whether the tier is trustworthy enough to drive
// recency-based stopping decisions.
func (t DateTier) Confident() bool {
	return t == TierConfident
}

// Raw is the uniform output of an extraction adapter: one card as it appeared
// on a listing page, before any normalization. Raw values are ephemeral and
// discarded once ingested.
type Raw struct {
	Title        string
	Company      string
	LocationText string
	DateText     string
	Description  string
	// URL is the posting's canonical link on the source site. It is the
	// global identity used for deduplication.
	URL      string
	SourceID string

	// FallbackPostedAt is an estimate attached by the crawl controller
	// (derived from page position) used only when DateText cannot be parsed.
	FallbackPostedAt    time.Time
	HasFallbackPostedAt bool
}

// Posting is the canonical, persisted representation of one job posting.
// Immutable after insert.
type Posting struct {
	ID           int64
	Title        string
	Company      string
	Location     string
	Technologies []string
	Skills       []string
	Description  string
	PostedAt     *time.Time
	DateTier     DateTier
	SourceID     string
	SourceURL    string
	IngestedAt   time.Time
}

// IsNew reports whether the posting was ingested within the last 24 hours.
// This is a derived reporting flag, not part of the posting's identity.
func (p Posting) IsNew(now time.Time) bool {
	return now.Sub(p.IngestedAt) < 24*time.Hour
}
