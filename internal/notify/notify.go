// Package notify publishes events about newly ingested postings. Publishing
// is best-effort: a failed publish never fails the ingest that triggered it.
package notify

import (
	"context"
	"time"
)

// Publisher sends a payload to a named topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// PostingEvent is the payload published for every accepted posting.
type PostingEvent struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Company    string    `json:"company"`
	Location   string    `json:"location"`
	SourceID   string    `json:"source_id"`
	SourceURL  string    `json:"source_url"`
	IngestedAt time.Time `json:"ingested_at"`
}
