// Package archive stores raw listing-page snapshots so extraction bugs can be
// replayed against the HTML that was actually fetched.
package archive

import "context"

// Store writes one snapshot and returns a URI locating it.
type Store interface {
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
}
