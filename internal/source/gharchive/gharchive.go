// Package gharchive queries the GH Archive public dataset on BigQuery.
// GH Archive keeps the raw platform event stream even after the platform
// itself rewrites history, which is what makes it useful as an independent
// verification source.
package gharchive

import (
	"context"
	"time"
)

// Row is one raw event row from the githubarchive dataset.
type Row struct {
	Type       string
	CreatedAt  time.Time
	ActorLogin string
	ActorID    int64
	RepoName   string
	RepoID     int64
	Payload    string
}

// Query selects events from a single archive minute. From is required and
// must be a YYYYMMDDHHMM timestamp; the other fields narrow the match.
type Query struct {
	Repo      string
	Actor     string
	EventType string
	From      string
}

// API is the archive-query contract the verifier and collectors consume.
type API interface {
	// Available reports whether query credentials are configured. When it
	// returns false the verifier records a skip, not a failure.
	Available(ctx context.Context) bool
	QueryEvents(ctx context.Context, q Query) ([]Row, error)
}
