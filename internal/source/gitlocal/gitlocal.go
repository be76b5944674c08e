// Package gitlocal reads forensic data out of a local clone using go-git.
// A local clone can hold objects the platform no longer serves, so it is
// treated as its own evidence source even though it cannot be
// independently re-verified.
package gitlocal

import (
	"context"
	"time"
)

// Commit is a commit as read from local object storage.
type Commit struct {
	SHA            string
	Message        string
	AuthorName     string
	AuthorEmail    string
	AuthoredAt     time.Time
	CommitterName  string
	CommitterEmail string
	CommittedAt    time.Time
	Parents        []string
}

// ChangedFile is one file touched by a commit.
type ChangedFile struct {
	Filename string
	Status   string // added, modified, removed
}

// LogOptions bound a commit log walk.
type LogOptions struct {
	Ref   string
	Since *time.Time
	Until *time.Time
	Limit int
}

// API is the local-VCS contract the collectors consume.
type API interface {
	Commit(ctx context.Context, sha string) (*Commit, error)
	CommitFiles(ctx context.Context, sha string) ([]ChangedFile, error)
	Log(ctx context.Context, opts LogOptions) ([]Commit, error)
	// FindDangling enumerates commit objects present in storage but not
	// reachable from any ref.
	FindDangling(ctx context.Context) ([]string, error)
}
