// Package github wraps the GitHub REST API behind a kit-owned contract.
// All read operations work unauthenticated against public repositories;
// a token raises the rate limit but is never required.
package github

import (
	"context"
	"time"
)

// Commit is a commit as the API reports it.
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
	Files          []ChangedFile
}

// ChangedFile is one file touched by a commit.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// Issue is an issue or pull request. Merged is only meaningful for PRs.
type Issue struct {
	Number        int
	Title         string
	Body          string
	State         string
	Merged        bool
	IsPullRequest bool
	User          string
	CreatedAt     time.Time
}

// File is file content at a ref, decoded from the API's base64 form.
type File struct {
	Path    string
	Ref     string
	SHA     string
	Size    int64
	Content string
}

// Branch is a branch and its head commit.
type Branch struct {
	Name      string
	HeadSHA   string
	Protected bool
}

// Tag is a tag ref and the object it points at.
type Tag struct {
	Name      string
	TargetSHA string
}

// Release is a published release.
type Release struct {
	TagName     string
	Name        string
	Body        string
	CreatedAt   *time.Time
	PublishedAt *time.Time
	Prerelease  bool
	Draft       bool
}

// Fork is one fork of a repository.
type Fork struct {
	FullName  string
	Owner     string
	Name      string
	CreatedAt *time.Time
}

// Repo is basic repository metadata.
type Repo struct {
	Owner    string
	Name     string
	FullName string
	ID       int64
	Private  bool
	Fork     bool
}

// API is the read contract the verifier and collectors consume. Every call
// returns an error on any non-success status, including not-found.
type API interface {
	GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*Issue, error)
	GetFile(ctx context.Context, owner, repo, path, ref string) (*File, error)
	GetBranch(ctx context.Context, owner, repo, name string) (*Branch, error)
	GetTag(ctx context.Context, owner, repo, name string) (*Tag, error)
	GetRelease(ctx context.Context, owner, repo, tag string) (*Release, error)
	GetForks(ctx context.Context, owner, repo string) ([]Fork, error)
	GetRepo(ctx context.Context, owner, repo string) (*Repo, error)
}
