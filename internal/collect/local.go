package collect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/source/gitlocal"
)

// LocalCollector builds observations from a local clone. Local evidence
// is self-attested; its verification source marks it as such.
type LocalCollector struct {
	client gitlocal.API
	logger *slog.Logger
}

func NewLocalCollector(client gitlocal.API, logger *slog.Logger) *LocalCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalCollector{client: client, logger: logger}
}

func (c *LocalCollector) CollectCommit(ctx context.Context, sha string) (*evidence.CommitObservation, error) {
	data, err := c.client.Commit(ctx, sha)
	if err != nil {
		return nil, err
	}
	filesData, err := c.client.CommitFiles(ctx, data.SHA)
	if err != nil {
		return nil, err
	}

	files := make([]evidence.FileChange, 0, len(filesData))
	for _, f := range filesData {
		files = append(files, evidence.FileChange{Filename: f.Filename, Status: f.Status})
	}

	authoredAt := data.AuthoredAt
	obs := &evidence.CommitObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   evidenceID("commit-git", data.SHA),
			OriginalWhen: &authoredAt,
			OriginalWho:  &evidence.Actor{Login: data.AuthorName},
			OriginalWhat: firstLine(data.Message),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceGit,
			ObservedWhat: fmt.Sprintf("Commit %s observed from local git", short(data.SHA)),
			Verification: evidence.Verification{Source: evidence.SourceGit},
		},
		SHA:       data.SHA,
		Message:   data.Message,
		Author:    evidence.CommitAuthor{Name: data.AuthorName, Email: data.AuthorEmail, Date: data.AuthoredAt},
		Committer: evidence.CommitAuthor{Name: data.CommitterName, Email: data.CommitterEmail, Date: data.CommittedAt},
		Parents:   data.Parents,
		Files:     files,
	}
	return obs, obs.Validate()
}

// CollectHistory records every commit reachable from ref (HEAD when empty),
// bounded by the given time window and limit. Useful for capturing a clone's
// view of history before it diverges from the platform's.
func (c *LocalCollector) CollectHistory(ctx context.Context, opts gitlocal.LogOptions) ([]*evidence.CommitObservation, error) {
	commits, err := c.client.Log(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := make([]*evidence.CommitObservation, 0, len(commits))
	for i := range commits {
		obs, err := c.CollectCommit(ctx, commits[i].SHA)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping unreadable commit in log walk", "sha", commits[i].SHA, "error", err)
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

// CollectDanglingCommits enumerates commits unreachable from any ref and
// records each as a dangling commit observation. Unreadable objects are
// logged and skipped rather than aborting the sweep.
func (c *LocalCollector) CollectDanglingCommits(ctx context.Context) ([]*evidence.CommitObservation, error) {
	shas, err := c.client.FindDangling(ctx)
	if err != nil {
		return nil, err
	}

	var out []*evidence.CommitObservation
	for _, sha := range shas {
		obs, err := c.CollectCommit(ctx, sha)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping unreadable dangling commit", "sha", sha, "error", err)
			continue
		}
		obs.IsDangling = true
		out = append(out, obs)
	}
	return out, nil
}
