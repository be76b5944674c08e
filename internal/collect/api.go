package collect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/source/github"
)

// APICollector builds observations from the primary platform API.
type APICollector struct {
	client github.API
}

func NewAPICollector(client github.API) *APICollector {
	return &APICollector{client: client}
}

func (c *APICollector) CollectCommit(ctx context.Context, owner, repo, sha string) (*evidence.CommitObservation, error) {
	data, err := c.client.GetCommit(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}

	files := make([]evidence.FileChange, 0, len(data.Files))
	for _, f := range data.Files {
		change := evidence.FileChange{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
		}
		if f.Patch != "" {
			patch := f.Patch
			change.Patch = &patch
		}
		files = append(files, change)
	}

	committedAt := data.CommittedAt
	obs := &evidence.CommitObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   evidenceID("commit", owner+"/"+repo, data.SHA),
			OriginalWhen: &committedAt,
			OriginalWho:  &evidence.Actor{Login: data.AuthorName},
			OriginalWhat: firstLine(data.Message),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceGitHub,
			ObservedWhat: fmt.Sprintf("Commit %s observed via GitHub API", short(data.SHA)),
			Repository:   makeRepo(owner, repo),
			Verification: evidence.Verification{
				Source: evidence.SourceGitHub,
				URL:    fmt.Sprintf("https://github.com/%s/%s/commit/%s", owner, repo, data.SHA),
			},
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

func (c *APICollector) CollectIssue(ctx context.Context, owner, repo string, number int) (*evidence.IssueObservation, error) {
	return c.collectIssueOrPR(ctx, owner, repo, number, false)
}

func (c *APICollector) CollectPullRequest(ctx context.Context, owner, repo string, number int) (*evidence.IssueObservation, error) {
	return c.collectIssueOrPR(ctx, owner, repo, number, true)
}

func (c *APICollector) collectIssueOrPR(ctx context.Context, owner, repo string, number int, isPR bool) (*evidence.IssueObservation, error) {
	var (
		data *github.Issue
		err  error
	)
	if isPR {
		data, err = c.client.GetPullRequest(ctx, owner, repo, number)
	} else {
		data, err = c.client.GetIssue(ctx, owner, repo, number)
	}
	if err != nil {
		return nil, err
	}

	kind, path := "Issue", "issues"
	if isPR {
		kind, path = "PR", "pull"
	}
	state := data.State
	if data.Merged {
		state = "merged"
	}
	createdAt := data.CreatedAt
	title := data.Title
	body := data.Body

	obs := &evidence.IssueObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   evidenceID("issue", owner+"/"+repo, strconv.Itoa(number)),
			OriginalWhen: &createdAt,
			OriginalWho:  &evidence.Actor{Login: data.User},
			OriginalWhat: fmt.Sprintf("%s #%d created", kind, number),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceGitHub,
			ObservedWhat: fmt.Sprintf("%s #%d observed via GitHub API", kind, number),
			Repository:   makeRepo(owner, repo),
			Verification: evidence.Verification{
				Source: evidence.SourceGitHub,
				URL:    fmt.Sprintf("https://github.com/%s/%s/%s/%d", owner, repo, path, number),
			},
		},
		IssueNumber:   number,
		IsPullRequest: isPR,
		Title:         &title,
		Body:          &body,
		State:         &state,
	}
	return obs, obs.Validate()
}

func (c *APICollector) CollectFile(ctx context.Context, owner, repo, path, ref string) (*evidence.FileObservation, error) {
	data, err := c.client.GetFile(ctx, owner, repo, path, ref)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256([]byte(data.Content))
	hash := hex.EncodeToString(digest[:])
	branch := ref

	obs := &evidence.FileObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   evidenceID("file", owner+"/"+repo, path+"@"+ref),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceGitHub,
			ObservedWhat: fmt.Sprintf("File %s observed at %s via GitHub API", path, ref),
			Repository:   makeRepo(owner, repo),
			Verification: evidence.Verification{
				Source: evidence.SourceGitHub,
				URL:    fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, ref, path),
			},
		},
		FilePath:    path,
		Branch:      &branch,
		Content:     data.Content,
		ContentHash: &hash,
		SizeBytes:   data.Size,
	}
	return obs, obs.Validate()
}

func (c *APICollector) CollectBranch(ctx context.Context, owner, repo, name string) (*evidence.BranchObservation, error) {
	data, err := c.client.GetBranch(ctx, owner, repo, name)
	if err != nil {
		return nil, err
	}

	head := data.HeadSHA
	obs := &evidence.BranchObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   evidenceID("branch", owner+"/"+repo, name),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceGitHub,
			ObservedWhat: fmt.Sprintf("Branch %s observed via GitHub API", name),
			Repository:   makeRepo(owner, repo),
			Verification: evidence.Verification{
				Source: evidence.SourceGitHub,
				URL:    fmt.Sprintf("https://github.com/%s/%s/tree/%s", owner, repo, name),
			},
		},
		BranchName: name,
		HeadSHA:    &head,
		Protected:  data.Protected,
	}
	return obs, obs.Validate()
}

func (c *APICollector) CollectTag(ctx context.Context, owner, repo, name string) (*evidence.TagObservation, error) {
	data, err := c.client.GetTag(ctx, owner, repo, name)
	if err != nil {
		return nil, err
	}

	target := data.TargetSHA
	obs := &evidence.TagObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   evidenceID("tag", owner+"/"+repo, name),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceGitHub,
			ObservedWhat: fmt.Sprintf("Tag %s observed via GitHub API", name),
			Repository:   makeRepo(owner, repo),
			Verification: evidence.Verification{
				Source: evidence.SourceGitHub,
				URL:    fmt.Sprintf("https://github.com/%s/%s/releases/tag/%s", owner, repo, name),
			},
		},
		TagName:   name,
		TargetSHA: &target,
	}
	return obs, obs.Validate()
}

func (c *APICollector) CollectRelease(ctx context.Context, owner, repo, tag string) (*evidence.ReleaseObservation, error) {
	data, err := c.client.GetRelease(ctx, owner, repo, tag)
	if err != nil {
		return nil, err
	}

	name := data.Name
	body := data.Body
	obs := &evidence.ReleaseObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   evidenceID("release", owner+"/"+repo, tag),
			OriginalWhen: data.PublishedAt,
			OriginalWhat: fmt.Sprintf("Release %s published", tag),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceGitHub,
			ObservedWhat: fmt.Sprintf("Release %s observed via GitHub API", tag),
			Repository:   makeRepo(owner, repo),
			Verification: evidence.Verification{
				Source: evidence.SourceGitHub,
				URL:    fmt.Sprintf("https://github.com/%s/%s/releases/tag/%s", owner, repo, tag),
			},
		},
		TagName:      data.TagName,
		ReleaseName:  &name,
		ReleaseBody:  &body,
		CreatedAt:    data.CreatedAt,
		PublishedAt:  data.PublishedAt,
		IsPrerelease: data.Prerelease,
		IsDraft:      data.Draft,
	}
	return obs, obs.Validate()
}

func (c *APICollector) CollectForks(ctx context.Context, owner, repo string) ([]*evidence.ForkObservation, error) {
	forks, err := c.client.GetForks(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	// Resolve the parent's canonical identity so fork records survive a
	// later rename of the parent repository.
	parentRepo := makeRepo(owner, repo)
	if meta, err := c.client.GetRepo(ctx, owner, repo); err == nil && meta != nil {
		parentRepo = &evidence.Repository{
			Owner:    meta.Owner,
			Name:     meta.Name,
			FullName: meta.FullName,
			ID:       meta.ID,
		}
	}

	parent := parentRepo.FullName
	out := make([]*evidence.ForkObservation, 0, len(forks))
	for _, f := range forks {
		forkOwner := f.Owner
		forkRepo := f.Name
		obs := &evidence.ForkObservation{
			ObservationBase: evidence.ObservationBase{
				EvidenceID:   evidenceID("fork", f.FullName),
				OriginalWhen: f.CreatedAt,
				OriginalWhat: fmt.Sprintf("Fork %s created", f.FullName),
				ObservedWhen: now(),
				ObservedBy:   evidence.SourceGitHub,
				ObservedWhat: fmt.Sprintf("Fork %s observed via GitHub API", f.FullName),
				Repository:   parentRepo,
				Verification: evidence.Verification{
					Source: evidence.SourceGitHub,
					URL:    "https://github.com/" + f.FullName,
				},
			},
			ForkFullName:   f.FullName,
			ParentFullName: parent,
			ForkOwner:      &forkOwner,
			ForkRepo:       &forkRepo,
			ForkedAt:       f.CreatedAt,
		}
		if err := obs.Validate(); err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}
