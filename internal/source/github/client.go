package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gogithub "github.com/google/go-github/v66/github"
)

// Client implements API on top of the official REST client.
type Client struct {
	gh *gogithub.Client
}

var _ API = (*Client)(nil)

// NewClient builds a REST client. An empty token means unauthenticated
// access (60 requests/hour); public repository data needs no auth.
func NewClient(token string, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	gh := gogithub.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return &Client{gh: gh}
}

func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error) {
	rc, _, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching commit %s/%s@%s: %w", owner, repo, sha, err)
	}

	out := &Commit{SHA: rc.GetSHA()}
	if commit := rc.GetCommit(); commit != nil {
		out.Message = commit.GetMessage()
		if a := commit.GetAuthor(); a != nil {
			out.AuthorName = a.GetName()
			out.AuthorEmail = a.GetEmail()
			out.AuthoredAt = a.GetDate().Time
		}
		if cm := commit.GetCommitter(); cm != nil {
			out.CommitterName = cm.GetName()
			out.CommitterEmail = cm.GetEmail()
			out.CommittedAt = cm.GetDate().Time
		}
	}
	for _, p := range rc.Parents {
		out.Parents = append(out.Parents, p.GetSHA())
	}
	for _, f := range rc.Files {
		out.Files = append(out.Files, ChangedFile{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     f.GetPatch(),
		})
	}
	return out, nil
}

func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	issue, _, err := c.gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return &Issue{
		Number:        issue.GetNumber(),
		Title:         issue.GetTitle(),
		Body:          issue.GetBody(),
		State:         issue.GetState(),
		IsPullRequest: issue.IsPullRequest(),
		User:          issue.GetUser().GetLogin(),
		CreatedAt:     issue.GetCreatedAt().Time,
	}, nil
}

func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	return &Issue{
		Number:        pr.GetNumber(),
		Title:         pr.GetTitle(),
		Body:          pr.GetBody(),
		State:         pr.GetState(),
		Merged:        pr.GetMerged(),
		IsPullRequest: true,
		User:          pr.GetUser().GetLogin(),
		CreatedAt:     pr.GetCreatedAt().Time,
	}, nil
}

func (c *Client) GetFile(ctx context.Context, owner, repo, path, ref string) (*File, error) {
	opts := &gogithub.RepositoryContentGetOptions{Ref: ref}
	fileContent, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, fmt.Errorf("fetching file %s/%s:%s@%s: %w", owner, repo, path, ref, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("fetching file %s/%s:%s@%s: path is a directory", owner, repo, path, ref)
	}
	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding file %s/%s:%s: %w", owner, repo, path, err)
	}
	return &File{
		Path:    fileContent.GetPath(),
		Ref:     ref,
		SHA:     fileContent.GetSHA(),
		Size:    int64(fileContent.GetSize()),
		Content: content,
	}, nil
}

func (c *Client) GetBranch(ctx context.Context, owner, repo, name string) (*Branch, error) {
	branch, _, err := c.gh.Repositories.GetBranch(ctx, owner, repo, name, 1)
	if err != nil {
		return nil, fmt.Errorf("fetching branch %s/%s@%s: %w", owner, repo, name, err)
	}
	return &Branch{
		Name:      branch.GetName(),
		HeadSHA:   branch.GetCommit().GetSHA(),
		Protected: branch.GetProtected(),
	}, nil
}

func (c *Client) GetTag(ctx context.Context, owner, repo, name string) (*Tag, error) {
	ref, _, err := c.gh.Git.GetRef(ctx, owner, repo, "tags/"+name)
	if err != nil {
		return nil, fmt.Errorf("fetching tag %s/%s@%s: %w", owner, repo, name, err)
	}
	return &Tag{
		Name:      name,
		TargetSHA: ref.GetObject().GetSHA(),
	}, nil
}

func (c *Client) GetRelease(ctx context.Context, owner, repo, tag string) (*Release, error) {
	rel, _, err := c.gh.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return nil, fmt.Errorf("fetching release %s/%s@%s: %w", owner, repo, tag, err)
	}
	out := &Release{
		TagName:    rel.GetTagName(),
		Name:       rel.GetName(),
		Body:       rel.GetBody(),
		Prerelease: rel.GetPrerelease(),
		Draft:      rel.GetDraft(),
	}
	if ts := rel.CreatedAt; ts != nil {
		t := ts.Time
		out.CreatedAt = &t
	}
	if ts := rel.PublishedAt; ts != nil {
		t := ts.Time
		out.PublishedAt = &t
	}
	return out, nil
}

func (c *Client) GetForks(ctx context.Context, owner, repo string) ([]Fork, error) {
	opts := &gogithub.RepositoryListForksOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	repos, _, err := c.gh.Repositories.ListForks(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("fetching forks of %s/%s: %w", owner, repo, err)
	}
	forks := make([]Fork, 0, len(repos))
	for _, r := range repos {
		f := Fork{
			FullName: r.GetFullName(),
			Owner:    r.GetOwner().GetLogin(),
			Name:     r.GetName(),
		}
		if ts := r.CreatedAt; ts != nil {
			t := ts.Time
			f.CreatedAt = &t
		}
		forks = append(forks, f)
	}
	return forks, nil
}

func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, repo, err)
	}
	return &Repo{
		Owner:    r.GetOwner().GetLogin(),
		Name:     r.GetName(),
		FullName: r.GetFullName(),
		ID:       r.GetID(),
		Private:  r.GetPrivate(),
		Fork:     r.GetFork(),
	}, nil
}
