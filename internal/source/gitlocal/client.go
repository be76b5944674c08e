package gitlocal

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/revlist"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Client implements API over a repository on disk.
type Client struct {
	repo *git.Repository
}

var _ API = (*Client)(nil)

func Open(path string) (*Client, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return &Client{repo: repo}, nil
}

func (c *Client) Commit(_ context.Context, sha string) (*Commit, error) {
	commit, err := c.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", sha, err)
	}
	return toCommit(commit), nil
}

func toCommit(commit *object.Commit) *Commit {
	out := &Commit{
		SHA:            commit.Hash.String(),
		Message:        commit.Message,
		AuthorName:     commit.Author.Name,
		AuthorEmail:    commit.Author.Email,
		AuthoredAt:     commit.Author.When,
		CommitterName:  commit.Committer.Name,
		CommitterEmail: commit.Committer.Email,
		CommittedAt:    commit.Committer.When,
	}
	for _, p := range commit.ParentHashes {
		out.Parents = append(out.Parents, p.String())
	}
	return out
}

func (c *Client) CommitFiles(_ context.Context, sha string) ([]ChangedFile, error) {
	commit, err := c.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", sha, err)
	}

	// Diff against the first parent; an initial commit diffs against the
	// empty tree, reporting everything as added.
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("reading parent of %s: %w", sha, err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("reading parent tree of %s: %w", sha, err)
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", sha, err)
	}

	files := make([]ChangedFile, 0, len(changes))
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("diffing %s: %w", sha, err)
		}
		switch action {
		case merkletrie.Insert:
			files = append(files, ChangedFile{Filename: change.To.Name, Status: "added"})
		case merkletrie.Delete:
			files = append(files, ChangedFile{Filename: change.From.Name, Status: "removed"})
		case merkletrie.Modify:
			files = append(files, ChangedFile{Filename: change.To.Name, Status: "modified"})
		}
	}
	return files, nil
}

func (c *Client) Log(_ context.Context, opts LogOptions) ([]Commit, error) {
	from, err := c.resolveRef(opts.Ref)
	if err != nil {
		return nil, err
	}

	iter, err := c.repo.Log(&git.LogOptions{
		From:  from,
		Since: opts.Since,
		Until: opts.Until,
	})
	if err != nil {
		return nil, fmt.Errorf("walking log from %s: %w", opts.Ref, err)
	}
	defer iter.Close()

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	var commits []Commit
	err = iter.ForEach(func(commit *object.Commit) error {
		if len(commits) >= limit {
			return storer.ErrStop
		}
		commits = append(commits, *toCommit(commit))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking log from %s: %w", opts.Ref, err)
	}
	return commits, nil
}

func (c *Client) resolveRef(ref string) (plumbing.Hash, error) {
	if ref == "" || ref == "HEAD" {
		head, err := c.repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("resolving HEAD: %w", err)
		}
		return head.Hash(), nil
	}
	hash, err := c.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving %s: %w", ref, err)
	}
	return *hash, nil
}

// FindDangling walks every commit object in storage and subtracts the set
// reachable from refs. Leftovers are commits that were pushed or created
// and later orphaned.
func (c *Client) FindDangling(_ context.Context) ([]string, error) {
	refs, err := c.repo.References()
	if err != nil {
		return nil, fmt.Errorf("listing refs: %w", err)
	}
	var tips []plumbing.Hash
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.HashReference {
			tips = append(tips, ref.Hash())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing refs: %w", err)
	}

	reachable := map[plumbing.Hash]struct{}{}
	if len(tips) > 0 {
		hashes, err := revlist.Objects(c.repo.Storer, tips, nil)
		if err != nil {
			return nil, fmt.Errorf("computing reachable objects: %w", err)
		}
		for _, h := range hashes {
			reachable[h] = struct{}{}
		}
	}

	all, err := c.repo.CommitObjects()
	if err != nil {
		return nil, fmt.Errorf("listing commit objects: %w", err)
	}
	defer all.Close()

	var dangling []string
	err = all.ForEach(func(commit *object.Commit) error {
		if _, ok := reachable[commit.Hash]; !ok {
			dangling = append(dangling, commit.Hash.String())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing commit objects: %w", err)
	}
	return dangling, nil
}
