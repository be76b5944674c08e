package evidence

import (
	"fmt"
	"time"
)

// ObservationType tags each observation variant for serialization and
// dispatch.
type ObservationType string

const (
	ObservationCommit   ObservationType = "commit"
	ObservationIssue    ObservationType = "issue"
	ObservationFile     ObservationType = "file"
	ObservationFork     ObservationType = "fork"
	ObservationBranch   ObservationType = "branch"
	ObservationTag      ObservationType = "tag"
	ObservationRelease  ObservationType = "release"
	ObservationSnapshot ObservationType = "snapshot"
	ObservationIOC      ObservationType = "ioc"
	ObservationArticle  ObservationType = "article"
)

// CommitAuthor is one side of a commit's author/committer identity pair.
type CommitAuthor struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// FileChange describes one file touched by a commit.
type FileChange struct {
	Filename  string  `json:"filename"`
	Status    string  `json:"status"` // added, modified, removed, renamed
	Additions int     `json:"additions,omitempty"`
	Deletions int     `json:"deletions,omitempty"`
	Patch     *string `json:"patch,omitempty"`
}

// CommitObservation is a commit found on the platform or in a local clone.
type CommitObservation struct {
	ObservationBase
	SHA       string       `json:"sha"`
	Message   string       `json:"message"`
	Author    CommitAuthor `json:"author"`
	Committer CommitAuthor `json:"committer"`
	Parents   []string     `json:"parents,omitempty"`
	Files     []FileChange `json:"files,omitempty"`

	// IsDangling marks a commit not reachable through any tracked ref,
	// suggestive of out-of-band access.
	IsDangling bool `json:"is_dangling,omitempty"`
}

func (*CommitObservation) ObservationType() ObservationType { return ObservationCommit }

func (o *CommitObservation) Validate() error {
	if err := o.ObservationBase.Validate(); err != nil {
		return err
	}
	if !isHexSHA(o.SHA) {
		return fmt.Errorf("sha: %q is not a 40-character hex string", o.SHA)
	}
	return nil
}

func isHexSHA(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// IssueObservation is an issue or pull request found on the platform.
type IssueObservation struct {
	ObservationBase
	IssueNumber   int     `json:"issue_number"`
	IsPullRequest bool    `json:"is_pull_request,omitempty"`
	Title         *string `json:"title,omitempty"`
	Body          *string `json:"body,omitempty"`
	State         *string `json:"state,omitempty"` // open, closed, merged
}

func (*IssueObservation) ObservationType() ObservationType { return ObservationIssue }

// FileObservation is file content found at a ref.
type FileObservation struct {
	ObservationBase
	FilePath    string  `json:"file_path"`
	Branch      *string `json:"branch,omitempty"`
	Content     string  `json:"content,omitempty"`      // may be empty for large files
	ContentHash *string `json:"content_hash,omitempty"` // sha256 of the content
	SizeBytes   int64   `json:"size_bytes,omitempty"`
}

func (*FileObservation) ObservationType() ObservationType { return ObservationFile }

// ForkObservation is a fork relationship between two repositories.
type ForkObservation struct {
	ObservationBase
	ForkFullName   string     `json:"fork_full_name"`
	ParentFullName string     `json:"parent_full_name,omitempty"`
	ForkOwner      *string    `json:"fork_owner,omitempty"`
	ForkRepo       *string    `json:"fork_repo,omitempty"`
	ForkedAt       *time.Time `json:"forked_at,omitempty"`
}

func (*ForkObservation) ObservationType() ObservationType { return ObservationFork }

// BranchObservation is a branch and its head commit.
type BranchObservation struct {
	ObservationBase
	BranchName string  `json:"branch_name"`
	HeadSHA    *string `json:"head_sha,omitempty"`
	Protected  bool    `json:"protected,omitempty"`
}

func (*BranchObservation) ObservationType() ObservationType { return ObservationBranch }

// TagObservation is a tag and the object it points at.
type TagObservation struct {
	ObservationBase
	TagName   string  `json:"tag_name"`
	TargetSHA *string `json:"target_sha,omitempty"`
}

func (*TagObservation) ObservationType() ObservationType { return ObservationTag }

// ReleaseObservation is a published release.
type ReleaseObservation struct {
	ObservationBase
	TagName      string     `json:"tag_name"`
	ReleaseName  *string    `json:"release_name,omitempty"`
	ReleaseBody  *string    `json:"release_body,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	IsPrerelease bool       `json:"is_prerelease,omitempty"`
	IsDraft      bool       `json:"is_draft,omitempty"`
}

func (*ReleaseObservation) ObservationType() ObservationType { return ObservationRelease }

// ArchivedSnapshot is a single web-archive capture as returned by the CDX
// API. String-typed fields mirror the raw CDX row.
type ArchivedSnapshot struct {
	Timestamp  string `json:"timestamp"` // YYYYMMDDHHMMSS
	Original   string `json:"original"`
	Digest     string `json:"digest,omitempty"`
	MimeType   string `json:"mimetype,omitempty"`
	StatusCode string `json:"statuscode,omitempty"`
	Length     string `json:"length,omitempty"`
}

// SnapshotObservation is the set of archived captures found for a URL.
type SnapshotObservation struct {
	ObservationBase
	OriginalURL    string             `json:"original_url"`
	Snapshots      []ArchivedSnapshot `json:"snapshots"`
	TotalSnapshots int                `json:"total_snapshots"`
}

func (*SnapshotObservation) ObservationType() ObservationType { return ObservationSnapshot }

// IOC is an indicator of compromise: a typed forensic artifact extracted
// from other evidence.
type IOC struct {
	ObservationBase
	IOCType       IOCType    `json:"ioc_type"`
	Value         string     `json:"value"`
	Confidence    Confidence `json:"confidence,omitempty"`
	FirstSeen     *time.Time `json:"first_seen,omitempty"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	ExtractedFrom *string    `json:"extracted_from,omitempty"` // evidence id
}

func (*IOC) ObservationType() ObservationType { return ObservationIOC }

func (o *IOC) Validate() error {
	if err := o.ObservationBase.Validate(); err != nil {
		return err
	}
	if !o.IOCType.Valid() {
		return fmt.Errorf("ioc_type: unknown IOC type %q", o.IOCType)
	}
	return nil
}

// ArticleObservation is an external article documenting the incident.
type ArticleObservation struct {
	ObservationBase
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Author        *string    `json:"author,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	SourceName    *string    `json:"source_name,omitempty"`
	Summary       *string    `json:"summary,omitempty"`
	EvidenceIDs   []string   `json:"evidence_ids,omitempty"`
}

func (*ArticleObservation) ObservationType() ObservationType { return ObservationArticle }
