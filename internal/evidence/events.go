package evidence

import "fmt"

// EventType tags each event variant for serialization and dispatch.
type EventType string

const (
	EventPush         EventType = "push"
	EventPullRequest  EventType = "pull_request"
	EventIssue        EventType = "issue"
	EventIssueComment EventType = "issue_comment"
	EventCreate       EventType = "create"
	EventDelete       EventType = "delete"
	EventFork         EventType = "fork"
	EventWorkflowRun  EventType = "workflow_run"
	EventRelease      EventType = "release"
	EventWatch        EventType = "watch"
	EventMember       EventType = "member"
	EventPublic       EventType = "public"
)

// EmbeddedCommit is a commit summary carried inside a push event payload.
type EmbeddedCommit struct {
	SHA         string `json:"sha"`
	Message     string `json:"message"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

// PushEvent records commits being pushed to a ref.
type PushEvent struct {
	EventBase
	Ref         string           `json:"ref"`
	BeforeSHA   string           `json:"before_sha"`
	AfterSHA    string           `json:"after_sha"`
	Size        int              `json:"size"`
	Commits     []EmbeddedCommit `json:"commits,omitempty"`
	IsForcePush bool             `json:"is_force_push,omitempty"`
}

func (*PushEvent) EventType() EventType { return EventPush }

// PullRequestEvent records a pull request action.
type PullRequestEvent struct {
	EventBase
	Action   string  `json:"action"`
	PRNumber int     `json:"pr_number"`
	PRTitle  string  `json:"pr_title"`
	PRBody   *string `json:"pr_body,omitempty"`
	HeadSHA  *string `json:"head_sha,omitempty"`
	Merged   bool    `json:"merged,omitempty"`
}

func (*PullRequestEvent) EventType() EventType { return EventPullRequest }

// IssueEvent records an issue action.
type IssueEvent struct {
	EventBase
	Action      string  `json:"action"`
	IssueNumber int     `json:"issue_number"`
	IssueTitle  string  `json:"issue_title"`
	IssueBody   *string `json:"issue_body,omitempty"`
}

func (*IssueEvent) EventType() EventType { return EventIssue }

// IssueCommentEvent records a comment action on an issue or PR.
type IssueCommentEvent struct {
	EventBase
	Action      string `json:"action"`
	IssueNumber int    `json:"issue_number"`
	CommentID   int64  `json:"comment_id"`
	CommentBody string `json:"comment_body"`
}

func (*IssueCommentEvent) EventType() EventType { return EventIssueComment }

// CreateEvent records a branch, tag, or repository being created.
type CreateEvent struct {
	EventBase
	RefType RefType `json:"ref_type"`
	RefName string  `json:"ref_name"`
}

func (*CreateEvent) EventType() EventType { return EventCreate }

func (e *CreateEvent) Validate() error {
	if err := e.EventBase.Validate(); err != nil {
		return err
	}
	if !e.RefType.Valid() {
		return fmt.Errorf("ref_type: unknown ref type %q", e.RefType)
	}
	return nil
}

// DeleteEvent records a branch or tag being deleted.
type DeleteEvent struct {
	EventBase
	RefType RefType `json:"ref_type"`
	RefName string  `json:"ref_name"`
}

func (*DeleteEvent) EventType() EventType { return EventDelete }

func (e *DeleteEvent) Validate() error {
	if err := e.EventBase.Validate(); err != nil {
		return err
	}
	if !e.RefType.Valid() {
		return fmt.Errorf("ref_type: unknown ref type %q", e.RefType)
	}
	return nil
}

// ForkEvent records the repository being forked.
type ForkEvent struct {
	EventBase
	ForkFullName string `json:"fork_full_name"`
}

func (*ForkEvent) EventType() EventType { return EventFork }

// WorkflowRunEvent records a CI workflow run. The absence of a run around
// a commit's timestamp suggests the commit was created through the API.
type WorkflowRunEvent struct {
	EventBase
	Action       string  `json:"action"`
	WorkflowName string  `json:"workflow_name"`
	HeadSHA      string  `json:"head_sha"`
	Conclusion   *string `json:"conclusion,omitempty"`
}

func (*WorkflowRunEvent) EventType() EventType { return EventWorkflowRun }

// ReleaseEvent records a release action.
type ReleaseEvent struct {
	EventBase
	Action      string  `json:"action"`
	TagName     string  `json:"tag_name"`
	ReleaseName *string `json:"release_name,omitempty"`
	ReleaseBody *string `json:"release_body,omitempty"`
}

func (*ReleaseEvent) EventType() EventType { return EventRelease }

// WatchEvent records the repository being starred.
type WatchEvent struct {
	EventBase
}

func (*WatchEvent) EventType() EventType { return EventWatch }

// MemberEvent records a collaborator change.
type MemberEvent struct {
	EventBase
	Action string `json:"action"`
	Member Actor  `json:"member"`
}

func (*MemberEvent) EventType() EventType { return EventMember }

// PublicEvent records the repository being made public.
type PublicEvent struct {
	EventBase
}

func (*PublicEvent) EventType() EventType { return EventPublic }
