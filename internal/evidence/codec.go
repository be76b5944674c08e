package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnclassifiable is returned when a serialized record carries neither
// an event_type nor an observation_type discriminator.
var ErrUnclassifiable = errors.New("cannot classify record: missing event_type and observation_type")

// Marshal serializes a record to a flat JSON object carrying its
// discriminator field alongside all declared fields.
func Marshal(ev Evidence) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	switch v := ev.(type) {
	case Event:
		fields["event_type"], _ = json.Marshal(v.EventType())
	case Observation:
		fields["observation_type"], _ = json.Marshal(v.ObservationType())
	default:
		return nil, fmt.Errorf("unsupported evidence type %T", ev)
	}
	return json.Marshal(fields)
}

// Unmarshal deserializes a flat JSON object back to its concrete variant,
// dispatching on the discriminator. Unknown discriminator values and
// records missing both discriminators are errors, never coerced.
func Unmarshal(data []byte) (Evidence, error) {
	var probe struct {
		EventType       *EventType       `json:"event_type"`
		ObservationType *ObservationType `json:"observation_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}

	var ev Evidence
	switch {
	case probe.EventType != nil:
		concrete, ok := newEvent(*probe.EventType)
		if !ok {
			return nil, fmt.Errorf("unknown event_type %q", *probe.EventType)
		}
		ev = concrete
	case probe.ObservationType != nil:
		concrete, ok := newObservation(*probe.ObservationType)
		if !ok {
			return nil, fmt.Errorf("unknown observation_type %q", *probe.ObservationType)
		}
		ev = concrete
	default:
		return nil, ErrUnclassifiable
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	return ev, nil
}

func newEvent(t EventType) (Event, bool) {
	switch t {
	case EventPush:
		return &PushEvent{}, true
	case EventPullRequest:
		return &PullRequestEvent{}, true
	case EventIssue:
		return &IssueEvent{}, true
	case EventIssueComment:
		return &IssueCommentEvent{}, true
	case EventCreate:
		return &CreateEvent{}, true
	case EventDelete:
		return &DeleteEvent{}, true
	case EventFork:
		return &ForkEvent{}, true
	case EventWorkflowRun:
		return &WorkflowRunEvent{}, true
	case EventRelease:
		return &ReleaseEvent{}, true
	case EventWatch:
		return &WatchEvent{}, true
	case EventMember:
		return &MemberEvent{}, true
	case EventPublic:
		return &PublicEvent{}, true
	}
	return nil, false
}

func newObservation(t ObservationType) (Observation, bool) {
	switch t {
	case ObservationCommit:
		return &CommitObservation{}, true
	case ObservationIssue:
		return &IssueObservation{}, true
	case ObservationFile:
		return &FileObservation{}, true
	case ObservationFork:
		return &ForkObservation{}, true
	case ObservationBranch:
		return &BranchObservation{}, true
	case ObservationTag:
		return &TagObservation{}, true
	case ObservationRelease:
		return &ReleaseObservation{}, true
	case ObservationSnapshot:
		return &SnapshotObservation{}, true
	case ObservationIOC:
		return &IOC{}, true
	case ObservationArticle:
		return &ArticleObservation{}, true
	}
	return nil, false
}
