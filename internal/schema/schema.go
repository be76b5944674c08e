// Package schema exports JSON Schemas for the persisted evidence record
// shapes, so downstream tooling can validate evidence files without linking
// against this module.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/mbrg/raptor/internal/evidence"
)

// variants maps each wire discriminator to a zero instance of the record
// shape it selects. Event and observation discriminators live in separate
// namespaces, so the keys are prefixed.
func variants() map[string]any {
	return map[string]any{
		"event/" + string(evidence.EventPush):         &evidence.PushEvent{},
		"event/" + string(evidence.EventPullRequest):  &evidence.PullRequestEvent{},
		"event/" + string(evidence.EventIssue):        &evidence.IssueEvent{},
		"event/" + string(evidence.EventIssueComment): &evidence.IssueCommentEvent{},
		"event/" + string(evidence.EventCreate):       &evidence.CreateEvent{},
		"event/" + string(evidence.EventDelete):       &evidence.DeleteEvent{},
		"event/" + string(evidence.EventFork):         &evidence.ForkEvent{},
		"event/" + string(evidence.EventWorkflowRun):  &evidence.WorkflowRunEvent{},
		"event/" + string(evidence.EventRelease):      &evidence.ReleaseEvent{},
		"event/" + string(evidence.EventWatch):        &evidence.WatchEvent{},
		"event/" + string(evidence.EventMember):       &evidence.MemberEvent{},
		"event/" + string(evidence.EventPublic):       &evidence.PublicEvent{},

		"observation/" + string(evidence.ObservationCommit):   &evidence.CommitObservation{},
		"observation/" + string(evidence.ObservationIssue):    &evidence.IssueObservation{},
		"observation/" + string(evidence.ObservationFile):     &evidence.FileObservation{},
		"observation/" + string(evidence.ObservationFork):     &evidence.ForkObservation{},
		"observation/" + string(evidence.ObservationBranch):   &evidence.BranchObservation{},
		"observation/" + string(evidence.ObservationTag):      &evidence.TagObservation{},
		"observation/" + string(evidence.ObservationRelease):  &evidence.ReleaseObservation{},
		"observation/" + string(evidence.ObservationSnapshot): &evidence.SnapshotObservation{},
		"observation/" + string(evidence.ObservationIOC):      &evidence.IOC{},
		"observation/" + string(evidence.ObservationArticle):  &evidence.ArticleObservation{},
	}
}

// Generate reflects the schema for every record variant, keyed by its
// prefixed discriminator.
func Generate() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	out := make(map[string]*jsonschema.Schema)
	for name, v := range variants() {
		out[name] = reflector.Reflect(v)
	}
	return out
}

// Names returns the sorted list of variant discriminators.
func Names() []string {
	vs := variants()
	names := make([]string, 0, len(vs))
	for name := range vs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalAll renders every variant schema as one indented JSON document,
// keyed by discriminator.
func MarshalAll() ([]byte, error) {
	data, err := json.MarshalIndent(Generate(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schemas: %w", err)
	}
	return data, nil
}

// Marshal renders the schema of a single variant.
func Marshal(name string) ([]byte, error) {
	schemas := Generate()
	s, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown record variant %q", name)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema %s: %w", name, err)
	}
	return data, nil
}
