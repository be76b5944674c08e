// Package evidence defines the record types collected during a GitHub
// forensic investigation: events (things that happened) and observations
// (things found after the fact), each carrying enough provenance to be
// re-verified against the source it came from.
package evidence

import (
	"fmt"
	"time"
)

// Source is the authoritative channel a record can be re-checked against.
type Source string

const (
	SourceGitHub         Source = "github"
	SourceGHArchive      Source = "gharchive"
	SourceWayback        Source = "wayback"
	SourceSecurityVendor Source = "security_vendor"
	SourceGit            Source = "git"
)

func (s Source) Valid() bool {
	switch s {
	case SourceGitHub, SourceGHArchive, SourceWayback, SourceSecurityVendor, SourceGit:
		return true
	}
	return false
}

// RefType classifies the target of create/delete events.
type RefType string

const (
	RefTypeBranch     RefType = "branch"
	RefTypeTag        RefType = "tag"
	RefTypeRepository RefType = "repository"
)

func (r RefType) Valid() bool {
	switch r {
	case RefTypeBranch, RefTypeTag, RefTypeRepository:
		return true
	}
	return false
}

// IOCType classifies the payload of an indicator of compromise.
type IOCType string

const (
	IOCTypeSHA        IOCType = "sha"
	IOCTypeFilePath   IOCType = "file_path"
	IOCTypeEmail      IOCType = "email"
	IOCTypeUsername   IOCType = "username"
	IOCTypeIP         IOCType = "ip"
	IOCTypeDomain     IOCType = "domain"
	IOCTypeCredential IOCType = "credential"
	IOCTypeURL        IOCType = "url"
)

func (t IOCType) Valid() bool {
	switch t {
	case IOCTypeSHA, IOCTypeFilePath, IOCTypeEmail, IOCTypeUsername,
		IOCTypeIP, IOCTypeDomain, IOCTypeCredential, IOCTypeURL:
		return true
	}
	return false
}

// Confidence grades how certain an indicator is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Actor identifies who did something on the platform.
type Actor struct {
	Login string `json:"login"`
	ID    int64  `json:"id,omitempty"`
	IsBot bool   `json:"is_bot,omitempty"`
}

// Repository identifies a repository; FullName ("owner/name") is the
// canonical cross-reference key.
type Repository struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	ID       int64  `json:"id,omitempty"`
}

// Verification tells the consistency verifier how to re-check a record.
type Verification struct {
	Source        Source `json:"source"`
	URL           string `json:"url,omitempty"`
	BigQueryTable string `json:"bigquery_table,omitempty"`
	Query         string `json:"query,omitempty"`
}

// Evidence is the closed union of all record variants. Concrete types
// additionally implement either Event or Observation, never both.
type Evidence interface {
	ID() string
	VerificationInfo() Verification
	Repo() *Repository
	// Timestamp resolves the primary time of the record: when (events),
	// falling back to original_when then observed_when (observations).
	// ok is false when no timestamp is resolvable.
	Timestamp() (ts time.Time, ok bool)
	Validate() error
}

// Event is evidence of something that happened, with a required actor.
type Event interface {
	Evidence
	EventType() EventType
	Actor() Actor
}

// Observation is evidence of something found, possibly after the fact.
type Observation interface {
	Evidence
	ObservationType() ObservationType
	Deleted() bool
}

// EventBase carries the when/who/what shared by all event variants.
type EventBase struct {
	EvidenceID   string       `json:"evidence_id"`
	When         time.Time    `json:"when"`
	Who          Actor        `json:"who"`
	What         string       `json:"what"`
	Repository   *Repository  `json:"repository,omitempty"`
	Verification Verification `json:"verification"`
}

func (e *EventBase) ID() string                     { return e.EvidenceID }
func (e *EventBase) VerificationInfo() Verification { return e.Verification }
func (e *EventBase) Repo() *Repository              { return e.Repository }
func (e *EventBase) Actor() Actor                   { return e.Who }

func (e *EventBase) Timestamp() (time.Time, bool) {
	return e.When, !e.When.IsZero()
}

func (e *EventBase) Validate() error {
	if e.EvidenceID == "" {
		return fmt.Errorf("evidence_id must not be empty")
	}
	if !e.Verification.Source.Valid() {
		return fmt.Errorf("verification.source: unknown source %q", e.Verification.Source)
	}
	return nil
}

// ObservationBase carries the observed/original perspective shared by all
// observation variants. The original event may be unknown; the act of
// observing is always recorded.
type ObservationBase struct {
	EvidenceID string `json:"evidence_id"`

	OriginalWhen *time.Time `json:"original_when,omitempty"`
	OriginalWho  *Actor     `json:"original_who,omitempty"`
	OriginalWhat string     `json:"original_what,omitempty"`

	ObservedWhen time.Time `json:"observed_when"`
	ObservedBy   Source    `json:"observed_by"`
	ObservedWhat string    `json:"observed_what"`

	Repository   *Repository  `json:"repository,omitempty"`
	Verification Verification `json:"verification"`

	// IsDeleted is a positive claim that the source no longer yields this
	// record; the verifier treats unreachability as confirmation.
	IsDeleted bool `json:"is_deleted,omitempty"`
}

func (o *ObservationBase) ID() string                     { return o.EvidenceID }
func (o *ObservationBase) VerificationInfo() Verification { return o.Verification }
func (o *ObservationBase) Repo() *Repository              { return o.Repository }
func (o *ObservationBase) Deleted() bool                  { return o.IsDeleted }

func (o *ObservationBase) Timestamp() (time.Time, bool) {
	if o.OriginalWhen != nil && !o.OriginalWhen.IsZero() {
		return *o.OriginalWhen, true
	}
	return o.ObservedWhen, !o.ObservedWhen.IsZero()
}

func (o *ObservationBase) Validate() error {
	if o.EvidenceID == "" {
		return fmt.Errorf("evidence_id must not be empty")
	}
	if !o.Verification.Source.Valid() {
		return fmt.Errorf("verification.source: unknown source %q", o.Verification.Source)
	}
	return nil
}
