package verify

import (
	"context"
	"fmt"

	"github.com/mbrg/raptor/internal/evidence"
)

// Status is the tri-state outcome of verifying one record. A skip means
// the source could not be consulted for a structurally expected reason
// (no credentials, local-only source); it counts toward Valid but is
// reported separately so callers can tell confirmation from absence of
// contradiction.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Result is the outcome for a single record.
type Result struct {
	Status Status   `json:"status"`
	Errors []string `json:"errors,omitempty"`
	Notes  []string `json:"notes,omitempty"`
}

func pass(notes ...string) Result {
	return Result{Status: StatusPass, Notes: notes}
}

func fail(errs ...string) Result {
	return Result{Status: StatusFail, Errors: errs}
}

func failf(format string, args ...any) Result {
	return fail(fmt.Sprintf(format, args...))
}

func skip(note string) Result {
	return Result{Status: StatusSkip, Notes: []string{note}}
}

// Report aggregates a full verification pass. Valid is true iff no record
// failed; Errors is evidence-id-prefixed and ordered by input position.
type Report struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors"`
	Checked int      `json:"checked"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
}

// BatchVerifier verifies a collection of records.
type BatchVerifier interface {
	VerifyAll(ctx context.Context, items []evidence.Evidence) Report
}
