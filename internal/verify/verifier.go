// Package verify reconciles stored evidence against the live sources it
// claims to come from. One record's mismatch never aborts the rest; the
// verifier accumulates named errors and reports them in input order.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/source/gharchive"
	"github.com/mbrg/raptor/internal/source/github"
)

const (
	defaultConcurrency  = 4
	defaultFetchTimeout = 30 * time.Second
)

// Config tunes the verifier.
type Config struct {
	// Concurrency bounds the verification worker pool. Kept small by
	// default to stay inside the unauthenticated API rate limit.
	Concurrency int
}

// Verifier answers "does this record still match what its source says".
// Source clients are injected so tests can substitute stubs.
type Verifier struct {
	github      github.API
	archive     gharchive.API
	fetcher     URLFetcher
	concurrency int
	logger      *slog.Logger
}

var _ BatchVerifier = (*Verifier)(nil)

func New(gh github.API, archive gharchive.API, fetcher URLFetcher, cfg Config, logger *slog.Logger) *Verifier {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(defaultFetchTimeout)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		github:      gh,
		archive:     archive,
		fetcher:     fetcher,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// VerifyAll verifies every record through a bounded worker pool and
// reassembles results in input order, so the error list is deterministic
// regardless of completion order.
func (v *Verifier) VerifyAll(ctx context.Context, items []evidence.Evidence) Report {
	results := make([]Result, len(items))

	sem := make(chan struct{}, v.concurrency)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item evidence.Evidence) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = v.Verify(ctx, item)
		}(i, item)
	}
	wg.Wait()

	report := Report{Valid: true}
	for i, res := range results {
		report.Checked++
		switch res.Status {
		case StatusFail:
			report.Valid = false
			report.Failed++
			for _, e := range res.Errors {
				report.Errors = append(report.Errors, fmt.Sprintf("[%s] %s", items[i].ID(), e))
			}
		case StatusSkip:
			report.Skipped++
		}
	}
	if report.Errors == nil {
		report.Errors = []string{}
	}
	v.logger.InfoContext(ctx, "verification pass complete",
		"checked", report.Checked,
		"failed", report.Failed,
		"skipped", report.Skipped)
	return report
}

// Verify dispatches by root kind, then verification source, then (for
// primary-API observations) by observation type.
func (v *Verifier) Verify(ctx context.Context, item evidence.Evidence) Result {
	switch rec := item.(type) {
	case evidence.Event:
		return v.verifyEvent(ctx, rec)
	case evidence.Observation:
		return v.verifyObservation(ctx, rec)
	default:
		return failf("unknown evidence kind %T", item)
	}
}

func (v *Verifier) verifyEvent(ctx context.Context, ev evidence.Event) Result {
	switch ev.VerificationInfo().Source {
	case evidence.SourceGHArchive:
		return v.verifyArchiveEvent(ctx, ev)
	case evidence.SourceGit:
		return pass("local git evidence is not independently verifiable")
	default:
		return failf("unknown verification source for event: %s", ev.VerificationInfo().Source)
	}
}

func (v *Verifier) verifyObservation(ctx context.Context, obs evidence.Observation) Result {
	switch obs.VerificationInfo().Source {
	case evidence.SourceGitHub:
		res, err := v.verifyGitHubObservation(ctx, obs)
		return v.tolerateDeletion(obs, res, err)
	case evidence.SourceGHArchive:
		return v.verifyArchiveObservation(ctx, obs)
	case evidence.SourceWayback:
		res, err := v.checkURL(ctx, obs)
		return v.tolerateDeletion(obs, res, err)
	case evidence.SourceSecurityVendor:
		res, err := v.verifyVendorReport(ctx, obs)
		return v.tolerateDeletion(obs, res, err)
	case evidence.SourceGit:
		return pass("local git evidence is not independently verifiable")
	default:
		return failf("unknown verification source: %s", obs.VerificationInfo().Source)
	}
}

// tolerateDeletion applies the cross-cutting rule: a fetch failure on a
// record that positively claims absence confirms the claim.
func (v *Verifier) tolerateDeletion(obs evidence.Observation, res Result, err error) Result {
	if err == nil {
		return res
	}
	if obs.Deleted() {
		return pass("source fetch failed and record is marked deleted; absence expected")
	}
	return failf("Verification failed: %v", err)
}

// --- Primary API strategies -------------------------------------------------

// verifyGitHubObservation dispatches on the concrete variant. Variants
// with no API-side strategy fall back to a reachability check of the
// verification URL. The error return carries fetch failures only;
// field mismatches live in the Result.
func (v *Verifier) verifyGitHubObservation(ctx context.Context, obs evidence.Observation) (Result, error) {
	switch o := obs.(type) {
	case *evidence.CommitObservation:
		return v.verifyCommit(ctx, o)
	case *evidence.IssueObservation:
		return v.verifyIssue(ctx, o)
	case *evidence.FileObservation:
		return v.verifyFile(ctx, o)
	case *evidence.BranchObservation:
		return v.verifyBranch(ctx, o)
	case *evidence.TagObservation:
		return v.verifyTag(ctx, o)
	case *evidence.ReleaseObservation:
		return v.verifyRelease(ctx, o)
	default:
		return v.checkURL(ctx, obs)
	}
}

func (v *Verifier) verifyCommit(ctx context.Context, obs *evidence.CommitObservation) (Result, error) {
	repo := obs.Repo()
	if repo == nil {
		return fail("No repository specified"), nil
	}
	if obs.SHA == "" {
		return fail("No SHA specified"), nil
	}

	data, err := v.github.GetCommit(ctx, repo.Owner, repo.Name, obs.SHA)
	if err != nil {
		return Result{}, err
	}

	var errs []string
	if data.SHA != obs.SHA {
		errs = append(errs, fmt.Sprintf("SHA mismatch: expected %s, got %s", obs.SHA, data.SHA))
	}
	if data.Message != obs.Message {
		errs = append(errs, "Message mismatch")
	}
	if obs.Author.Name != "" && data.AuthorName != obs.Author.Name {
		errs = append(errs, fmt.Sprintf("Author mismatch: expected %s, got %s", obs.Author.Name, data.AuthorName))
	}
	if len(errs) > 0 {
		return fail(errs...), nil
	}
	return pass(), nil
}

func (v *Verifier) verifyIssue(ctx context.Context, obs *evidence.IssueObservation) (Result, error) {
	repo := obs.Repo()
	if repo == nil {
		return fail("No repository specified"), nil
	}
	if obs.IssueNumber == 0 {
		return fail("No issue number specified"), nil
	}

	var (
		data *github.Issue
		err  error
	)
	if obs.IsPullRequest {
		data, err = v.github.GetPullRequest(ctx, repo.Owner, repo.Name, obs.IssueNumber)
	} else {
		data, err = v.github.GetIssue(ctx, repo.Owner, repo.Name, obs.IssueNumber)
	}
	if err != nil {
		return Result{}, err
	}

	var errs []string
	if data.Number != obs.IssueNumber {
		errs = append(errs, fmt.Sprintf("Number mismatch: expected %d, got %d", obs.IssueNumber, data.Number))
	}
	if obs.Title != nil && *obs.Title != data.Title {
		errs = append(errs, "Title mismatch")
	}
	if obs.State != nil {
		// A merged PR reports state "closed" with the merged flag set;
		// merged wins over the raw state.
		actual := data.State
		if data.Merged {
			actual = "merged"
		}
		if *obs.State != actual {
			errs = append(errs, fmt.Sprintf("State mismatch: expected %s, got %s", *obs.State, actual))
		}
	}
	if len(errs) > 0 {
		return fail(errs...), nil
	}
	return pass(), nil
}

func (v *Verifier) verifyFile(ctx context.Context, obs *evidence.FileObservation) (Result, error) {
	repo := obs.Repo()
	if repo == nil {
		return fail("No repository specified"), nil
	}
	if obs.FilePath == "" {
		return fail("No file path specified"), nil
	}

	ref := "HEAD"
	if obs.Branch != nil && *obs.Branch != "" {
		ref = *obs.Branch
	}
	data, err := v.github.GetFile(ctx, repo.Owner, repo.Name, obs.FilePath, ref)
	if err != nil {
		return Result{}, err
	}

	if obs.ContentHash != nil && *obs.ContentHash != "" {
		digest := sha256.Sum256([]byte(data.Content))
		if *obs.ContentHash != hex.EncodeToString(digest[:]) {
			return fail("Content hash mismatch"), nil
		}
	}
	return pass(), nil
}

func (v *Verifier) verifyBranch(ctx context.Context, obs *evidence.BranchObservation) (Result, error) {
	repo := obs.Repo()
	if repo == nil {
		return fail("No repository specified"), nil
	}
	if obs.BranchName == "" {
		return fail("No branch name specified"), nil
	}

	data, err := v.github.GetBranch(ctx, repo.Owner, repo.Name, obs.BranchName)
	if err != nil {
		return Result{}, err
	}
	if obs.HeadSHA != nil && *obs.HeadSHA != data.HeadSHA {
		return failf("HEAD SHA mismatch: expected %s, got %s", *obs.HeadSHA, data.HeadSHA), nil
	}
	return pass(), nil
}

func (v *Verifier) verifyTag(ctx context.Context, obs *evidence.TagObservation) (Result, error) {
	repo := obs.Repo()
	if repo == nil {
		return fail("No repository specified"), nil
	}
	if obs.TagName == "" {
		return fail("No tag name specified"), nil
	}

	data, err := v.github.GetTag(ctx, repo.Owner, repo.Name, obs.TagName)
	if err != nil {
		return Result{}, err
	}
	if obs.TargetSHA != nil && *obs.TargetSHA != data.TargetSHA {
		return failf("Target SHA mismatch: expected %s, got %s", *obs.TargetSHA, data.TargetSHA), nil
	}
	return pass(), nil
}

func (v *Verifier) verifyRelease(ctx context.Context, obs *evidence.ReleaseObservation) (Result, error) {
	repo := obs.Repo()
	if repo == nil {
		return fail("No repository specified"), nil
	}
	if obs.TagName == "" {
		return fail("No tag name specified"), nil
	}

	data, err := v.github.GetRelease(ctx, repo.Owner, repo.Name, obs.TagName)
	if err != nil {
		return Result{}, err
	}
	if data.TagName != obs.TagName {
		return fail("Tag name mismatch"), nil
	}
	return pass(), nil
}

// --- Generic URL strategies -------------------------------------------------

func (v *Verifier) checkURL(ctx context.Context, item evidence.Evidence) (Result, error) {
	url := item.VerificationInfo().URL
	if url == "" {
		return pass("no verification URL recorded"), nil
	}
	if _, err := v.fetcher.Fetch(ctx, url); err != nil {
		return Result{}, err
	}
	return pass(), nil
}

func (v *Verifier) verifyVendorReport(ctx context.Context, obs evidence.Observation) (Result, error) {
	url := obs.VerificationInfo().URL
	if url == "" {
		return fail("No source URL specified"), nil
	}

	body, err := v.fetcher.Fetch(ctx, url)
	if err != nil {
		return Result{}, err
	}

	// IOC records must additionally appear verbatim in the cited report.
	if ioc, ok := obs.(*evidence.IOC); ok && ioc.Value != "" {
		if !strings.Contains(strings.ToLower(body), strings.ToLower(ioc.Value)) {
			return failf("IOC value '%s' not found in source", truncate(ioc.Value, 50)), nil
		}
	}
	return pass(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// --- Archive strategies -----------------------------------------------------

func (v *Verifier) verifyArchiveEvent(ctx context.Context, ev evidence.Event) Result {
	if ev.VerificationInfo().BigQueryTable == "" {
		return fail("No BigQuery table specified")
	}
	if v.archive == nil || !v.archive.Available(ctx) {
		return skip("GH Archive verification skipped: no credentials configured")
	}

	when, ok := ev.Timestamp()
	if !ok {
		return fail("No event timestamp to query by")
	}
	q := gharchive.Query{From: when.UTC().Format("200601021504")}
	if repo := ev.Repo(); repo != nil {
		q.Repo = repo.FullName
	}
	if actor := ev.Actor(); actor.Login != "" {
		q.Actor = actor.Login
	}

	rows, err := v.archive.QueryEvents(ctx, q)
	if err != nil {
		return failf("GH Archive verification error: %v", err)
	}
	if len(rows) == 0 {
		return fail("No matching event found in GH Archive")
	}
	return pass()
}

func (v *Verifier) verifyArchiveObservation(ctx context.Context, obs evidence.Observation) Result {
	if obs.VerificationInfo().BigQueryTable == "" {
		return fail("No BigQuery table specified")
	}
	if v.archive == nil || !v.archive.Available(ctx) {
		return skip("GH Archive verification skipped: no credentials configured")
	}
	return pass("best-effort presence check only")
}
