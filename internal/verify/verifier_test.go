package verify_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/source/gharchive"
	"github.com/mbrg/raptor/internal/source/github"
	"github.com/mbrg/raptor/internal/verify"
)

func newCommitObservation(id string) *evidence.CommitObservation {
	original := time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)
	return &evidence.CommitObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   id,
			OriginalWhen: &original,
			ObservedWhen: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			ObservedBy:   evidence.SourceGitHub,
			Repository:   &evidence.Repository{Owner: "acme", Name: "widgets", FullName: "acme/widgets"},
			Verification: evidence.Verification{Source: evidence.SourceGitHub},
		},
		SHA:     strings.Repeat("c", 40),
		Message: "Add helper",
		Author:  evidence.CommitAuthor{Name: "mallory"},
	}
}

func newPushEvent(id string) *evidence.PushEvent {
	return &evidence.PushEvent{
		EventBase: evidence.EventBase{
			EvidenceID: id,
			When:       time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
			Who:        evidence.Actor{Login: "mallory"},
			Repository: &evidence.Repository{Owner: "acme", Name: "widgets", FullName: "acme/widgets"},
			Verification: evidence.Verification{
				Source:        evidence.SourceGHArchive,
				BigQueryTable: "githubarchive.day.20240301",
			},
		},
		Ref:      "refs/heads/main",
		AfterSHA: strings.Repeat("b", 40),
	}
}

var _ = Describe("Verifier", func() {
	var (
		ctx      context.Context
		gh       *mockGitHub
		archive  *mockArchive
		fetcher  *mockFetcher
		verifier *verify.Verifier
	)

	BeforeEach(func() {
		ctx = context.Background()
		gh = &mockGitHub{}
		archive = &mockArchive{available: true}
		fetcher = &mockFetcher{}
		verifier = verify.New(gh, archive, fetcher, verify.Config{Concurrency: 2}, nil)
	})

	Describe("commit observations", func() {
		It("passes when the API agrees", func() {
			obs := newCommitObservation("commit-1")
			gh.getCommitFn = func(_ context.Context, owner, repo, sha string) (*github.Commit, error) {
				Expect(owner).To(Equal("acme"))
				Expect(repo).To(Equal("widgets"))
				return &github.Commit{SHA: sha, Message: "Add helper", AuthorName: "mallory"}, nil
			}

			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusPass))
		})

		It("reports an author mismatch", func() {
			obs := newCommitObservation("commit-1")
			gh.getCommitFn = func(_ context.Context, _, _, sha string) (*github.Commit, error) {
				return &github.Commit{SHA: sha, Message: "Add helper", AuthorName: "eve"}, nil
			}

			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("Author mismatch: expected mallory, got eve"))
		})

		It("fails without a repository", func() {
			obs := newCommitObservation("commit-1")
			obs.Repository = nil

			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("No repository specified"))
		})

		It("fails without a SHA instead of fetching", func() {
			obs := newCommitObservation("commit-1")
			obs.SHA = ""
			gh.getCommitFn = func(_ context.Context, _, _, _ string) (*github.Commit, error) {
				Fail("must not fetch a commit without a SHA")
				return nil, nil
			}

			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("No SHA specified"))
		})

		It("treats fetch failure as confirmation when the record is marked deleted", func() {
			obs := newCommitObservation("commit-1")
			obs.IsDeleted = true
			gh.getCommitFn = func(_ context.Context, _, _, _ string) (*github.Commit, error) {
				return nil, errors.New("404 Not Found")
			}

			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusPass))
		})

		It("fails on fetch failure when the record is not marked deleted", func() {
			obs := newCommitObservation("commit-1")
			gh.getCommitFn = func(_ context.Context, _, _, _ string) (*github.Commit, error) {
				return nil, errors.New("404 Not Found")
			}

			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("Verification failed: 404 Not Found"))
		})
	})

	Describe("issue observations", func() {
		newIssue := func(state string, isPR bool) *evidence.IssueObservation {
			title := "Fix login"
			return &evidence.IssueObservation{
				ObservationBase: evidence.ObservationBase{
					EvidenceID:   "issue-1",
					ObservedWhen: time.Now().UTC(),
					ObservedBy:   evidence.SourceGitHub,
					Repository:   &evidence.Repository{Owner: "acme", Name: "widgets", FullName: "acme/widgets"},
					Verification: evidence.Verification{Source: evidence.SourceGitHub},
				},
				IssueNumber:   7,
				IsPullRequest: isPR,
				Title:         &title,
				State:         &state,
			}
		}

		It("accepts a merged PR whose raw state is closed", func() {
			gh.getPullRequestFn = func(_ context.Context, _, _ string, number int) (*github.Issue, error) {
				return &github.Issue{Number: number, Title: "Fix login", State: "closed", Merged: true}, nil
			}

			res := verifier.Verify(ctx, newIssue("merged", true))
			Expect(res.Status).To(Equal(verify.StatusPass))
		})

		It("reports a state mismatch", func() {
			gh.getIssueFn = func(_ context.Context, _, _ string, number int) (*github.Issue, error) {
				return &github.Issue{Number: number, Title: "Fix login", State: "closed"}, nil
			}

			res := verifier.Verify(ctx, newIssue("open", false))
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("State mismatch: expected open, got closed"))
		})

		It("fails without an issue number", func() {
			obs := newIssue("open", false)
			obs.IssueNumber = 0

			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("No issue number specified"))
		})
	})

	Describe("file observations", func() {
		It("recomputes and compares the content hash", func() {
			content := "package main\n"
			digest := sha256.Sum256([]byte(content))
			hash := hex.EncodeToString(digest[:])
			branch := "main"

			obs := &evidence.FileObservation{
				ObservationBase: evidence.ObservationBase{
					EvidenceID:   "file-1",
					ObservedWhen: time.Now().UTC(),
					ObservedBy:   evidence.SourceGitHub,
					Repository:   &evidence.Repository{Owner: "acme", Name: "widgets", FullName: "acme/widgets"},
					Verification: evidence.Verification{Source: evidence.SourceGitHub},
				},
				FilePath:    "main.go",
				Branch:      &branch,
				ContentHash: &hash,
			}

			gh.getFileFn = func(_ context.Context, _, _, path, ref string) (*github.File, error) {
				Expect(ref).To(Equal("main"))
				return &github.File{Path: path, Content: content}, nil
			}
			Expect(verifier.Verify(ctx, obs).Status).To(Equal(verify.StatusPass))

			gh.getFileFn = func(_ context.Context, _, _, path, ref string) (*github.File, error) {
				return &github.File{Path: path, Content: "tampered"}, nil
			}
			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("Content hash mismatch"))
		})
	})

	Describe("archive events", func() {
		It("queries the archive for the event's minute", func() {
			var seen gharchive.Query
			archive.queryEventsFn = func(_ context.Context, q gharchive.Query) ([]gharchive.Row, error) {
				seen = q
				return []gharchive.Row{{Type: "PushEvent"}}, nil
			}

			res := verifier.Verify(ctx, newPushEvent("push-1"))
			Expect(res.Status).To(Equal(verify.StatusPass))
			Expect(seen.From).To(Equal("202403011230"))
			Expect(seen.Repo).To(Equal("acme/widgets"))
			Expect(seen.Actor).To(Equal("mallory"))
		})

		It("fails when no matching event exists", func() {
			archive.queryEventsFn = func(_ context.Context, _ gharchive.Query) ([]gharchive.Row, error) {
				return nil, nil
			}

			res := verifier.Verify(ctx, newPushEvent("push-1"))
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("No matching event found in GH Archive"))
		})

		It("wraps query errors", func() {
			archive.queryEventsFn = func(_ context.Context, _ gharchive.Query) ([]gharchive.Row, error) {
				return nil, errors.New("quota exceeded")
			}

			res := verifier.Verify(ctx, newPushEvent("push-1"))
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("GH Archive verification error: quota exceeded"))
		})

		It("skips when the archive is unavailable", func() {
			archive.available = false

			res := verifier.Verify(ctx, newPushEvent("push-1"))
			Expect(res.Status).To(Equal(verify.StatusSkip))
			Expect(res.Notes).To(ContainElement("GH Archive verification skipped: no credentials configured"))
		})

		It("fails without a BigQuery table", func() {
			ev := newPushEvent("push-1")
			ev.Verification.BigQueryTable = ""

			res := verifier.Verify(ctx, ev)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("No BigQuery table specified"))
		})
	})

	Describe("URL-backed observations", func() {
		It("passes a wayback record whose URL is reachable", func() {
			obs := &evidence.SnapshotObservation{
				ObservationBase: evidence.ObservationBase{
					EvidenceID:   "snapshot-1",
					ObservedWhen: time.Now().UTC(),
					ObservedBy:   evidence.SourceWayback,
					Verification: evidence.Verification{
						Source: evidence.SourceWayback,
						URL:    "https://web.archive.org/web/20240301000000/https://example.com",
					},
				},
				OriginalURL: "https://example.com",
			}
			fetcher.fetchFn = func(_ context.Context, url string) (string, error) {
				return "archived page", nil
			}

			Expect(verifier.Verify(ctx, obs).Status).To(Equal(verify.StatusPass))
		})

		It("requires an IOC's value to appear in the cited report", func() {
			extractedFrom := "commit-1"
			obs := &evidence.IOC{
				ObservationBase: evidence.ObservationBase{
					EvidenceID:   "ioc-1",
					ObservedWhen: time.Now().UTC(),
					ObservedBy:   evidence.SourceSecurityVendor,
					Verification: evidence.Verification{
						Source: evidence.SourceSecurityVendor,
						URL:    "https://vendor.example.com/report",
					},
				},
				IOCType:       evidence.IOCTypeDomain,
				Value:         "evil.example.net",
				ExtractedFrom: &extractedFrom,
			}

			fetcher.fetchFn = func(_ context.Context, _ string) (string, error) {
				return "the attacker used EVIL.EXAMPLE.NET as C2", nil
			}
			Expect(verifier.Verify(ctx, obs).Status).To(Equal(verify.StatusPass))

			fetcher.fetchFn = func(_ context.Context, _ string) (string, error) {
				return "nothing to see here", nil
			}
			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("IOC value 'evil.example.net' not found in source"))
		})
	})

	Describe("local git evidence", func() {
		It("passes without consulting any source", func() {
			obs := newCommitObservation("commit-git-1")
			obs.Verification = evidence.Verification{Source: evidence.SourceGit}
			gh.getCommitFn = func(_ context.Context, _, _, _ string) (*github.Commit, error) {
				Fail("local git evidence must not hit the API")
				return nil, nil
			}

			Expect(verifier.Verify(ctx, obs).Status).To(Equal(verify.StatusPass))
		})
	})

	Describe("unknown sources", func() {
		It("rejects an observation with an unhandled source", func() {
			obs := newCommitObservation("commit-1")
			obs.Verification = evidence.Verification{Source: "carrier_pigeon"}

			res := verifier.Verify(ctx, obs)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("unknown verification source: carrier_pigeon"))
		})

		It("rejects an event with an unhandled source", func() {
			ev := newPushEvent("push-1")
			ev.Verification = evidence.Verification{Source: "carrier_pigeon"}

			res := verifier.Verify(ctx, ev)
			Expect(res.Status).To(Equal(verify.StatusFail))
			Expect(res.Errors).To(ContainElement("unknown verification source for event: carrier_pigeon"))
		})
	})

	Describe("VerifyAll", func() {
		It("aggregates errors in input order regardless of completion order", func() {
			gh.getCommitFn = func(_ context.Context, _, _, sha string) (*github.Commit, error) {
				if sha == strings.Repeat("c", 40) {
					time.Sleep(10 * time.Millisecond)
					return &github.Commit{SHA: sha, Message: "wrong one", AuthorName: "mallory"}, nil
				}
				return &github.Commit{SHA: sha, Message: "Add helper", AuthorName: "eve"}, nil
			}

			first := newCommitObservation("commit-1")
			second := newCommitObservation("commit-2")
			second.SHA = strings.Repeat("d", 40)

			report := verifier.VerifyAll(ctx, []evidence.Evidence{first, second})
			Expect(report.Valid).To(BeFalse())
			Expect(report.Checked).To(Equal(2))
			Expect(report.Failed).To(Equal(2))
			Expect(report.Errors).To(Equal([]string{
				"[commit-1] Message mismatch",
				"[commit-2] Author mismatch: expected mallory, got eve",
			}))
		})

		It("counts skips toward validity", func() {
			archive.available = false

			report := verifier.VerifyAll(ctx, []evidence.Evidence{newPushEvent("push-1")})
			Expect(report.Valid).To(BeTrue())
			Expect(report.Checked).To(Equal(1))
			Expect(report.Skipped).To(Equal(1))
			Expect(report.Errors).To(BeEmpty())
		})
	})
})
