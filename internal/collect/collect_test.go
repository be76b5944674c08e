package collect_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mbrg/raptor/internal/collect"
	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/source/github"
	"github.com/mbrg/raptor/internal/source/gitlocal"
	"github.com/mbrg/raptor/internal/source/wayback"
)

var _ = Describe("APICollector", func() {
	var (
		ctx       context.Context
		gh        *mockGitHub
		collector *collect.APICollector
	)

	BeforeEach(func() {
		ctx = context.Background()
		gh = &mockGitHub{}
		collector = collect.NewAPICollector(gh)
	})

	Describe("CollectCommit", func() {
		It("builds a commit observation with a derived id and verification URL", func() {
			sha := strings.Repeat("c", 40)
			authored := time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)
			gh.getCommitFn = func(_ context.Context, owner, repo, s string) (*github.Commit, error) {
				return &github.Commit{
					SHA:         s,
					Message:     "Add helper\n\nlonger body",
					AuthorName:  "mallory",
					AuthorEmail: "m@example.com",
					AuthoredAt:  authored,
					CommittedAt: authored,
					Files:       []github.ChangedFile{{Filename: "main.go", Status: "modified", Additions: 3}},
				}, nil
			}

			obs, err := collector.CollectCommit(ctx, "acme", "widgets", sha)
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.ID()).To(Equal("commit-acme/widgets-" + sha))
			Expect(obs.Verification.URL).To(Equal("https://github.com/acme/widgets/commit/" + sha))
			Expect(obs.ObservedBy).To(Equal(evidence.SourceGitHub))
			Expect(obs.OriginalWhat).To(Equal("Add helper"))
			Expect(obs.Files).To(HaveLen(1))
			Expect(obs.Repo().FullName).To(Equal("acme/widgets"))
		})

		It("propagates API failures", func() {
			gh.getCommitFn = func(_ context.Context, _, _, _ string) (*github.Commit, error) {
				return nil, errors.New("404 Not Found")
			}
			_, err := collector.CollectCommit(ctx, "acme", "widgets", strings.Repeat("c", 40))
			Expect(err).To(MatchError(ContainSubstring("404")))
		})
	})

	Describe("CollectPullRequest", func() {
		It("records merged state over the raw closed state", func() {
			gh.getPullRequestFn = func(_ context.Context, _, _ string, number int) (*github.Issue, error) {
				return &github.Issue{
					Number:        number,
					Title:         "Fix login",
					State:         "closed",
					Merged:        true,
					IsPullRequest: true,
					User:          "mallory",
					CreatedAt:     time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
				}, nil
			}

			obs, err := collector.CollectPullRequest(ctx, "acme", "widgets", 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.IsPullRequest).To(BeTrue())
			Expect(*obs.State).To(Equal("merged"))
			Expect(obs.Verification.URL).To(Equal("https://github.com/acme/widgets/pull/7"))
		})
	})

	Describe("CollectFile", func() {
		It("hashes the observed content", func() {
			content := "package main\n"
			gh.getFileFn = func(_ context.Context, _, _, path, ref string) (*github.File, error) {
				return &github.File{Path: path, Ref: ref, Content: content, Size: int64(len(content))}, nil
			}

			obs, err := collector.CollectFile(ctx, "acme", "widgets", "main.go", "main")
			Expect(err).NotTo(HaveOccurred())

			digest := sha256.Sum256([]byte(content))
			Expect(*obs.ContentHash).To(Equal(hex.EncodeToString(digest[:])))
			Expect(obs.Content).To(Equal(content))
		})
	})

	Describe("CollectForks", func() {
		It("records one observation per fork", func() {
			created := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
			gh.getForksFn = func(_ context.Context, _, _ string) ([]github.Fork, error) {
				return []github.Fork{
					{FullName: "eve/widgets", Owner: "eve", Name: "widgets", CreatedAt: &created},
					{FullName: "bob/widgets", Owner: "bob", Name: "widgets"},
				}, nil
			}

			items, err := collector.CollectForks(ctx, "acme", "widgets")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].ForkFullName).To(Equal("eve/widgets"))
			Expect(items[0].ParentFullName).To(Equal("acme/widgets"))
			Expect(items[1].ID()).To(Equal("fork-bob/widgets"))
		})

		It("records the parent's canonical identity when available", func() {
			gh.getForksFn = func(_ context.Context, _, _ string) ([]github.Fork, error) {
				return []github.Fork{{FullName: "eve/widgets", Owner: "eve", Name: "widgets"}}, nil
			}
			gh.getRepoFn = func(_ context.Context, _, _ string) (*github.Repo, error) {
				return &github.Repo{Owner: "acme", Name: "widgets", FullName: "acme/widgets", ID: 4242}, nil
			}

			items, err := collector.CollectForks(ctx, "acme", "widgets")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Repo().ID).To(Equal(int64(4242)))
		})
	})
})

var _ = Describe("LocalCollector", func() {
	var (
		ctx       context.Context
		git       *mockGit
		collector *collect.LocalCollector
	)

	BeforeEach(func() {
		ctx = context.Background()
		git = &mockGit{}
		collector = collect.NewLocalCollector(git, nil)
	})

	It("marks local commits as self-attested git evidence", func() {
		sha := strings.Repeat("e", 40)
		git.commitFn = func(_ context.Context, s string) (*gitlocal.Commit, error) {
			return &gitlocal.Commit{SHA: s, Message: "hidden change", AuthorName: "mallory"}, nil
		}

		obs, err := collector.CollectCommit(ctx, sha)
		Expect(err).NotTo(HaveOccurred())
		Expect(obs.ID()).To(Equal("commit-git-" + sha))
		Expect(obs.Verification.Source).To(Equal(evidence.SourceGit))
	})

	Describe("CollectHistory", func() {
		It("records each commit from the log walk", func() {
			first := strings.Repeat("1", 40)
			second := strings.Repeat("2", 40)
			git.logFn = func(_ context.Context, opts gitlocal.LogOptions) ([]gitlocal.Commit, error) {
				Expect(opts.Limit).To(Equal(10))
				return []gitlocal.Commit{{SHA: first}, {SHA: second}}, nil
			}
			git.commitFn = func(_ context.Context, s string) (*gitlocal.Commit, error) {
				return &gitlocal.Commit{SHA: s, Message: "change", AuthorName: "mallory"}, nil
			}

			items, err := collector.CollectHistory(ctx, gitlocal.LogOptions{Limit: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].SHA).To(Equal(first))
		})
	})

	Describe("CollectDanglingCommits", func() {
		It("flags each dangling commit and skips unreadable ones", func() {
			good := strings.Repeat("a", 40)
			bad := strings.Repeat("b", 40)
			git.findDanglingFn = func(_ context.Context) ([]string, error) {
				return []string{good, bad}, nil
			}
			git.commitFn = func(_ context.Context, s string) (*gitlocal.Commit, error) {
				if s == bad {
					return nil, errors.New("object not found")
				}
				return &gitlocal.Commit{SHA: s, Message: "orphaned", AuthorName: "mallory"}, nil
			}

			items, err := collector.CollectDanglingCommits(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].IsDangling).To(BeTrue())
			Expect(items[0].SHA).To(Equal(good))
		})
	})
})

var _ = Describe("WaybackCollector", func() {
	It("rolls all captures into one snapshot observation", func() {
		wb := &mockWayback{}
		wb.searchFn = func(_ context.Context, target, _, _ string, _ int) ([]wayback.Snapshot, error) {
			return []wayback.Snapshot{
				{Timestamp: "20240301120000", Original: target, StatusCode: "200"},
				{Timestamp: "20240302120000", Original: target, StatusCode: "200"},
			}, nil
		}
		collector := collect.NewWaybackCollector(wb)

		obs, err := collector.CollectSnapshots(context.Background(), "https://example.com/page", "", "", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(obs.TotalSnapshots).To(Equal(2))
		Expect(obs.Verification.URL).To(Equal("https://web.archive.org/web/20240301120000/https://example.com/page"))
		Expect(obs.ObservedBy).To(Equal(evidence.SourceWayback))
	})
})

var _ = Describe("manual records", func() {
	It("generates ids for IOCs and keeps the source URL verifiable", func() {
		obs, err := collect.NewIOC(evidence.IOCTypeDomain, "evil.example.net", evidence.ConfidenceHigh, "https://vendor.example.com/report", "commit-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(obs.ID()).To(HavePrefix("ioc-"))
		Expect(obs.Verification.URL).To(Equal("https://vendor.example.com/report"))
		Expect(*obs.ExtractedFrom).To(Equal("commit-1"))
	})

	It("rejects IOCs of unknown type", func() {
		_, err := collect.NewIOC("smell", "x", evidence.ConfidenceLow, "", "")
		Expect(err).To(HaveOccurred())
	})

	It("links articles to corroborating evidence", func() {
		obs, err := collect.NewArticle("https://news.example.com/incident", "Supply chain attack", "", []string{"commit-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(obs.ID()).To(HavePrefix("article-"))
		Expect(obs.Verification.URL).To(Equal("https://news.example.com/incident"))
		Expect(obs.EvidenceIDs).To(ConsistOf("commit-1"))
	})
})
