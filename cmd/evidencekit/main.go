// Command evidencekit is the forensics workbench CLI: collect evidence from
// the platform API, a local clone, or the web archive; inspect, filter and
// merge evidence files; and verify a collection against its sources.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mbrg/raptor/common/id"
	"github.com/mbrg/raptor/common/logger"
	"github.com/mbrg/raptor/core/config"
	"github.com/mbrg/raptor/internal/collect"
	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/schema"
	"github.com/mbrg/raptor/internal/source/gharchive"
	"github.com/mbrg/raptor/internal/source/github"
	"github.com/mbrg/raptor/internal/source/gitlocal"
	"github.com/mbrg/raptor/internal/source/wayback"
	"github.com/mbrg/raptor/internal/store"
	"github.com/mbrg/raptor/internal/verify"
)

const usage = `usage: evidencekit <command> [flags]

commands:
  summary    print record counts for an evidence file
  filter     select records from an evidence file into a new file
  merge      merge evidence files, later files winning on ID collisions
  verify     check every record against its claimed source
  schema     print JSON Schemas for the record shapes
  collect    fetch evidence from the platform API into a file
  history    record a local clone's commit history
  dangling   sweep a local clone for unreachable commits
  snapshots  record web-archive captures of a URL
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg)
	if err := id.Init(1); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize id generator: %v\n", err)
		os.Exit(1)
	}

	var runErr error
	switch os.Args[1] {
	case "summary":
		runErr = runSummary(os.Args[2:])
	case "filter":
		runErr = runFilter(os.Args[2:])
	case "merge":
		runErr = runMerge(os.Args[2:])
	case "verify":
		runErr = runVerify(ctx, cfg, os.Args[2:])
	case "schema":
		runErr = runSchema(os.Args[2:])
	case "collect":
		runErr = runCollect(ctx, cfg, os.Args[2:])
	case "history":
		runErr = runHistory(ctx, os.Args[2:])
	case "dangling":
		runErr = runDangling(ctx, os.Args[2:])
	case "snapshots":
		runErr = runSnapshots(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "evidencekit %s: %v\n", os.Args[1], runErr)
		os.Exit(1)
	}
}

func runSummary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	file := fs.String("file", "evidence.json", "evidence file to read")
	_ = fs.Parse(args)

	st, err := store.Load(*file)
	if err != nil {
		return err
	}

	sum := st.Summary()
	fmt.Printf("total: %d\n", sum.Total)
	printCounts("events", sum.Events)
	printCounts("observations", sum.Observations)
	printCounts("by source", sum.BySource)
	return nil
}

func printCounts(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for name, n := range counts {
		fmt.Printf("  %-16s %d\n", name, n)
	}
}

func runFilter(args []string) error {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	file := fs.String("file", "evidence.json", "evidence file to read")
	out := fs.String("out", "", "output file (required)")
	eventType := fs.String("event-type", "", "keep only events of this type")
	obsType := fs.String("observation-type", "", "keep only observations of this type")
	source := fs.String("source", "", "keep only records verified by this source")
	repo := fs.String("repo", "", "keep only records for this owner/name")
	after := fs.String("after", "", "keep only records at or after this RFC 3339 time")
	before := fs.String("before", "", "keep only records at or before this RFC 3339 time")
	_ = fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("-out is required")
	}

	st, err := store.Load(*file)
	if err != nil {
		return err
	}

	criteria := store.Criteria{
		EventType:       evidence.EventType(*eventType),
		ObservationType: evidence.ObservationType(*obsType),
		Source:          evidence.Source(*source),
		Repo:            *repo,
	}
	if *after != "" {
		t, err := time.Parse(time.RFC3339, *after)
		if err != nil {
			return fmt.Errorf("invalid -after: %w", err)
		}
		criteria.After = &t
	}
	if *before != "" {
		t, err := time.Parse(time.RFC3339, *before)
		if err != nil {
			return fmt.Errorf("invalid -before: %w", err)
		}
		criteria.Before = &t
	}

	filtered := store.New(st.Filter(criteria)...)
	if err := filtered.Save(*out); err != nil {
		return err
	}
	fmt.Printf("kept %d of %d records -> %s\n", filtered.Len(), st.Len(), *out)
	return nil
}

func runMerge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	out := fs.String("out", "", "output file (required)")
	_ = fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("-out is required")
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("at least one input file is required")
	}

	merged := store.New()
	for _, path := range fs.Args() {
		st, err := store.Load(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		merged.Merge(st)
	}
	if err := merged.Save(*out); err != nil {
		return err
	}
	fmt.Printf("merged %d files into %s (%d records)\n", fs.NArg(), *out, merged.Len())
	return nil
}

func runVerify(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	file := fs.String("file", "evidence.json", "evidence file to read")
	concurrency := fs.Int("concurrency", cfg.Verify.Concurrency, "verification worker count")
	_ = fs.Parse(args)

	st, err := store.Load(*file)
	if err != nil {
		return err
	}

	archiveClient := gharchive.NewClient(cfg.GHArchive.ProjectID)
	defer archiveClient.Close()

	verifier := verify.New(
		github.NewClient(cfg.GitHub.Token, cfg.GitHub.Timeout),
		archiveClient,
		verify.NewHTTPFetcher(cfg.Verify.FetchTimeout),
		verify.Config{Concurrency: *concurrency},
		slog.Default(),
	)

	report := st.VerifyAll(ctx, verifier)
	fmt.Printf("checked: %d  failed: %d  skipped: %d\n", report.Checked, report.Failed, report.Skipped)
	for _, e := range report.Errors {
		fmt.Printf("  %s\n", e)
	}
	if !report.Valid {
		return fmt.Errorf("%d records failed verification", report.Failed)
	}
	return nil
}

func runSchema(args []string) error {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	name := fs.String("name", "", "single variant to print (e.g. event/push); default all")
	_ = fs.Parse(args)

	var (
		data []byte
		err  error
	)
	if *name != "" {
		data, err = schema.Marshal(*name)
	} else {
		data, err = schema.MarshalAll()
	}
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runCollect(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	file := fs.String("file", "evidence.json", "evidence file to update")
	repo := fs.String("repo", "", "owner/name (required)")
	sha := fs.String("sha", "", "commit SHA to collect")
	issue := fs.Int("issue", 0, "issue number to collect")
	pr := fs.Int("pr", 0, "pull request number to collect")
	path := fs.String("path", "", "file path to collect (with -ref)")
	ref := fs.String("ref", "", "ref for -path")
	branch := fs.String("branch", "", "branch name to collect")
	tag := fs.String("tag", "", "tag name to collect")
	release := fs.String("release", "", "release tag to collect")
	forks := fs.Bool("forks", false, "collect the fork network")
	_ = fs.Parse(args)

	parts := strings.SplitN(*repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("-repo must be owner/name")
	}
	owner, name := parts[0], parts[1]

	st, err := loadOrEmpty(*file)
	if err != nil {
		return err
	}

	collector := collect.NewAPICollector(github.NewClient(cfg.GitHub.Token, cfg.GitHub.Timeout))
	var collected []evidence.Evidence

	switch {
	case *sha != "":
		obs, err := collector.CollectCommit(ctx, owner, name, *sha)
		if err != nil {
			return err
		}
		collected = append(collected, obs)
	case *issue > 0:
		obs, err := collector.CollectIssue(ctx, owner, name, *issue)
		if err != nil {
			return err
		}
		collected = append(collected, obs)
	case *pr > 0:
		obs, err := collector.CollectPullRequest(ctx, owner, name, *pr)
		if err != nil {
			return err
		}
		collected = append(collected, obs)
	case *path != "":
		if *ref == "" {
			return fmt.Errorf("-path requires -ref")
		}
		obs, err := collector.CollectFile(ctx, owner, name, *path, *ref)
		if err != nil {
			return err
		}
		collected = append(collected, obs)
	case *branch != "":
		obs, err := collector.CollectBranch(ctx, owner, name, *branch)
		if err != nil {
			return err
		}
		collected = append(collected, obs)
	case *tag != "":
		obs, err := collector.CollectTag(ctx, owner, name, *tag)
		if err != nil {
			return err
		}
		collected = append(collected, obs)
	case *release != "":
		obs, err := collector.CollectRelease(ctx, owner, name, *release)
		if err != nil {
			return err
		}
		collected = append(collected, obs)
	case *forks:
		items, err := collector.CollectForks(ctx, owner, name)
		if err != nil {
			return err
		}
		for _, obs := range items {
			collected = append(collected, obs)
		}
	default:
		return fmt.Errorf("nothing to collect: pass one of -sha, -issue, -pr, -path, -branch, -tag, -release, -forks")
	}

	st.AddAll(collected)
	if err := st.Save(*file); err != nil {
		return err
	}
	fmt.Printf("collected %d records -> %s (%d total)\n", len(collected), *file, st.Len())
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	file := fs.String("file", "evidence.json", "evidence file to update")
	clone := fs.String("clone", ".", "path to the local clone")
	ref := fs.String("ref", "", "ref to walk (default HEAD)")
	limit := fs.Int("limit", 100, "maximum commits to record")
	_ = fs.Parse(args)

	client, err := gitlocal.Open(*clone)
	if err != nil {
		return err
	}

	collector := collect.NewLocalCollector(client, slog.Default())
	items, err := collector.CollectHistory(ctx, gitlocal.LogOptions{Ref: *ref, Limit: *limit})
	if err != nil {
		return err
	}

	st, err := loadOrEmpty(*file)
	if err != nil {
		return err
	}
	for _, obs := range items {
		st.Add(obs)
	}
	if err := st.Save(*file); err != nil {
		return err
	}
	fmt.Printf("recorded %d commits -> %s\n", len(items), *file)
	return nil
}

func runDangling(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dangling", flag.ExitOnError)
	file := fs.String("file", "evidence.json", "evidence file to update")
	clone := fs.String("clone", ".", "path to the local clone")
	_ = fs.Parse(args)

	client, err := gitlocal.Open(*clone)
	if err != nil {
		return err
	}

	collector := collect.NewLocalCollector(client, slog.Default())
	items, err := collector.CollectDanglingCommits(ctx)
	if err != nil {
		return err
	}

	st, err := loadOrEmpty(*file)
	if err != nil {
		return err
	}
	for _, obs := range items {
		st.Add(obs)
	}
	if err := st.Save(*file); err != nil {
		return err
	}
	fmt.Printf("recorded %d dangling commits -> %s\n", len(items), *file)
	return nil
}

func runSnapshots(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	file := fs.String("file", "evidence.json", "evidence file to update")
	url := fs.String("url", "", "URL to look up in the web archive (required)")
	from := fs.String("from", "", "optional YYYYMMDD lower bound")
	to := fs.String("to", "", "optional YYYYMMDD upper bound")
	limit := fs.Int("limit", 1000, "maximum captures to record")
	_ = fs.Parse(args)

	if *url == "" {
		return fmt.Errorf("-url is required")
	}

	collector := collect.NewWaybackCollector(wayback.NewClient(30 * time.Second))
	obs, err := collector.CollectSnapshots(ctx, *url, *from, *to, *limit)
	if err != nil {
		return err
	}

	st, err := loadOrEmpty(*file)
	if err != nil {
		return err
	}
	st.Add(obs)
	if err := st.Save(*file); err != nil {
		return err
	}
	fmt.Printf("recorded %d captures of %s -> %s\n", obs.TotalSnapshots, *url, *file)
	return nil
}

func loadOrEmpty(path string) (*store.Store, error) {
	st, err := store.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store.New(), nil
		}
		return nil, err
	}
	return st, nil
}
