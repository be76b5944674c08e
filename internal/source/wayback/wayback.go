// Package wayback speaks to the Wayback Machine CDX API. There is no
// maintained Go client for CDX, so this one is a thin net/http wrapper.
package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	cdxURL     = "https://web.archive.org/cdx/search/cdx"
	archiveURL = "https://web.archive.org/web"
)

// Snapshot is one archived capture as the CDX API reports it.
type Snapshot struct {
	Timestamp  string // YYYYMMDDHHMMSS
	Original   string
	Digest     string
	MimeType   string
	StatusCode string
	Length     string
}

// API is the web-archive contract the collectors consume.
type API interface {
	// SearchSnapshots lists captures of a URL, optionally bounded by
	// YYYYMMDD dates.
	SearchSnapshots(ctx context.Context, target, fromDate, toDate string, limit int) ([]Snapshot, error)
	// FetchSnapshotContent returns the archived page body, or ok=false
	// when the capture does not exist.
	FetchSnapshotContent(ctx context.Context, target, timestamp string) (content string, ok bool, err error)
}

// Client implements API.
type Client struct {
	httpClient *http.Client
}

var _ API = (*Client)(nil)

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

func (c *Client) SearchSnapshots(ctx context.Context, target, fromDate, toDate string, limit int) ([]Snapshot, error) {
	params := url.Values{}
	params.Set("url", target)
	params.Set("output", "json")
	params.Set("matchType", "exact")
	params.Set("filter", "statuscode:200")
	params.Set("limit", strconv.Itoa(limit))
	if fromDate != "" {
		params.Set("from", fromDate)
	}
	if toDate != "" {
		params.Set("to", toDate)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cdxURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching cdx for %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searching cdx for %s: unexpected status %d", target, resp.StatusCode)
	}

	// CDX JSON output is a header row followed by value rows.
	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding cdx response: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	header := map[string]int{}
	for i, name := range rows[0] {
		header[name] = i
	}
	field := func(row []string, name string) string {
		i, ok := header[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	snapshots := make([]Snapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		snapshots = append(snapshots, Snapshot{
			Timestamp:  field(row, "timestamp"),
			Original:   field(row, "original"),
			Digest:     field(row, "digest"),
			MimeType:   field(row, "mimetype"),
			StatusCode: field(row, "statuscode"),
			Length:     field(row, "length"),
		})
	}
	return snapshots, nil
}

func (c *Client) FetchSnapshotContent(ctx context.Context, target, timestamp string) (string, bool, error) {
	snapshotURL := fmt.Sprintf("%s/%s/%s", archiveURL, timestamp, target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetching snapshot %s: %w", snapshotURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("reading snapshot %s: %w", snapshotURL, err)
	}
	return string(body), true, nil
}
