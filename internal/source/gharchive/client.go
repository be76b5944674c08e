package gharchive

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// Client implements API against BigQuery. Credentials resolve through
// Application Default Credentials (GOOGLE_APPLICATION_CREDENTIALS, gcloud,
// metadata server); without them every query fails and Available reports
// false.
type Client struct {
	projectID string

	mu sync.Mutex
	bq *bigquery.Client
}

var _ API = (*Client)(nil)

func NewClient(projectID string) *Client {
	return &Client{projectID: projectID}
}

func (c *Client) client(ctx context.Context) (*bigquery.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bq != nil {
		return c.bq, nil
	}
	projectID := c.projectID
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	bq, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c.bq = bq
	return bq, nil
}

// Close releases the underlying BigQuery client if one was created.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bq == nil {
		return nil
	}
	err := c.bq.Close()
	c.bq = nil
	return err
}

func (c *Client) Available(ctx context.Context) bool {
	_, err := c.client(ctx)
	return err == nil
}

// QueryEvents runs a parameterized query against the daily archive table
// for the day of q.From. A malformed From is rejected, never truncated.
func (c *Client) QueryEvents(ctx context.Context, q Query) ([]Row, error) {
	if len(q.From) != 12 {
		return nil, fmt.Errorf("invalid time window %q: want YYYYMMDDHHMM", q.From)
	}
	day := q.From[:8]
	for _, ch := range q.From {
		if ch < '0' || ch > '9' {
			return nil, fmt.Errorf("invalid time window %q: want YYYYMMDDHHMM", q.From)
		}
	}
	hour, _ := strconv.Atoi(q.From[8:10])
	minute, _ := strconv.Atoi(q.From[10:12])

	bq, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	// Table names cannot be parameterized; day is validated digits above.
	sql := fmt.Sprintf(`
		SELECT
			type,
			created_at,
			actor.login AS actor_login,
			actor.id AS actor_id,
			repo.name AS repo_name,
			repo.id AS repo_id,
			TO_JSON_STRING(payload) AS payload
		FROM `+"`githubarchive.day.%s`"+`
		WHERE EXTRACT(HOUR FROM created_at) = @hour
		  AND EXTRACT(MINUTE FROM created_at) = @minute`, day)

	params := []bigquery.QueryParameter{
		{Name: "hour", Value: hour},
		{Name: "minute", Value: minute},
	}
	if q.Repo != "" {
		sql += "\n\t\t  AND repo.name = @repo"
		params = append(params, bigquery.QueryParameter{Name: "repo", Value: q.Repo})
	}
	if q.Actor != "" {
		sql += "\n\t\t  AND actor.login = @actor"
		params = append(params, bigquery.QueryParameter{Name: "actor", Value: q.Actor})
	}
	if q.EventType != "" {
		sql += "\n\t\t  AND type = @event_type"
		params = append(params, bigquery.QueryParameter{Name: "event_type", Value: q.EventType})
	}
	sql += "\n\t\tORDER BY created_at\n\t\tLIMIT 1000"

	query := bq.Query(sql)
	query.Parameters = params

	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying gh archive: %w", err)
	}

	var rows []Row
	for {
		var r struct {
			Type       string                 `bigquery:"type"`
			CreatedAt  bigquery.NullTimestamp `bigquery:"created_at"`
			ActorLogin string                 `bigquery:"actor_login"`
			ActorID    int64                  `bigquery:"actor_id"`
			RepoName   string                 `bigquery:"repo_name"`
			RepoID     int64                  `bigquery:"repo_id"`
			Payload    string                 `bigquery:"payload"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading gh archive rows: %w", err)
		}
		row := Row{
			Type:       r.Type,
			ActorLogin: r.ActorLogin,
			ActorID:    r.ActorID,
			RepoName:   r.RepoName,
			RepoID:     r.RepoID,
			Payload:    r.Payload,
		}
		if r.CreatedAt.Valid {
			row.CreatedAt = r.CreatedAt.Timestamp
		}
		rows = append(rows, row)
	}
	return rows, nil
}
