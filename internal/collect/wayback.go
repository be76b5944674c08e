package collect

import (
	"context"
	"fmt"

	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/source/wayback"
)

// WaybackCollector builds snapshot observations from web-archive captures.
type WaybackCollector struct {
	client wayback.API
}

func NewWaybackCollector(client wayback.API) *WaybackCollector {
	return &WaybackCollector{client: client}
}

// CollectSnapshots records every archived capture of a URL as one
// snapshot observation. fromDate and toDate are optional YYYYMMDD bounds.
func (c *WaybackCollector) CollectSnapshots(ctx context.Context, target, fromDate, toDate string, limit int) (*evidence.SnapshotObservation, error) {
	if limit <= 0 {
		limit = 1000
	}
	snapshots, err := c.client.SearchSnapshots(ctx, target, fromDate, toDate, limit)
	if err != nil {
		return nil, err
	}

	captures := make([]evidence.ArchivedSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		captures = append(captures, evidence.ArchivedSnapshot{
			Timestamp:  s.Timestamp,
			Original:   s.Original,
			Digest:     s.Digest,
			MimeType:   s.MimeType,
			StatusCode: s.StatusCode,
			Length:     s.Length,
		})
	}

	verificationURL := ""
	if len(captures) > 0 {
		verificationURL = fmt.Sprintf("https://web.archive.org/web/%s/%s", captures[0].Timestamp, target)
	}

	obs := &evidence.SnapshotObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   evidenceID("snapshot", target),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceWayback,
			ObservedWhat: fmt.Sprintf("%d archived snapshots of %s found via Wayback CDX", len(captures), target),
			Verification: evidence.Verification{
				Source: evidence.SourceWayback,
				URL:    verificationURL,
			},
		},
		OriginalURL:    target,
		Snapshots:      captures,
		TotalSnapshots: len(captures),
	}
	return obs, obs.Validate()
}
