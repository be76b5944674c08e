package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/store"
	"github.com/mbrg/raptor/internal/verify"
)

// EvidenceHandler serves read-only access to a loaded evidence collection
// plus on-demand verification runs.
type EvidenceHandler struct {
	store    *store.Store
	verifier verify.BatchVerifier
}

func NewEvidenceHandler(st *store.Store, verifier verify.BatchVerifier) *EvidenceHandler {
	return &EvidenceHandler{store: st, verifier: verifier}
}

// List returns records matching the query filters. All filters are ANDed;
// after/before are RFC 3339 timestamps applied to the record's resolved
// timestamp.
func (h *EvidenceHandler) List(c *gin.Context) {
	criteria := store.Criteria{
		EventType:       evidence.EventType(c.Query("event_type")),
		ObservationType: evidence.ObservationType(c.Query("observation_type")),
		Source:          evidence.Source(c.Query("source")),
		Repo:            c.Query("repo"),
	}

	if v := c.Query("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after timestamp: " + v})
			return
		}
		criteria.After = &t
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp: " + v})
			return
		}
		criteria.Before = &t
	}

	matched := h.store.Filter(criteria)
	records, err := marshalRecords(matched)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to marshal evidence", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize evidence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   len(records),
		"records": records,
	})
}

// Get returns a single record by evidence ID.
func (h *EvidenceHandler) Get(c *gin.Context) {
	id := c.Param("id")
	ev, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found: " + id})
		return
	}

	data, err := evidence.Marshal(ev)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to marshal evidence", "evidence_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize evidence"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// Summary returns record counts by discriminator and verification source.
func (h *EvidenceHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Summary())
}

// Verify runs a consistency pass over the whole collection and returns the
// aggregated report. Long-running: every record may hit its upstream source.
func (h *EvidenceHandler) Verify(c *gin.Context) {
	ctx := c.Request.Context()

	report := h.store.VerifyAll(ctx, h.verifier)
	if ctx.Err() != nil {
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "verification canceled"})
		return
	}

	slog.InfoContext(ctx, "verification run complete",
		"checked", report.Checked,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	c.JSON(http.StatusOK, report)
}

func marshalRecords(items []evidence.Evidence) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, 0, len(items))
	for _, ev := range items {
		data, err := evidence.Marshal(ev)
		if err != nil {
			return nil, err
		}
		records = append(records, data)
	}
	return records, nil
}
