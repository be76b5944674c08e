package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/http/handler"
	"github.com/mbrg/raptor/internal/store"
	"github.com/mbrg/raptor/internal/verify"
)

type mockBatchVerifier struct {
	verifyAllFn func(ctx context.Context, items []evidence.Evidence) verify.Report
}

func (m *mockBatchVerifier) VerifyAll(ctx context.Context, items []evidence.Evidence) verify.Report {
	if m.verifyAllFn != nil {
		return m.verifyAllFn(ctx, items)
	}
	return verify.Report{Valid: true, Errors: []string{}}
}

func storedPush(id string, when time.Time) *evidence.PushEvent {
	return &evidence.PushEvent{
		EventBase: evidence.EventBase{
			EvidenceID: id,
			When:       when,
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

func storedCommit(id string) *evidence.CommitObservation {
	return &evidence.CommitObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   id,
			ObservedWhen: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			ObservedBy:   evidence.SourceGitHub,
			Repository:   &evidence.Repository{Owner: "acme", Name: "widgets", FullName: "acme/widgets"},
			Verification: evidence.Verification{Source: evidence.SourceGitHub},
		},
		SHA:     strings.Repeat("c", 40),
		Message: "Add helper",
	}
}

var _ = Describe("EvidenceHandler", func() {
	var (
		router   *gin.Engine
		st       *store.Store
		verifier *mockBatchVerifier
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		st = store.New(
			storedPush("push-1", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)),
			storedCommit("commit-1"),
		)
		verifier = &mockBatchVerifier{}

		router = gin.New()
		h := handler.NewEvidenceHandler(st, verifier)
		router.GET("/evidence", h.List)
		router.GET("/evidence/summary", h.Summary)
		router.POST("/evidence/verify", h.Verify)
		router.GET("/evidence/:id", h.Get)
	})

	Describe("List", func() {
		It("returns all records with discriminators", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/evidence", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Total   int                          `json:"total"`
				Records []map[string]json.RawMessage `json:"records"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Total).To(Equal(2))
			Expect(string(resp.Records[0]["event_type"])).To(Equal(`"push"`))
			Expect(string(resp.Records[1]["observation_type"])).To(Equal(`"commit"`))
		})

		It("applies query filters", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/evidence?observation_type=commit&repo=acme/widgets", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Total int `json:"total"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Total).To(Equal(1))
		})

		It("rejects malformed time bounds", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/evidence?after=yesterday", nil))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Get", func() {
		It("returns one record by id", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/evidence/commit-1", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var record map[string]json.RawMessage
			Expect(json.Unmarshal(w.Body.Bytes(), &record)).To(Succeed())
			Expect(string(record["observation_type"])).To(Equal(`"commit"`))
		})

		It("returns 404 for a missing id", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/evidence/nope", nil))

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Summary", func() {
		It("counts by kind and source", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/evidence/summary", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var sum store.Summary
			Expect(json.Unmarshal(w.Body.Bytes(), &sum)).To(Succeed())
			Expect(sum.Total).To(Equal(2))
			Expect(sum.Events).To(HaveKeyWithValue("push", 1))
			Expect(sum.Observations).To(HaveKeyWithValue("commit", 1))
		})
	})

	Describe("Verify", func() {
		It("runs the verifier over the whole collection", func() {
			verifier.verifyAllFn = func(_ context.Context, items []evidence.Evidence) verify.Report {
				return verify.Report{
					Valid:   false,
					Errors:  []string{"[commit-1] Message mismatch"},
					Checked: len(items),
					Failed:  1,
				}
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/evidence/verify", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var report verify.Report
			Expect(json.Unmarshal(w.Body.Bytes(), &report)).To(Succeed())
			Expect(report.Valid).To(BeFalse())
			Expect(report.Checked).To(Equal(2))
			Expect(report.Errors).To(ConsistOf("[commit-1] Message mismatch"))
		})
	})
})
