package collect

import (
	"fmt"

	"github.com/mbrg/raptor/common/id"
	"github.com/mbrg/raptor/internal/evidence"
)

// Manual constructors for evidence that has no natural key to derive an ID
// from. These records get a generated Snowflake ID instead.

// NewIOC records an indicator of compromise extracted during analysis.
// sourceURL is the vendor report or page the indicator can be re-checked
// against; extractedFrom optionally names the evidence record the value
// came from.
func NewIOC(iocType evidence.IOCType, value string, confidence evidence.Confidence, sourceURL, extractedFrom string) (*evidence.IOC, error) {
	obs := &evidence.IOC{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   "ioc-" + id.NewString(),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceSecurityVendor,
			ObservedWhat: fmt.Sprintf("IOC of type %s recorded during analysis", iocType),
			Verification: evidence.Verification{
				Source: evidence.SourceSecurityVendor,
				URL:    sourceURL,
			},
		},
		IOCType:    iocType,
		Value:      value,
		Confidence: confidence,
	}
	if extractedFrom != "" {
		obs.ExtractedFrom = &extractedFrom
	}
	return obs, obs.Validate()
}

// NewArticle records an external article documenting the incident.
// evidenceIDs optionally link the article to records it corroborates.
func NewArticle(url, title, sourceURL string, evidenceIDs []string) (*evidence.ArticleObservation, error) {
	if sourceURL == "" {
		sourceURL = url
	}
	obs := &evidence.ArticleObservation{
		ObservationBase: evidence.ObservationBase{
			EvidenceID:   "article-" + id.NewString(),
			ObservedWhen: now(),
			ObservedBy:   evidence.SourceSecurityVendor,
			ObservedWhat: fmt.Sprintf("Article %q recorded during analysis", title),
			Verification: evidence.Verification{
				Source: evidence.SourceSecurityVendor,
				URL:    sourceURL,
			},
		},
		URL:         url,
		Title:       title,
		EvidenceIDs: evidenceIDs,
	}
	return obs, obs.Validate()
}
