package provider

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Classify maps a raw provider response to an Outcome. Pure: no side
// effects, deterministic for a given response and threshold. Rules are
// checked in priority order, first match wins.
func Classify(raw RawResponse, minImageBytes int) Outcome {
	// Transport failure: the provider may just be slow or flapping
	if raw.Err != nil {
		return Outcome{Kind: OutcomeRetry, Reason: "timeout"}
	}

	switch raw.StatusCode {
	case http.StatusOK:
		if len(raw.Body) >= minImageBytes && isImage(raw.Body) {
			return Outcome{Kind: OutcomeSuccess, Payload: raw.Body}
		}
		// A 200 with garbage means the provider is untrustworthy for this
		// request; don't waste a retry on it
		return Outcome{Kind: OutcomeFailover, Reason: "invalid payload"}
	case http.StatusServiceUnavailable:
		// model loading / cold start
		return Outcome{Kind: OutcomeRetry, Reason: "loading"}
	case http.StatusPaymentRequired:
		return Outcome{Kind: OutcomeFailover, Reason: "payment required for this account"}
	case http.StatusForbidden:
		return Outcome{Kind: OutcomeFailover, Reason: "access forbidden for this account"}
	case http.StatusNotFound:
		return Outcome{Kind: OutcomeFailover, Reason: "model missing"}
	case http.StatusTooManyRequests:
		return Outcome{Kind: OutcomeRetry, Reason: "rate limited"}
	default:
		return Outcome{Kind: OutcomeFailover, Reason: fmt.Sprintf("unclassified error %d", raw.StatusCode)}
	}
}

func isImage(data []byte) bool {
	return strings.HasPrefix(mimetype.Detect(data).String(), "image/")
}
