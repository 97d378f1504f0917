package provider

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// pngBytes returns a real encoded PNG large enough to pass typical
// minimum-size thresholds.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 31)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClassify_TransportErrorRetries(t *testing.T) {
	outcome := Classify(RawResponse{Err: errors.New("dial tcp: i/o timeout")}, 16)
	require.Equal(t, OutcomeRetry, outcome.Kind)
	require.Equal(t, "timeout", outcome.Reason)
}

func TestClassify_ValidImageSucceeds(t *testing.T) {
	payload := pngBytes(t)
	outcome := Classify(RawResponse{StatusCode: 200, Body: payload}, 16)
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	require.Equal(t, payload, outcome.Payload)
}

func TestClassify_UndersizedImageFailsOver(t *testing.T) {
	payload := pngBytes(t)
	outcome := Classify(RawResponse{StatusCode: 200, Body: payload}, len(payload)+1)
	require.Equal(t, OutcomeFailover, outcome.Kind)
	require.Equal(t, "invalid payload", outcome.Reason)
}

func TestClassify_NonImageBodyFailsOver(t *testing.T) {
	body := []byte(`{"error": "model overloaded, but we said 200 anyway"}`)
	outcome := Classify(RawResponse{StatusCode: 200, Body: body}, 16)
	require.Equal(t, OutcomeFailover, outcome.Kind)
	require.Equal(t, "invalid payload", outcome.Reason)
}

func TestClassify_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   OutcomeKind
		reason string
	}{
		{"cold start retries", 503, OutcomeRetry, "loading"},
		{"payment required fails over", 402, OutcomeFailover, "payment required for this account"},
		{"forbidden fails over", 403, OutcomeFailover, "access forbidden for this account"},
		{"model missing fails over", 404, OutcomeFailover, "model missing"},
		{"rate limit retries", 429, OutcomeRetry, "rate limited"},
		{"unknown error fails over", 500, OutcomeFailover, "unclassified error 500"},
		{"teapot fails over", 418, OutcomeFailover, "unclassified error 418"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Classify(RawResponse{StatusCode: tt.status, Body: []byte("err")}, 16)
			require.Equal(t, tt.kind, outcome.Kind)
			require.Equal(t, tt.reason, outcome.Reason)
		})
	}
}

func TestClassify_IsPure(t *testing.T) {
	raw := RawResponse{StatusCode: 503, Body: []byte("loading")}
	first := Classify(raw, 16)
	second := Classify(raw, 16)
	require.Equal(t, first, second)
}
