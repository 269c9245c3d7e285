package identify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/VinylKeeper/internal/webapi"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newAcoustID(t *testing.T, fpcalc FpcalcFunc, rt roundTripFunc) *AcoustIDProvider {
	t.Helper()
	client := webapi.New(0, webapi.WithHTTPClient(&http.Client{Transport: rt}))
	p, err := NewAcoustIDProvider("test-key",
		WithFpcalc(fpcalc),
		WithTempDir(t.TempDir()),
		WithAcoustIDClient(client),
	)
	require.NoError(t, err)
	return p
}

func TestAcoustIDRequiresKey(t *testing.T) {
	_, err := NewAcoustIDProvider("")
	assert.Error(t, err)
}

func TestAcoustIDFingerprintAndLookup(t *testing.T) {
	var wavPath string
	fpcalc := func(_ context.Context, path string) ([]byte, error) {
		wavPath = path
		_, err := os.Stat(path)
		require.NoError(t, err, "window WAV should exist while fpcalc runs")
		return []byte(`{"duration": 1.02, "fingerprint": "AQAAT0mUaEkSRZEGAA"}`), nil
	}

	var query map[string][]string
	rt := func(r *http.Request) (*http.Response, error) {
		query = r.URL.Query()
		return jsonResponse(`{
			"status": "ok",
			"results": [
				{"id": "r1", "score": 0.94, "recordings": [{"id": "mbid-1"}, {"id": "mbid-2"}]},
				{"id": "r2", "score": 0.50},
				{"id": "r3", "score": 0.41, "recordings": [{"id": "mbid-3"}]}
			]
		}`), nil
	}

	p := newAcoustID(t, fpcalc, rt)
	w := models.SampleWindow{Samples: make([]int16, 44100), Format: models.CaptureFormat}

	fp, err := p.Fingerprint(context.Background(), w)
	require.NoError(t, err)
	_, statErr := os.Stat(wavPath)
	assert.True(t, os.IsNotExist(statErr), "window WAV should be removed")

	candidates, err := p.Lookup(context.Background(), fp)
	require.NoError(t, err)

	assert.Equal(t, []string{"test-key"}, query["client"])
	assert.Equal(t, []string{"1"}, query["duration"])
	assert.Equal(t, []string{"AQAAT0mUaEkSRZEGAA"}, query["fingerprint"])
	assert.Equal(t, []string{"recordingids"}, query["meta"])

	require.Len(t, candidates, 3)
	assert.Equal(t, models.RecordingID("mbid-1"), candidates[0].Recording)
	assert.Equal(t, models.RecordingID("mbid-2"), candidates[1].Recording)
	assert.Equal(t, models.RecordingID("mbid-3"), candidates[2].Recording)
	assert.InDelta(t, 0.41, candidates[2].Score, 1e-9)
}

func TestAcoustIDEmptyResults(t *testing.T) {
	fpcalc := func(context.Context, string) ([]byte, error) {
		return []byte(`{"duration": 1, "fingerprint": "AQAA"}`), nil
	}
	rt := func(*http.Request) (*http.Response, error) {
		return jsonResponse(`{"status": "ok", "results": []}`), nil
	}

	_, err := NewMatcher(newAcoustID(t, fpcalc, rt)).Match(context.Background(), window(4410))
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestAcoustIDErrors(t *testing.T) {
	t.Run("fpcalc fails", func(t *testing.T) {
		fpcalc := func(context.Context, string) ([]byte, error) { return nil, errors.New("fpcalc: exit status 3") }
		p := newAcoustID(t, fpcalc, nil)

		_, err := NewMatcher(p).Match(context.Background(), window(4410))
		var ierr *Error
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, OpFingerprint, ierr.Op)
	})

	t.Run("empty fingerprint", func(t *testing.T) {
		fpcalc := func(context.Context, string) ([]byte, error) { return []byte(`{"duration": 1}`), nil }
		p := newAcoustID(t, fpcalc, nil)

		_, err := p.Fingerprint(context.Background(), window(4410))
		assert.ErrorContains(t, err, "fingerprint missing")
	})

	t.Run("api error", func(t *testing.T) {
		fpcalc := func(context.Context, string) ([]byte, error) {
			return []byte(`{"duration": 1, "fingerprint": "AQAA"}`), nil
		}
		rt := func(*http.Request) (*http.Response, error) {
			return jsonResponse(`{"status": "error", "error": {"code": 4, "message": "invalid API key"}}`), nil
		}
		p := newAcoustID(t, fpcalc, rt)

		_, err := NewMatcher(p).Match(context.Background(), window(4410))
		var ierr *Error
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, OpLookup, ierr.Op)
		assert.ErrorContains(t, err, "invalid API key")
	})
}
