package identify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/internal/webapi"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

const (
	acoustIDLookupURL = "https://api.acoustid.org/v2/lookup"
	// AcoustID allows three requests per second per client.
	acoustIDInterval = 334 * time.Millisecond
)

// chromaprint is the fingerprint blob the AcoustID provider hands to Lookup.
type chromaprint struct {
	Fingerprint string  `msgpack:"fp" json:"fingerprint"`
	Duration    float64 `msgpack:"d" json:"duration"`
}

// FpcalcFunc runs chromaprint's fpcalc -json on a WAV file and returns its stdout.
type FpcalcFunc func(ctx context.Context, wavPath string) ([]byte, error)

// AcoustIDProvider fingerprints windows with fpcalc and looks them up on
// acoustid.org. Recording identities are MusicBrainz recording ids.
type AcoustIDProvider struct {
	apiKey   string
	tempDir  string
	endpoint string
	fpcalc   FpcalcFunc
	client   *webapi.Client
}

type AcoustIDOption func(*AcoustIDProvider)

// WithFpcalcPath runs the given fpcalc binary.
func WithFpcalcPath(path string) AcoustIDOption {
	return func(p *AcoustIDProvider) {
		if path != "" {
			p.fpcalc = execFpcalc(path)
		}
	}
}

// WithFpcalc replaces how fpcalc is invoked.
func WithFpcalc(fn FpcalcFunc) AcoustIDOption {
	return func(p *AcoustIDProvider) { p.fpcalc = fn }
}

// WithTempDir sets where window WAV files are written for fpcalc.
func WithTempDir(dir string) AcoustIDOption {
	return func(p *AcoustIDProvider) { p.tempDir = dir }
}

func WithAcoustIDClient(c *webapi.Client) AcoustIDOption {
	return func(p *AcoustIDProvider) { p.client = c }
}

func WithAcoustIDEndpoint(endpoint string) AcoustIDOption {
	return func(p *AcoustIDProvider) { p.endpoint = endpoint }
}

func NewAcoustIDProvider(apiKey string, opts ...AcoustIDOption) (*AcoustIDProvider, error) {
	if apiKey == "" {
		return nil, errors.New("acoustid: client api key is required")
	}
	p := &AcoustIDProvider{
		apiKey:   apiKey,
		tempDir:  os.TempDir(),
		endpoint: acoustIDLookupURL,
		fpcalc:   execFpcalc("fpcalc"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = webapi.New(acoustIDInterval)
	}
	return p, nil
}

func execFpcalc(bin string) FpcalcFunc {
	return func(ctx context.Context, wavPath string) ([]byte, error) {
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, bin, "-json", wavPath)
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("fpcalc: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return out, nil
	}
}

func (p *AcoustIDProvider) Fingerprint(ctx context.Context, w models.SampleWindow) ([]byte, error) {
	path := filepath.Join(p.tempDir, "vinylkeeper-"+uuid.NewString()+".wav")
	if err := audio.WriteWAV(path, w.Samples, w.Format); err != nil {
		return nil, err
	}
	defer os.Remove(path)

	out, err := p.fpcalc(ctx, path)
	if err != nil {
		return nil, err
	}

	var cp chromaprint
	if err := json.Unmarshal(out, &cp); err != nil {
		return nil, fmt.Errorf("fpcalc: decoding output: %w", err)
	}
	if cp.Fingerprint == "" {
		return nil, errors.New("fpcalc: fingerprint missing")
	}

	blob, err := msgpack.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("encoding fingerprint: %w", err)
	}
	return blob, nil
}

type acoustIDResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Results []struct {
		ID         string  `json:"id"`
		Score      float64 `json:"score"`
		Recordings []struct {
			ID string `json:"id"`
		} `json:"recordings"`
	} `json:"results"`
}

// Lookup returns one candidate per (result, recording) pair in the order
// acoustid.org returns them. Results without recordings are skipped.
func (p *AcoustIDProvider) Lookup(ctx context.Context, blob []byte) ([]models.Candidate, error) {
	var cp chromaprint
	if err := msgpack.Unmarshal(blob, &cp); err != nil {
		return nil, fmt.Errorf("decoding fingerprint: %w", err)
	}

	params := url.Values{}
	params.Set("client", p.apiKey)
	params.Set("meta", "recordingids")
	params.Set("duration", strconv.Itoa(max(1, int(math.Round(cp.Duration)))))
	params.Set("fingerprint", cp.Fingerprint)

	var resp acoustIDResponse
	if err := p.client.GetJSON(ctx, p.endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("acoustid lookup: %w", err)
	}
	if resp.Status != "ok" {
		if resp.Error != nil {
			return nil, fmt.Errorf("acoustid lookup: %s (code %d)", resp.Error.Message, resp.Error.Code)
		}
		return nil, fmt.Errorf("acoustid lookup: status %q", resp.Status)
	}

	var candidates []models.Candidate
	for _, r := range resp.Results {
		for _, rec := range r.Recordings {
			if rec.ID == "" {
				continue
			}
			candidates = append(candidates, models.Candidate{
				Recording: models.RecordingID(rec.ID),
				Score:     r.Score,
			})
		}
	}
	return candidates, nil
}
