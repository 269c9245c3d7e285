package identify

import (
	"context"
	"errors"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/internal/fingerprint"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

const (
	DefaultIndexRate = 11025
	DefaultMinVotes  = 5
)

// CoupleStore is the slice of the local index the provider reads.
type CoupleStore interface {
	GetCouplesByHashes(ctx context.Context, hashes []uint32) (map[uint32][]models.Couple, error)
}

// LocalProvider identifies windows against the local fingerprint index.
// Recording identities are index track ids; scores are aligned hash votes.
type LocalProvider struct {
	store    CoupleStore
	rate     int
	minVotes int
}

type LocalOption func(*LocalProvider)

// WithIndexRate sets the rate audio is resampled to before hashing. It must
// match the rate the index was built at.
func WithIndexRate(rate int) LocalOption {
	return func(p *LocalProvider) {
		if rate > 0 {
			p.rate = rate
		}
	}
}

// WithMinVotes drops tracks whose best offset gathers fewer votes.
func WithMinVotes(n int) LocalOption {
	return func(p *LocalProvider) {
		if n > 0 {
			p.minVotes = n
		}
	}
}

func NewLocalProvider(store CoupleStore, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{store: store, rate: DefaultIndexRate, minVotes: DefaultMinVotes}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LocalProvider) IndexRate() int { return p.rate }

// Hashes computes the pair hashes of mono samples at sampleRate. Audio too short
// for a single analysis frame yields no hashes.
func (p *LocalProvider) Hashes(samples []int16, sampleRate int) ([]fingerprint.Hash, error) {
	resampled, err := resample(audio.ToFloat64(samples), sampleRate, p.rate)
	if err != nil {
		return nil, err
	}
	if len(resampled) < fingerprint.WindowSize {
		return nil, nil
	}
	hashes, _, err := fingerprint.Generate(resampled, p.rate)
	if errors.Is(err, fingerprint.ErrTooShort) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("generating fingerprint: %w", err)
	}
	return hashes, nil
}

func (p *LocalProvider) Fingerprint(_ context.Context, w models.SampleWindow) ([]byte, error) {
	if w.Format.Channels != 1 {
		return nil, fmt.Errorf("expected mono window, got %d channels", w.Format.Channels)
	}
	hashes, err := p.Hashes(w.Samples, w.Format.SampleRate)
	if err != nil {
		return nil, err
	}
	blob, err := msgpack.Marshal(hashes)
	if err != nil {
		return nil, fmt.Errorf("encoding fingerprint: %w", err)
	}
	return blob, nil
}

func (p *LocalProvider) Lookup(ctx context.Context, blob []byte) ([]models.Candidate, error) {
	var hashes []fingerprint.Hash
	if err := msgpack.Unmarshal(blob, &hashes); err != nil {
		return nil, fmt.Errorf("decoding fingerprint: %w", err)
	}
	if len(hashes) == 0 {
		return nil, nil
	}

	couples, err := p.store.GetCouplesByHashes(ctx, fingerprint.Addresses(hashes))
	if err != nil {
		return nil, fmt.Errorf("index lookup: %w", err)
	}

	matches := fingerprint.Vote(hashes, couples)
	candidates := make([]models.Candidate, 0, len(matches))
	for _, m := range matches {
		if m.Count < p.minVotes {
			break
		}
		candidates = append(candidates, models.Candidate{
			Recording: models.RecordingID(m.TrackID),
			Score:     float64(m.Count),
		})
	}
	return candidates, nil
}

func resample(samples []float64, from, to int) ([]float64, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("creating resampler: %w", err)
	}
	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resampling %d -> %d Hz: %w", from, to, err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("flushing resampler: %w", err)
	}
	return append(out, tail...), nil
}
