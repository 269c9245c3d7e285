package identify

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/internal/fingerprint"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// memoryStore is an in-memory CoupleStore.
type memoryStore struct {
	couples map[uint32][]models.Couple
	err     error
}

func (m *memoryStore) add(hashes []fingerprint.Hash, trackID string) {
	if m.couples == nil {
		m.couples = make(map[uint32][]models.Couple)
	}
	for addr, cs := range fingerprint.Couples(hashes, trackID) {
		m.couples[addr] = append(m.couples[addr], cs...)
	}
}

func (m *memoryStore) GetCouplesByHashes(_ context.Context, hashes []uint32) (map[uint32][]models.Couple, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[uint32][]models.Couple)
	for _, h := range hashes {
		if cs, ok := m.couples[h]; ok {
			out[h] = cs
		}
	}
	return out, nil
}

// tones builds a signal whose dominant frequency jumps every 100ms.
func tones(seconds float64, rate int, seed int64) []int16 {
	rng := rand.New(rand.NewSource(seed))
	n := int(seconds * float64(rate))
	out := make([]float64, n)
	freq := 0.0
	for i := range out {
		if i%(rate/10) == 0 {
			freq = 300 + rng.Float64()*3000
		}
		out[i] = 0.6*math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) + 0.01*(rng.Float64()-0.5)
	}
	return audio.FromFloat64(out)
}

func TestLocalProviderFindsIndexedTrack(t *testing.T) {
	format := models.AudioFormat{Channels: 1, SampleRate: DefaultIndexRate, BitDepth: 16}
	samples := tones(3, format.SampleRate, 1)

	store := &memoryStore{}
	p := NewLocalProvider(store, WithMinVotes(1))

	hashes, err := p.Hashes(samples, format.SampleRate)
	require.NoError(t, err)
	require.NotEmpty(t, hashes)
	store.add(hashes, "track-1")

	w := models.SampleWindow{Samples: samples, Format: format}
	fp, err := p.Fingerprint(context.Background(), w)
	require.NoError(t, err)

	candidates, err := p.Lookup(context.Background(), fp)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, models.RecordingID("track-1"), candidates[0].Recording)
	assert.GreaterOrEqual(t, candidates[0].Score, 1.0)
}

func TestLocalProviderResamplesCaptureRate(t *testing.T) {
	samples := tones(2, models.CaptureFormat.SampleRate, 2)

	store := &memoryStore{}
	p := NewLocalProvider(store, WithMinVotes(1))

	hashes, err := p.Hashes(samples, models.CaptureFormat.SampleRate)
	require.NoError(t, err)
	require.NotEmpty(t, hashes)
	store.add(hashes, "track-44k")

	w := models.SampleWindow{Samples: samples, Format: models.CaptureFormat}
	got, err := NewMatcher(p).Match(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, models.RecordingID("track-44k"), got.Recording)
}

func TestLocalProviderShortWindowHasNoCandidates(t *testing.T) {
	p := NewLocalProvider(&memoryStore{})

	w := models.SampleWindow{Samples: make([]int16, 100), Format: models.CaptureFormat}
	_, err := NewMatcher(p).Match(context.Background(), w)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestResampleKeepsFilterTail(t *testing.T) {
	out, err := resample(make([]float64, 44100), 44100, DefaultIndexRate)
	require.NoError(t, err)
	assert.InEpsilon(t, DefaultIndexRate, len(out), 0.012)

	out, err = resample(make([]float64, 441), 44100, DefaultIndexRate)
	require.NoError(t, err)
	assert.NotEmpty(t, out, "short input still yields its tail")
}

func TestLocalProviderSubFrameWindowsHaveNoHashes(t *testing.T) {
	p := NewLocalProvider(&memoryStore{})
	for _, n := range []int{1, 100, 4000} {
		hashes, err := p.Hashes(make([]int16, n), models.CaptureFormat.SampleRate)
		require.NoError(t, err, "window of %d samples", n)
		assert.Empty(t, hashes)
	}
}

func TestLocalProviderMinVotes(t *testing.T) {
	format := models.AudioFormat{Channels: 1, SampleRate: DefaultIndexRate, BitDepth: 16}
	samples := tones(1, format.SampleRate, 3)

	store := &memoryStore{}
	p := NewLocalProvider(store, WithMinVotes(math.MaxInt32))
	hashes, err := p.Hashes(samples, format.SampleRate)
	require.NoError(t, err)
	store.add(hashes, "track-1")

	fp, err := p.Fingerprint(context.Background(), models.SampleWindow{Samples: samples, Format: format})
	require.NoError(t, err)
	candidates, err := p.Lookup(context.Background(), fp)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestLocalProviderErrors(t *testing.T) {
	p := NewLocalProvider(&memoryStore{err: errors.New("db down")}, WithMinVotes(1))

	_, err := p.Fingerprint(context.Background(), models.SampleWindow{
		Samples: make([]int16, 10),
		Format:  models.AudioFormat{Channels: 2, SampleRate: 44100, BitDepth: 16},
	})
	assert.Error(t, err, "stereo windows are rejected")

	_, err = p.Lookup(context.Background(), []byte{0xc1})
	assert.Error(t, err, "garbage blob is rejected")

	samples := tones(3, DefaultIndexRate, 4)
	fp, err := p.Fingerprint(context.Background(), models.SampleWindow{
		Samples: samples,
		Format:  models.AudioFormat{Channels: 1, SampleRate: DefaultIndexRate, BitDepth: 16},
	})
	require.NoError(t, err)
	_, err = p.Lookup(context.Background(), fp)
	assert.ErrorContains(t, err, "db down")
}
