package vinylkeeper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/internal/catalog"
	"github.com/himanishpuri/VinylKeeper/internal/fingerprint"
	"github.com/himanishpuri/VinylKeeper/internal/identify"
	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/logger"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

var ErrNoSource = errors.New("no audio source configured")

// Service ties the play log, the local index and the session pipeline together.
type Service struct {
	plays   *storage.PlayLog
	index   *storage.Index
	local   *identify.LocalProvider
	session *session.Controller
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (*Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	plays, err := storage.OpenPlayLog(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open play log: %w", err)
	}
	index, err := storage.OpenIndex(cfg.IndexPath)
	if err != nil {
		plays.Close()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	local := identify.NewLocalProvider(index,
		identify.WithIndexRate(cfg.IndexRate),
		identify.WithMinVotes(cfg.MinVotes),
	)

	provider := cfg.Provider
	if provider == nil {
		provider = local
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.NewLocal(index)
	}

	source := cfg.Source
	if source == nil {
		source = func(context.Context) (audio.Source, error) { return nil, ErrNoSource }
	}

	ctrl := session.New(
		source,
		identify.NewMatcher(provider),
		catalog.NewResolver(cat, catalog.WithCacheSize(cfg.CacheSize)),
		plays,
		session.WithWindowLength(cfg.WindowLength),
		session.WithChunkSize(cfg.ChunkSize),
		session.WithQueueSize(cfg.QueueSize),
		session.WithLogger(cfg.Logger),
	)

	return &Service{
		plays:   plays,
		index:   index,
		local:   local,
		session: ctrl,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// StartSession captures and records plays until ctx is canceled or the source ends.
func (s *Service) StartSession(ctx context.Context) (session.Summary, error) {
	return s.session.StartSession(ctx)
}

// DisplayData returns the play log ordered by key.
func (s *Service) DisplayData(ctx context.Context, key models.SortKey) (*storage.QueryResult, error) {
	return s.session.DisplayData(ctx, key)
}

func (s *Service) RecentPlays(ctx context.Context, limit int) ([]models.PlayEvent, error) {
	return s.plays.Recent(ctx, limit)
}

func (s *Service) PlayCount(ctx context.Context) (int, error) {
	return s.plays.Len(ctx)
}

// AddTrack fingerprints an audio file into the local index under meta.
func (s *Service) AddTrack(ctx context.Context, audioPath string, meta models.SongMetadata) (string, error) {
	if meta.Name == "" || meta.Artist == "" {
		return "", errors.New("title and artist are required")
	}
	s.log.Infof("Processing track: %s", meta)

	samples, format, err := s.loadAudio(ctx, audioPath)
	if err != nil {
		return "", err
	}

	hashes, err := s.local.Hashes(samples, format.SampleRate)
	if err != nil {
		return "", err
	}
	if len(hashes) == 0 {
		return "", errors.New("no fingerprints extracted, audio too short or silent")
	}
	s.log.Infof("Generated %d hashes", len(hashes))

	duration := time.Duration(len(samples)) * time.Second / time.Duration(format.SampleRate)
	trackID, err := s.index.RegisterTrack(ctx, meta, int(duration.Milliseconds()))
	if err != nil {
		return "", fmt.Errorf("failed to register track: %w", err)
	}

	if err := s.index.StoreFingerprints(ctx, fingerprint.Couples(hashes, trackID)); err != nil {
		if derr := s.index.DeleteTrack(ctx, trackID); derr != nil {
			s.log.Warnf("rollback of track %s failed: %v", trackID, derr)
		}
		return "", fmt.Errorf("failed to store fingerprints: %w", err)
	}

	s.log.Infof("Successfully added track ID=%s", trackID)
	return trackID, nil
}

// MatchFile scores a whole audio file against the local index.
func (s *Service) MatchFile(ctx context.Context, audioPath string) ([]MatchResult, error) {
	s.log.Infof("Matching audio: %s", audioPath)

	samples, format, err := s.loadAudio(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	query, err := s.local.Hashes(samples, format.SampleRate)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Generated %d query hashes", len(query))
	if len(query) == 0 {
		return nil, nil
	}

	couples, err := s.index.GetCouplesByHashes(ctx, fingerprint.Addresses(query))
	if err != nil {
		return nil, err
	}
	s.log.Infof("Retrieved couples for %d hashes", len(couples))

	matches := fingerprint.Vote(query, couples)
	results := make([]MatchResult, 0, len(matches))
	for _, m := range matches {
		track, err := s.index.GetTrack(ctx, m.TrackID)
		if err != nil {
			s.log.Warnf("Failed to get track %s: %v", m.TrackID, err)
			continue
		}

		dbCount, err := s.index.FingerprintCount(ctx, m.TrackID)
		if err != nil {
			s.log.Warnf("Failed to get fingerprint count for track %s: %v", m.TrackID, err)
			dbCount = len(query)
		}

		results = append(results, MatchResult{
			TrackID:      track.ID,
			SongMetadata: track.Metadata(),
			Score:        m.Count,
			OffsetMs:     m.OffsetMs,
			Confidence:   confidence(m.Count, len(query), dbCount),
		})
	}

	s.log.Infof("Returning %d matches", len(results))
	return results, nil
}

func (s *Service) loadAudio(ctx context.Context, path string) ([]int16, models.AudioFormat, error) {
	wavPath, err := audio.ConvertToMonoWAV(ctx, path, s.config.TempDir, audio.ConvertWAVConfig{
		SampleRate: models.CaptureFormat.SampleRate,
	})
	if err != nil {
		return nil, models.AudioFormat{}, fmt.Errorf("audio conversion failed: %w", err)
	}
	samples, format, err := audio.ReadAllWAV(wavPath)
	if err != nil {
		return nil, models.AudioFormat{}, fmt.Errorf("failed to read WAV file: %w", err)
	}
	return samples, format, nil
}

// confidence maps an aligned hash count to 0-100 relative to the smaller of the
// query and indexed track, through a logistic curve centred on a 15% match ratio.
func confidence(matchCount, queryCount, dbCount int) float64 {
	if matchCount == 0 || queryCount == 0 || dbCount == 0 {
		return 0.0
	}

	ratio := float64(matchCount) / float64(min(queryCount, dbCount))

	const (
		steepness = 20.0
		midpoint  = 0.15
	)

	c := 100.0 / (1.0 + math.Exp(-steepness*(ratio-midpoint)))

	if ratio > 0.30 {
		c = math.Min(100.0, c+(ratio-0.30)*50)
	}

	// Fewer than 5 aligned hashes is noise.
	if matchCount < 5 {
		c *= float64(matchCount) / 5.0
	}

	return c
}

func (s *Service) GetTrack(ctx context.Context, id string) (storage.Track, error) {
	return s.index.GetTrack(ctx, id)
}

func (s *Service) ListTracks(ctx context.Context) ([]storage.Track, error) {
	return s.index.ListTracks(ctx)
}

func (s *Service) DeleteTrack(ctx context.Context, id string) error {
	return s.index.DeleteTrack(ctx, id)
}

// Close releases both databases.
func (s *Service) Close() error {
	return errors.Join(s.plays.Close(), s.index.Close())
}
