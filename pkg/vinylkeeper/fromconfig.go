package vinylkeeper

import (
	"fmt"
	"os"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/internal/catalog"
	"github.com/himanishpuri/VinylKeeper/internal/config"
	"github.com/himanishpuri/VinylKeeper/internal/identify"
	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/internal/webapi"
)

// LiveSource captures from the input device named in cfg.
func LiveSource(cfg *config.Config) session.Opener {
	capture := cfg.GetCaptureConfig()
	return CaptureSource(audio.CaptureConfig{
		FFmpegPath:  capture.FFmpegPath,
		InputFormat: capture.Format,
		Device:      capture.Device,
		SampleRate:  capture.SampleRate,
	}, cfg.ArchivePath)
}

// OptionsFromConfig translates a loaded config file into service options,
// building the remote providers it selects.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	capture := cfg.GetCaptureConfig()
	ident := cfg.GetIdentifyConfig()
	cat := cfg.GetCatalogConfig()

	opts := []Option{
		WithIndexRate(ident.IndexRate),
		WithMinVotes(ident.MinVotes),
		WithWindowLength(cfg.WindowLength()),
		WithChunkSize(capture.ChunkFrames),
		WithQueueSize(capture.QueueSize),
		WithCacheSize(cat.CacheSize),
	}
	if cfg.DBPath != "" {
		opts = append(opts, WithDBPath(cfg.DBPath))
	}
	if cfg.IndexPath != "" {
		opts = append(opts, WithIndexPath(cfg.IndexPath))
	}
	if cfg.TempDir != "" {
		opts = append(opts, WithTempDir(cfg.TempDir))
	}

	switch ident.Provider {
	case config.ProviderLocal:
	case config.ProviderAcoustID:
		tempDir := cfg.TempDir
		if tempDir == "" {
			tempDir = os.TempDir()
		}
		p, err := identify.NewAcoustIDProvider(ident.AcoustIDKey,
			identify.WithFpcalcPath(ident.FpcalcPath),
			identify.WithTempDir(tempDir),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithProvider(p))
	default:
		return nil, fmt.Errorf("unknown identify provider %q", ident.Provider)
	}

	switch cat.Provider {
	case config.ProviderLocal:
	case config.ProviderMusicBrainz:
		ua := cat.UserAgent
		if ua == "" {
			ua = webapi.DefaultUserAgent
		}
		opts = append(opts, WithCatalog(catalog.NewMusicBrainz(ua)))
	default:
		return nil, fmt.Errorf("unknown catalog provider %q", cat.Provider)
	}

	return opts, nil
}
