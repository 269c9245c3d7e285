package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	ProviderLocal       = "local"
	ProviderAcoustID    = "acoustid"
	ProviderMusicBrainz = "musicbrainz"
)

type Config struct {
	DBPath      string `koanf:"db_path"`      // play log database
	IndexPath   string `koanf:"index_path"`   // local fingerprint index
	TempDir     string `koanf:"temp_dir"`     // scratch space for conversions and fpcalc
	ArchivePath string `koanf:"archive_path"` // if set, each session is also written to this WAV file
	LogLevel    string `koanf:"log_level"`

	Capture  CaptureConfig  `koanf:"capture"`
	Segment  SegmentConfig  `koanf:"segment"`
	Identify IdentifyConfig `koanf:"identify"`
	Catalog  CatalogConfig  `koanf:"catalog"`
}

// CaptureConfig selects the live input handed to ffmpeg.
type CaptureConfig struct {
	FFmpegPath  string `koanf:"ffmpeg_path"`
	Format      string `koanf:"format"` // ffmpeg input format: "alsa", "pulse", "avfoundation", "dshow"
	Device      string `koanf:"device"`
	SampleRate  int    `koanf:"sample_rate"`
	ChunkFrames int    `koanf:"chunk_frames"` // frames per read (default: 1024)
	QueueSize   int    `koanf:"queue_size"`   // windows buffered ahead of identification (default: 64)
}

type SegmentConfig struct {
	LengthMs int `koanf:"length_ms"` // default: 1000
}

type IdentifyConfig struct {
	Provider    string `koanf:"provider"` // "local" or "acoustid"
	AcoustIDKey string `koanf:"acoustid_key"`
	FpcalcPath  string `koanf:"fpcalc_path"`
	IndexRate   int    `koanf:"index_rate"` // default: 11025
	MinVotes    int    `koanf:"min_votes"`  // default: 5
}

type CatalogConfig struct {
	Provider  string `koanf:"provider"` // "local" or "musicbrainz"
	UserAgent string `koanf:"user_agent"`
	CacheSize int    `koanf:"cache_size"`
}

// Load reads config files in order of priority (last wins). Missing files are skipped.
func Load() (*Config, error) {
	return LoadFiles(getConfigPaths()...)
}

func LoadFiles(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.DBPath = expandPath(cfg.DBPath)
	cfg.IndexPath = expandPath(cfg.IndexPath)
	cfg.TempDir = expandPath(cfg.TempDir)
	cfg.ArchivePath = expandPath(cfg.ArchivePath)
	cfg.Identify.FpcalcPath = expandPath(cfg.Identify.FpcalcPath)
	cfg.Capture.FFmpegPath = expandPath(cfg.Capture.FFmpegPath)

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/vinylkeeper/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vinylkeeper", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetCaptureConfig returns the capture configuration with defaults applied.
func (c *Config) GetCaptureConfig() CaptureConfig {
	cfg := c.Capture
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Format == "" {
		cfg.Format = "alsa"
	}
	if cfg.Device == "" {
		cfg.Device = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.ChunkFrames <= 0 {
		cfg.ChunkFrames = 1024
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return cfg
}

// WindowLength returns the segment duration.
func (c *Config) WindowLength() time.Duration {
	if c.Segment.LengthMs <= 0 {
		return time.Second
	}
	return time.Duration(c.Segment.LengthMs) * time.Millisecond
}

// GetIdentifyConfig returns the identification configuration with defaults applied.
// The AcoustID key falls back to ACOUSTID_API_KEY.
func (c *Config) GetIdentifyConfig() IdentifyConfig {
	cfg := c.Identify
	if cfg.Provider == "" {
		cfg.Provider = ProviderLocal
	}
	if cfg.AcoustIDKey == "" {
		cfg.AcoustIDKey = os.Getenv("ACOUSTID_API_KEY")
	}
	if cfg.FpcalcPath == "" {
		cfg.FpcalcPath = "fpcalc"
	}
	if cfg.IndexRate <= 0 {
		cfg.IndexRate = 11025
	}
	if cfg.MinVotes <= 0 {
		cfg.MinVotes = 5
	}
	return cfg
}

// GetCatalogConfig returns the catalog configuration with defaults applied. The
// catalog follows the identification provider unless set.
func (c *Config) GetCatalogConfig() CatalogConfig {
	cfg := c.Catalog
	if cfg.Provider == "" {
		if c.GetIdentifyConfig().Provider == ProviderAcoustID {
			cfg.Provider = ProviderMusicBrainz
		} else {
			cfg.Provider = ProviderLocal
		}
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	return cfg
}

// HasArchive reports whether sessions should be recorded to a WAV file.
func (c *Config) HasArchive() bool {
	return c.ArchivePath != ""
}
