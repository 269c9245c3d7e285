package vinylkeeper

import (
	"os"
	"time"

	"github.com/himanishpuri/VinylKeeper/internal/catalog"
	"github.com/himanishpuri/VinylKeeper/internal/identify"
	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
)

type Config struct {
	DBPath       string
	IndexPath    string
	TempDir      string
	IndexRate    int
	MinVotes     int
	WindowLength time.Duration
	ChunkSize    int
	QueueSize    int
	CacheSize    int
	Logger       Logger

	// Provider and Catalog default to the local index.
	Provider identify.Provider
	Catalog  catalog.Provider
	Source   session.Opener
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithIndexPath(path string) Option {
	return func(c *Config) {
		c.IndexPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithIndexRate sets the rate the local index fingerprints at.
func WithIndexRate(rate int) Option {
	return func(c *Config) {
		c.IndexRate = rate
	}
}

func WithMinVotes(n int) Option {
	return func(c *Config) {
		c.MinVotes = n
	}
}

func WithWindowLength(d time.Duration) Option {
	return func(c *Config) {
		c.WindowLength = d
	}
}

func WithChunkSize(n int) Option {
	return func(c *Config) {
		c.ChunkSize = n
	}
}

func WithQueueSize(n int) Option {
	return func(c *Config) {
		c.QueueSize = n
	}
}

func WithCacheSize(n int) Option {
	return func(c *Config) {
		c.CacheSize = n
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithProvider replaces local identification, e.g. with AcoustID.
func WithProvider(p identify.Provider) Option {
	return func(c *Config) {
		c.Provider = p
	}
}

func WithCatalog(p catalog.Provider) Option {
	return func(c *Config) {
		c.Catalog = p
	}
}

// WithSource sets how each session opens its audio.
func WithSource(open session.Opener) Option {
	return func(c *Config) {
		c.Source = open
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:       storage.DefaultDBFile,
		IndexPath:    storage.DefaultIndexFile,
		TempDir:      os.TempDir(),
		IndexRate:    identify.DefaultIndexRate,
		MinVotes:     identify.DefaultMinVotes,
		WindowLength: time.Second,
		ChunkSize:    session.DefaultChunk,
		QueueSize:    session.DefaultQueueSize,
		CacheSize:    catalog.DefaultCacheSize,
	}
}
