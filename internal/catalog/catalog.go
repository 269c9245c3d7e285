// Package catalog resolves recording identities into song metadata.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

var ErrNotFound = errors.New("recording not found")

// Provider maps a recording identity to its descriptive metadata.
type Provider interface {
	Resolve(ctx context.Context, id models.RecordingID) (models.SongMetadata, error)
}

const DefaultCacheSize = 256

// Resolver fronts a Provider. Fields come back trimmed, absent ones empty, and
// successful lookups are kept in an LRU cache since consecutive windows of one
// song keep resolving the same recording.
type Resolver struct {
	provider Provider
	size     int
	cache    *lru.Cache[models.RecordingID, models.SongMetadata] // nil when disabled
}

type ResolverOption func(*Resolver)

// WithCacheSize bounds the number of cached recordings; 0 disables caching.
func WithCacheSize(n int) ResolverOption {
	return func(r *Resolver) { r.size = max(n, 0) }
}

func NewResolver(p Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{provider: p, size: DefaultCacheSize}
	for _, opt := range opts {
		opt(r)
	}
	if r.size > 0 {
		// only fails for a non-positive size
		r.cache, _ = lru.New[models.RecordingID, models.SongMetadata](r.size)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, id models.RecordingID) (models.SongMetadata, error) {
	if id == "" {
		return models.SongMetadata{}, fmt.Errorf("%w: empty recording id", ErrNotFound)
	}
	if r.cache != nil {
		if meta, ok := r.cache.Get(id); ok {
			return meta, nil
		}
	}

	meta, err := r.provider.Resolve(ctx, id)
	if err != nil {
		return models.SongMetadata{}, fmt.Errorf("resolving %s: %w", id, err)
	}
	meta = models.SongMetadata{
		Name:   strings.TrimSpace(meta.Name),
		Artist: strings.TrimSpace(meta.Artist),
		Album:  strings.TrimSpace(meta.Album),
		Genre:  strings.TrimSpace(meta.Genre),
	}
	if r.cache != nil {
		r.cache.Add(id, meta)
	}
	return meta, nil
}

// Static is an in-memory Provider.
type Static map[models.RecordingID]models.SongMetadata

func (s Static) Resolve(_ context.Context, id models.RecordingID) (models.SongMetadata, error) {
	meta, ok := s[id]
	if !ok {
		return models.SongMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return meta, nil
}
