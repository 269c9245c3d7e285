package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/internal/webapi"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// countingProvider counts calls to the wrapped provider.
type countingProvider struct {
	Provider
	calls int
}

func (c *countingProvider) Resolve(ctx context.Context, id models.RecordingID) (models.SongMetadata, error) {
	c.calls++
	return c.Provider.Resolve(ctx, id)
}

func TestResolverTrimsAndDefaults(t *testing.T) {
	r := NewResolver(Static{"rec": {Name: "  Song ", Artist: "Band\n"}})

	meta, err := r.Resolve(context.Background(), "rec")
	require.NoError(t, err)
	assert.Equal(t, models.SongMetadata{Name: "Song", Artist: "Band"}, meta)
}

func TestResolverNotFound(t *testing.T) {
	r := NewResolver(Static{})

	_, err := r.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolverCaches(t *testing.T) {
	p := &countingProvider{Provider: Static{
		"a": {Name: "A"},
		"b": {Name: "B"},
		"c": {Name: "C"},
	}}
	r := NewResolver(p, WithCacheSize(2))
	ctx := context.Background()

	for range 3 {
		_, err := r.Resolve(ctx, "a")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, p.calls)

	_, _ = r.Resolve(ctx, "b")
	_, _ = r.Resolve(ctx, "c") // evicts a
	_, _ = r.Resolve(ctx, "a")
	assert.Equal(t, 4, p.calls)
}

func TestResolverEvictsLeastRecentlyUsed(t *testing.T) {
	p := &countingProvider{Provider: Static{"a": {Name: "A"}, "b": {Name: "B"}, "c": {Name: "C"}}}
	r := NewResolver(p, WithCacheSize(2))
	ctx := context.Background()

	for _, id := range []models.RecordingID{"a", "b", "a", "c"} { // c evicts b
		_, err := r.Resolve(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, p.calls)

	_, _ = r.Resolve(ctx, "a")
	assert.Equal(t, 3, p.calls, "a was used recently and stays cached")
	_, _ = r.Resolve(ctx, "b")
	assert.Equal(t, 4, p.calls)
}

func TestResolverCacheDisabled(t *testing.T) {
	p := &countingProvider{Provider: Static{"a": {Name: "A"}}}
	r := NewResolver(p, WithCacheSize(0))

	for range 2 {
		_, err := r.Resolve(context.Background(), "a")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.calls)
}

func TestResolverDoesNotCacheFailures(t *testing.T) {
	fail := true
	p := providerFunc(func(context.Context, models.RecordingID) (models.SongMetadata, error) {
		if fail {
			return models.SongMetadata{}, errors.New("timeout")
		}
		return models.SongMetadata{Name: "ok"}, nil
	})
	r := NewResolver(p)

	_, err := r.Resolve(context.Background(), "x")
	require.Error(t, err)

	fail = false
	meta, err := r.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", meta.Name)
}

type providerFunc func(context.Context, models.RecordingID) (models.SongMetadata, error)

func (f providerFunc) Resolve(ctx context.Context, id models.RecordingID) (models.SongMetadata, error) {
	return f(ctx, id)
}

func TestLocalCatalog(t *testing.T) {
	idx, err := storage.OpenIndex(filepath.Join(t.TempDir(), "index.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	ctx := context.Background()
	want := models.SongMetadata{Name: "Blue in Green", Artist: "Miles Davis", Album: "Kind of Blue", Genre: "Jazz"}
	id, err := idx.RegisterTrack(ctx, want, 0)
	require.NoError(t, err)

	local := NewLocal(idx)
	got, err := local.Resolve(ctx, models.RecordingID(id))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = local.Resolve(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newMusicBrainz(rt roundTripFunc) *MusicBrainz {
	client := webapi.New(0, webapi.WithHTTPClient(&http.Client{Transport: rt}))
	return NewMusicBrainz("", WithMusicBrainzClient(client), WithMusicBrainzURL("http://mb.test/ws/2/"))
}

func body(status int, s string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(s))}
}

func TestMusicBrainzResolve(t *testing.T) {
	var gotURL string
	mb := newMusicBrainz(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return body(http.StatusOK, `{
			"id": "mbid-1",
			"title": "Under Pressure",
			"artist-credit": [
				{"name": "Queen", "joinphrase": " & ", "artist": {"id": "q", "name": "Queen"}},
				{"name": "", "joinphrase": "", "artist": {"id": "d", "name": "David Bowie"}}
			],
			"releases": [{"id": "rel-1", "title": "Hot Space"}, {"id": "rel-2", "title": "Greatest Hits II"}],
			"genres": [{"name": "pop rock", "count": 1}, {"name": "rock", "count": 4}],
			"tags": [{"name": "classic", "count": 9}]
		}`), nil
	})

	meta, err := mb.Resolve(context.Background(), "mbid-1")
	require.NoError(t, err)
	assert.Equal(t, models.SongMetadata{
		Name:   "Under Pressure",
		Artist: "Queen & David Bowie",
		Album:  "Hot Space",
		Genre:  "rock",
	}, meta)
	assert.True(t, strings.HasPrefix(gotURL, "http://mb.test/ws/2/recording/mbid-1?"), gotURL)
	assert.Contains(t, gotURL, "fmt=json")
}

func TestMusicBrainzMissingFields(t *testing.T) {
	mb := newMusicBrainz(func(*http.Request) (*http.Response, error) {
		return body(http.StatusOK, `{"id": "x", "title": "Loose Track", "tags": [{"name": "ambient", "count": 2}]}`), nil
	})

	meta, err := mb.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, models.SongMetadata{Name: "Loose Track", Genre: "ambient"}, meta)
}

func TestMusicBrainzNotFound(t *testing.T) {
	mb := newMusicBrainz(func(*http.Request) (*http.Response, error) {
		return body(http.StatusNotFound, `{"error": "Not Found"}`), nil
	})

	_, err := mb.Resolve(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTopName(t *testing.T) {
	tests := []struct {
		name  string
		items []nameCount
		want  string
	}{
		{"empty", nil, ""},
		{"single", []nameCount{{Name: "jazz"}}, "jazz"},
		{"highest count", []nameCount{{"a", 1}, {"b", 3}, {"c", 2}}, "b"},
		{"first on tie", []nameCount{{"a", 2}, {"b", 2}}, "a"},
		{"skips blank", []nameCount{{"", 5}, {"b", 1}}, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, topName(tt.items))
		})
	}
}
