package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/himanishpuri/VinylKeeper/internal/webapi"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

const (
	musicBrainzURL = "https://musicbrainz.org/ws/2"
	// MusicBrainz requires 1 request per second.
	musicBrainzInterval = time.Second
)

// MusicBrainz resolves MusicBrainz recording ids through the web service.
type MusicBrainz struct {
	client  *webapi.Client
	baseURL string
}

type MusicBrainzOption func(*MusicBrainz)

func WithMusicBrainzClient(c *webapi.Client) MusicBrainzOption {
	return func(m *MusicBrainz) { m.client = c }
}

func WithMusicBrainzURL(base string) MusicBrainzOption {
	return func(m *MusicBrainz) { m.baseURL = strings.TrimRight(base, "/") }
}

// NewMusicBrainz returns a client identifying itself with userAgent; an
// empty userAgent falls back to webapi.DefaultUserAgent.
func NewMusicBrainz(userAgent string, opts ...MusicBrainzOption) *MusicBrainz {
	m := &MusicBrainz{baseURL: musicBrainzURL}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = webapi.New(musicBrainzInterval, webapi.WithUserAgent(userAgent))
	}
	return m
}

type artistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
	JoinPhrase string `json:"joinphrase"`
}

type nameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type recordingResponse struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"releases"`
	Genres []nameCount `json:"genres"`
	Tags   []nameCount `json:"tags"`
}

func (m *MusicBrainz) Resolve(ctx context.Context, id models.RecordingID) (models.SongMetadata, error) {
	params := url.Values{}
	params.Set("fmt", "json")
	params.Set("inc", "artist-credits+releases+genres+tags")

	reqURL := fmt.Sprintf("%s/recording/%s?%s", m.baseURL, url.PathEscape(string(id)), params.Encode())

	var rec recordingResponse
	if err := m.client.GetJSON(ctx, reqURL, &rec); err != nil {
		if webapi.IsNotFound(err) {
			return models.SongMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return models.SongMetadata{}, fmt.Errorf("musicbrainz recording %s: %w", id, err)
	}

	meta := models.SongMetadata{
		Name:   rec.Title,
		Artist: extractArtist(rec.ArtistCredit),
	}
	if len(rec.Releases) > 0 {
		meta.Album = rec.Releases[0].Title
	}
	meta.Genre = topName(rec.Genres)
	if meta.Genre == "" {
		meta.Genre = topName(rec.Tags)
	}
	return meta, nil
}

func extractArtist(credits []artistCredit) string {
	var b strings.Builder
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(c.JoinPhrase)
	}
	return b.String()
}

// topName returns the most-voted entry, the first one on ties.
func topName(items []nameCount) string {
	best := -1
	for i, it := range items {
		if it.Name == "" {
			continue
		}
		if best < 0 || it.Count > items[best].Count {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return items[best].Name
}
