package models

import (
	"fmt"
	"strconv"
)

// SortKey selects the ordering of a play log query.
type SortKey string

const (
	SortBySong        SortKey = "song"
	SortByArtist      SortKey = "artist"
	SortByAlbum       SortKey = "album"
	SortByGenre       SortKey = "genre"
	SortBySongPlays   SortKey = "song_plays"
	SortByArtistPlays SortKey = "artist_plays"
	SortByAlbumPlays  SortKey = "album_plays"
	SortByGenrePlays  SortKey = "genre_plays"
)

// SortKeys lists every key in menu order.
var SortKeys = []SortKey{
	SortBySong, SortByArtist, SortByAlbum, SortByGenre,
	SortBySongPlays, SortByArtistPlays, SortByAlbumPlays, SortByGenrePlays,
}

var sortKeyLabels = map[SortKey]string{
	SortBySong:        "Sort by song name",
	SortByArtist:      "Sort by artist name",
	SortByAlbum:       "Sort by album name",
	SortByGenre:       "Sort by genre",
	SortBySongPlays:   "Sort by song plays",
	SortByArtistPlays: "Sort by artist plays",
	SortByAlbumPlays:  "Sort by album plays",
	SortByGenrePlays:  "Sort by genre plays",
}

// Label returns the menu text for the key.
func (k SortKey) Label() string {
	if l, ok := sortKeyLabels[k]; ok {
		return l
	}
	return string(k)
}

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	_, ok := sortKeyLabels[k]
	return ok
}

// Counted reports whether the key groups rows and orders by play count.
func (k SortKey) Counted() bool {
	switch k {
	case SortBySongPlays, SortByArtistPlays, SortByAlbumPlays, SortByGenrePlays:
		return true
	}
	return false
}

// Field returns the play log column the key sorts or groups on.
func (k SortKey) Field() string {
	switch k {
	case SortBySong, SortBySongPlays:
		return "name"
	case SortByArtist, SortByArtistPlays:
		return "artist"
	case SortByAlbum, SortByAlbumPlays:
		return "album"
	case SortByGenre, SortByGenrePlays:
		return "genre"
	}
	return ""
}

// ParseSortKey accepts a key name or its 1-based menu number.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(s)
	if k.Valid() {
		return k, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(SortKeys) {
		return SortKeys[n-1], nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// PlayCount is one group of a counted query.
type PlayCount struct {
	Value string
	Count int
}
