package main

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
	"github.com/himanishpuri/VinylKeeper/pkg/vinylkeeper"
)

const (
	// DefaultRecentLimit is used when GET /api/plays/recent carries no limit.
	DefaultRecentLimit = 20

	// MaxRecentLimit caps the limit query parameter.
	MaxRecentLimit = 500
)

// PlayDTO represents one recorded play
type PlayDTO struct {
	Name      string    `json:"name"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	Genre     string    `json:"genre"`
	Timestamp time.Time `json:"timestamp"`
	PlayedAgo string    `json:"played_ago"`
}

func newPlayDTO(ev models.PlayEvent) PlayDTO {
	return PlayDTO{
		Name:      ev.Name,
		Artist:    ev.Artist,
		Album:     ev.Album,
		Genre:     ev.Genre,
		Timestamp: ev.Timestamp,
		PlayedAgo: humanize.Time(ev.Timestamp),
	}
}

func newPlayDTOs(events []models.PlayEvent) []PlayDTO {
	out := make([]PlayDTO, len(events))
	for i, ev := range events {
		out[i] = newPlayDTO(ev)
	}
	return out
}

// PlayCountDTO is one group of a play-count ordering
type PlayCountDTO struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PlaysResponse is the response for GET /api/plays. Exactly one of Plays and
// Counts is set, depending on whether the sort key counts plays.
type PlaysResponse struct {
	Sort   string         `json:"sort"`
	Label  string         `json:"label"`
	Plays  []PlayDTO      `json:"plays,omitempty"`
	Counts []PlayCountDTO `json:"counts,omitempty"`
	Count  int            `json:"count"`
}

func newPlaysResponse(res *storage.QueryResult) PlaysResponse {
	resp := PlaysResponse{Sort: string(res.Key), Label: res.Key.Label()}
	if res.Key.Counted() {
		resp.Counts = make([]PlayCountDTO, len(res.Counts))
		for i, c := range res.Counts {
			resp.Counts[i] = PlayCountDTO{Value: c.Value, Count: c.Count}
		}
		resp.Count = len(resp.Counts)
		return resp
	}
	resp.Plays = newPlayDTOs(res.Events)
	resp.Count = len(resp.Plays)
	return resp
}

// RecentPlaysResponse is the response for GET /api/plays/recent
type RecentPlaysResponse struct {
	Plays []PlayDTO `json:"plays"`
	Count int       `json:"count"`
}

// SummaryDTO describes a finished listening session
type SummaryDTO struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	Windows    int       `json:"windows"`
	Matched    int       `json:"matched"`
	Skipped    int       `json:"skipped"`
	DurationMs int64     `json:"duration_ms"`
	Plays      []PlayDTO `json:"plays"`
}

func newSummaryDTO(sum session.Summary) *SummaryDTO {
	return &SummaryDTO{
		ID:         sum.ID,
		StartedAt:  sum.StartedAt,
		Windows:    sum.Windows,
		Matched:    sum.Matched,
		Skipped:    sum.Skipped(),
		DurationMs: sum.Duration.Milliseconds(),
		Plays:      newPlayDTOs(sum.Plays),
	}
}

// SessionStatus is the response for every /api/session method
type SessionStatus struct {
	Running   bool        `json:"running"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	Last      *SummaryDTO `json:"last,omitempty"`
	LastError string      `json:"last_error,omitempty"`
}

// TrackDTO represents an indexed track in API responses
type TrackDTO struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	Genre      string    `json:"genre,omitempty"`
	DurationMs int       `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func newTrackDTO(t storage.Track) TrackDTO {
	return TrackDTO{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		Genre:      t.Genre,
		DurationMs: t.DurationMs,
		CreatedAt:  t.CreatedAt,
	}
}

// ListTracksResponse is the response for GET /api/tracks
type ListTracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

// AddTrackResponse is the response for successful indexing
type AddTrackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
}

// DeleteTrackResponse is the response for DELETE /api/tracks/{id}
type DeleteTrackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MatchResultDTO represents a single match result
type MatchResultDTO struct {
	TrackID    string  `json:"track_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album,omitempty"`
	Genre      string  `json:"genre,omitempty"`
	Score      int     `json:"score"`
	OffsetMs   int32   `json:"offset_ms"`
	Confidence float64 `json:"confidence"`
}

func newMatchResultDTO(m vinylkeeper.MatchResult) MatchResultDTO {
	return MatchResultDTO{
		TrackID:    m.TrackID,
		Title:      m.Name,
		Artist:     m.Artist,
		Album:      m.Album,
		Genre:      m.Genre,
		Score:      m.Score,
		OffsetMs:   m.OffsetMs,
		Confidence: m.Confidence,
	}
}

// MatchResponse is the response for POST /api/match
type MatchResponse struct {
	Matches []MatchResultDTO `json:"matches"`
	Count   int              `json:"count"`
}

// MetricsResponse provides server health and database metrics
type MetricsResponse struct {
	Status         string `json:"status"`
	DatabasePath   string `json:"database_path"`
	IndexPath      string `json:"index_path"`
	TrackCount     int    `json:"track_count"`
	PlayCount      int    `json:"play_count"`
	SessionRunning bool   `json:"session_running"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
