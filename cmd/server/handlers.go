package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/logger"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
	"github.com/himanishpuri/VinylKeeper/pkg/utils"
	"github.com/himanishpuri/VinylKeeper/pkg/vinylkeeper"
)

// Backend is the part of vinylkeeper.Service the server exposes.
type Backend interface {
	StartSession(ctx context.Context) (session.Summary, error)
	DisplayData(ctx context.Context, key models.SortKey) (*storage.QueryResult, error)
	RecentPlays(ctx context.Context, limit int) ([]models.PlayEvent, error)
	PlayCount(ctx context.Context) (int, error)
	AddTrack(ctx context.Context, audioPath string, meta models.SongMetadata) (string, error)
	MatchFile(ctx context.Context, audioPath string) ([]vinylkeeper.MatchResult, error)
	GetTrack(ctx context.Context, id string) (storage.Track, error)
	ListTracks(ctx context.Context) ([]storage.Track, error)
	DeleteTrack(ctx context.Context, id string) error
}

var _ Backend = (*vinylkeeper.Service)(nil)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	backend Backend
	config  *ServerConfig
	log     vinylkeeper.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc // non-nil while a session runs
	done      chan struct{}
	startedAt time.Time
	last      *session.Summary
	lastErr   error
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	IndexPath      string
	TempDir        string
	AllowedOrigins []string
	LogRequests    bool
}

// NewServer creates a new server instance
func NewServer(backend Backend, config *ServerConfig) *Server {
	return &Server{
		backend: backend,
		config:  config,
		log:     logger.GetLogger().WithPrefix("[server]"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "VinylKeeper API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":       "GET /health",
			"metrics":      "GET /api/health/metrics",
			"plays":        "GET /api/plays?sort=<key>",
			"recentPlays":  "GET /api/plays/recent?limit=<n>",
			"session":      "GET /api/session",
			"startSession": "POST /api/session",
			"stopSession":  "DELETE /api/session",
			"tracks":       "GET /api/tracks",
			"addTrack":     "POST /api/tracks",
			"getTrack":     "GET /api/tracks/{id}",
			"deleteTrack":  "DELETE /api/tracks/{id}",
			"matchFile":    "POST /api/match",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.backend.ListTracks(r.Context())
	if err != nil {
		s.log.Errorf("Failed to get track count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}
	plays, err := s.backend.PlayCount(r.Context())
	if err != nil {
		s.log.Errorf("Failed to get play count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:         "healthy",
		DatabasePath:   s.config.DBPath,
		IndexPath:      s.config.IndexPath,
		TrackCount:     len(tracks),
		PlayCount:      plays,
		SessionRunning: s.status().Running,
	})
}

// handlePlays handles GET /api/plays
func (s *Server) handlePlays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	key := models.SortBySong
	if raw := r.URL.Query().Get("sort"); raw != "" {
		k, err := models.ParseSortKey(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		key = k
	}

	res, err := s.backend.DisplayData(r.Context(), key)
	if err != nil {
		s.log.Errorf("Failed to query plays: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve plays")
		return
	}
	s.respondJSON(w, http.StatusOK, newPlaysResponse(res))
}

// handleRecentPlays handles GET /api/plays/recent
func (s *Server) handleRecentPlays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxRecentLimit)
	}

	plays, err := s.backend.RecentPlays(r.Context(), limit)
	if err != nil {
		s.log.Errorf("Failed to query recent plays: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve plays")
		return
	}
	dtos := newPlayDTOs(plays)
	s.respondJSON(w, http.StatusOK, RecentPlaysResponse{Plays: dtos, Count: len(dtos)})
}

// handleSession routes requests to /api/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.respondJSON(w, http.StatusOK, s.status())
	case http.MethodPost:
		if !s.startSession() {
			s.respondError(w, http.StatusConflict, "A session is already running")
			return
		}
		s.respondJSON(w, http.StatusAccepted, s.status())
	case http.MethodDelete:
		if !s.StopSession(r.Context()) {
			s.respondError(w, http.StatusConflict, "No session is running")
			return
		}
		s.respondJSON(w, http.StatusOK, s.status())
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// startSession runs a listening session in the background. It reports false
// if one is already running.
func (s *Server) startSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done, s.startedAt = cancel, done, time.Now()

	go func() {
		defer close(done)
		sum, err := s.backend.StartSession(ctx)
		if err != nil {
			s.log.Errorf("Session failed: %v", err)
		} else {
			s.log.Infof("Session %s finished: %d plays", sum.ID, len(sum.Plays))
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancel()
		s.cancel, s.done = nil, nil
		s.last, s.lastErr = &sum, err
	}()

	s.log.Infof("Session started")
	return true
}

// StopSession cancels the running session and waits for its last window to be
// recorded, or for ctx to end. It reports false if no session was running.
func (s *Server) StopSession(ctx context.Context) bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return false
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warnf("Session still flushing: %v", ctx.Err())
	}
	return true
}

func (s *Server) status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SessionStatus{Running: s.cancel != nil}
	if st.Running {
		started := s.startedAt
		st.StartedAt = &started
	}
	if s.last != nil && s.last.ID != "" {
		st.Last = newSummaryDTO(*s.last)
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// saveUpload copies the multipart file field "audio" into the temp directory.
// The returned cleanup removes it.
func (s *Server) saveUpload(r *http.Request, prefix string) (string, func(), error) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", nil, fmt.Errorf("audio file is required")
	}
	defer file.Close()

	path := filepath.Join(s.config.TempDir, utils.UniqueName(prefix, header.Filename))
	out, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to process upload: %w", err)
	}
	cleanup := func() { os.Remove(path) }

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to save uploaded file: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to save uploaded file: %w", err)
	}
	return path, cleanup, nil
}

// handleListTracks handles GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.backend.ListTracks(r.Context())
	if err != nil {
		s.log.Errorf("Failed to list tracks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	dtos := make([]TrackDTO, len(tracks))
	for i, t := range tracks {
		dtos[i] = newTrackDTO(t)
	}
	s.respondJSON(w, http.StatusOK, ListTracksResponse{Tracks: dtos, Count: len(dtos)})
}

// handleAddTrack handles POST /api/tracks (multipart file upload)
func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	meta := models.SongMetadata{
		Name:   strings.TrimSpace(r.FormValue("title")),
		Artist: strings.TrimSpace(r.FormValue("artist")),
		Album:  strings.TrimSpace(r.FormValue("album")),
		Genre:  strings.TrimSpace(r.FormValue("genre")),
	}
	if meta.Name == "" || meta.Artist == "" {
		s.respondError(w, http.StatusBadRequest, "title and artist are required")
		return
	}

	path, cleanup, err := s.saveUpload(r, "upload")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	s.log.Infof("Indexing track from upload: %s", meta)
	id, err := s.backend.AddTrack(ctx, path, meta)
	if err != nil {
		s.log.Errorf("Failed to index track: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to index track: %v", err))
		return
	}

	s.respondJSON(w, http.StatusCreated, AddTrackResponse{
		Message: "Track indexed successfully",
		ID:      id,
		Title:   meta.Name,
		Artist:  meta.Artist,
	})
}

// handleGetTrack handles GET /api/tracks/{id}
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request, id string) {
	track, err := s.backend.GetTrack(r.Context(), id)
	if err != nil {
		s.respondTrackError(w, id, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newTrackDTO(track))
}

// handleDeleteTrack handles DELETE /api/tracks/{id}
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.backend.DeleteTrack(r.Context(), id); err != nil {
		s.respondTrackError(w, id, err)
		return
	}

	s.log.Infof("Deleted track %s", id)
	s.respondJSON(w, http.StatusOK, DeleteTrackResponse{
		Message: "Track deleted successfully",
		ID:      id,
	})
}

func (s *Server) respondTrackError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrTrackNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", id))
		return
	}
	s.log.Errorf("Track %s: %v", id, err)
	s.respondError(w, http.StatusInternalServerError, "Failed to access track")
}

// handleMatchFile handles POST /api/match (multipart file upload)
func (s *Server) handleMatchFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	path, cleanup, err := s.saveUpload(r, "query")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	matches, err := s.backend.MatchFile(ctx, path)
	if err != nil {
		s.log.Errorf("Failed to match: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to match: %v", err))
		return
	}

	dtos := make([]MatchResultDTO, len(matches))
	for i, m := range matches {
		dtos[i] = newMatchResultDTO(m)
	}
	s.log.Infof("Match complete: found %d matches", len(dtos))
	s.respondJSON(w, http.StatusOK, MatchResponse{Matches: dtos, Count: len(dtos)})
}

// handleTracks routes requests to /api/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTracks(w, r)
	case http.MethodPost:
		s.handleAddTrack(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTrack routes requests to /api/tracks/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Track ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetTrack(w, r, id)
	case http.MethodDelete:
		s.handleDeleteTrack(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleMatch routes requests to /api/match
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleMatchFile(w, r)
}
