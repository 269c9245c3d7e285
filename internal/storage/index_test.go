package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

func setupIndex(t *testing.T) (*Index, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "index.sqlite3")
	idx, err := OpenIndex(dbPath)
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx, dbPath
}

func TestOpenIndexCreatesFile(t *testing.T) {
	_, dbPath := setupIndex(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestRegisterTrack(t *testing.T) {
	idx, _ := setupIndex(t)
	ctx := context.Background()

	meta := models.SongMetadata{Name: "So What", Artist: "Miles Davis", Album: "Kind of Blue", Genre: "Jazz"}
	id, err := idx.RegisterTrack(ctx, meta, 545000)
	if err != nil {
		t.Fatalf("RegisterTrack failed: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("Expected a UUID track id, got %q", id)
	}

	track, err := idx.GetTrack(ctx, id)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if track.Metadata() != meta {
		t.Errorf("Expected %+v, got %+v", meta, track.Metadata())
	}
	if track.DurationMs != 545000 {
		t.Errorf("Expected duration 545000, got %d", track.DurationMs)
	}
}

func TestRegisterTrackIdempotent(t *testing.T) {
	idx, _ := setupIndex(t)
	ctx := context.Background()

	first, err := idx.RegisterTrack(ctx, models.SongMetadata{Name: "Track", Artist: "Band"}, 1000)
	if err != nil {
		t.Fatalf("First RegisterTrack failed: %v", err)
	}
	second, err := idx.RegisterTrack(ctx, models.SongMetadata{Name: "Track", Artist: "Band", Album: "LP", Genre: "Rock"}, 1000)
	if err != nil {
		t.Fatalf("Second RegisterTrack failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected same id, got %s and %s", first, second)
	}

	track, err := idx.GetTrack(ctx, first)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if track.Album != "LP" || track.Genre != "Rock" {
		t.Errorf("Expected album and genre to be filled in, got %+v", track)
	}

	tracks, err := idx.ListTracks(ctx)
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	if len(tracks) != 1 {
		t.Errorf("Expected 1 track, got %d", len(tracks))
	}
}

func TestGetTrackNotFound(t *testing.T) {
	idx, _ := setupIndex(t)

	_, err := idx.GetTrack(context.Background(), "missing")
	if !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound, got %v", err)
	}
}

func TestStoreAndLookupFingerprints(t *testing.T) {
	idx, _ := setupIndex(t)
	ctx := context.Background()

	id, err := idx.RegisterTrack(ctx, models.SongMetadata{Name: "T", Artist: "A"}, 0)
	if err != nil {
		t.Fatalf("RegisterTrack failed: %v", err)
	}

	fp := map[uint32][]models.Couple{
		0xAAAA: {{TrackID: id, AnchorTimeMs: 100}, {TrackID: id, AnchorTimeMs: 900}},
		0xBBBB: {{TrackID: id, AnchorTimeMs: 250}},
	}
	if err := idx.StoreFingerprints(ctx, fp); err != nil {
		t.Fatalf("StoreFingerprints failed: %v", err)
	}

	got, err := idx.GetCouplesByHashes(ctx, []uint32{0xAAAA, 0xBBBB, 0xCCCC})
	if err != nil {
		t.Fatalf("GetCouplesByHashes failed: %v", err)
	}
	if len(got[0xAAAA]) != 2 {
		t.Errorf("Expected 2 couples for 0xAAAA, got %d", len(got[0xAAAA]))
	}
	if len(got[0xBBBB]) != 1 || got[0xBBBB][0].AnchorTimeMs != 250 {
		t.Errorf("Unexpected couples for 0xBBBB: %+v", got[0xBBBB])
	}
	if _, ok := got[0xCCCC]; ok {
		t.Error("Expected no couples for unknown hash")
	}

	empty, err := idx.GetCouplesByHashes(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty map for no hashes, got %v, %v", empty, err)
	}
}

func TestStoreFingerprintsLargeBatch(t *testing.T) {
	idx, _ := setupIndex(t)
	ctx := context.Background()

	id, err := idx.RegisterTrack(ctx, models.SongMetadata{Name: "Long", Artist: "A"}, 0)
	if err != nil {
		t.Fatalf("RegisterTrack failed: %v", err)
	}

	fp := make(map[uint32][]models.Couple)
	hashes := make([]uint32, 0, 1500)
	for i := range uint32(1500) {
		fp[i] = []models.Couple{{TrackID: id, AnchorTimeMs: i * 10}}
		hashes = append(hashes, i)
	}
	if err := idx.StoreFingerprints(ctx, fp); err != nil {
		t.Fatalf("StoreFingerprints failed: %v", err)
	}

	n, err := idx.FingerprintCount(ctx, id)
	if err != nil {
		t.Fatalf("FingerprintCount failed: %v", err)
	}
	if n != 1500 {
		t.Errorf("Expected 1500 fingerprints, got %d", n)
	}

	got, err := idx.GetCouplesByHashes(ctx, hashes)
	if err != nil {
		t.Fatalf("GetCouplesByHashes failed: %v", err)
	}
	if len(got) != 1500 {
		t.Errorf("Expected 1500 hash buckets, got %d", len(got))
	}
}

func TestDeleteTrackWithFingerprints(t *testing.T) {
	idx, _ := setupIndex(t)
	ctx := context.Background()

	id, err := idx.RegisterTrack(ctx, models.SongMetadata{Name: "Gone", Artist: "A"}, 0)
	if err != nil {
		t.Fatalf("RegisterTrack failed: %v", err)
	}
	fp := map[uint32][]models.Couple{1: {{TrackID: id, AnchorTimeMs: 1}}}
	if err := idx.StoreFingerprints(ctx, fp); err != nil {
		t.Fatalf("StoreFingerprints failed: %v", err)
	}

	if err := idx.DeleteTrack(ctx, id); err != nil {
		t.Fatalf("DeleteTrack failed: %v", err)
	}
	if _, err := idx.GetTrack(ctx, id); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected track to be gone, got %v", err)
	}
	n, err := idx.FingerprintCount(ctx, id)
	if err != nil {
		t.Fatalf("FingerprintCount failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected fingerprints to be deleted, %d remain", n)
	}

	if err := idx.DeleteTrack(ctx, id); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound on second delete, got %v", err)
	}
}
