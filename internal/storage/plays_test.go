package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

func setupPlayLog(t *testing.T) (*PlayLog, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "plays.sqlite3")
	log, err := OpenPlayLog(dbPath)
	if err != nil {
		t.Fatalf("Failed to open play log: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log, dbPath
}

func play(ts time.Time, name, artist, album, genre string) models.PlayEvent {
	return models.PlayEvent{
		Timestamp:    ts,
		SongMetadata: models.SongMetadata{Name: name, Artist: artist, Album: album, Genre: genre},
	}
}

func appendAll(t *testing.T, log *PlayLog, events ...models.PlayEvent) {
	t.Helper()
	for _, ev := range events {
		if err := log.Append(context.Background(), ev); err != nil {
			t.Fatalf("Append(%s) failed: %v", ev, err)
		}
	}
}

func TestPlayLogSchemaIsLazy(t *testing.T) {
	log, _ := setupPlayLog(t)

	if log.db.Migrator().HasTable(&Play{}) {
		t.Fatal("Expected no play table before first use")
	}

	res, err := log.Query(context.Background(), models.SortBySong)
	if err != nil {
		t.Fatalf("Query on empty log failed: %v", err)
	}
	if len(res.Events) != 0 {
		t.Errorf("Expected empty result, got %d events", len(res.Events))
	}
	if !log.db.Migrator().HasTable(&Play{}) {
		t.Error("Expected play table after first query")
	}
}

func TestPlayLogEnsureKeepsRowsAcrossOpens(t *testing.T) {
	log, dbPath := setupPlayLog(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	appendAll(t, log,
		play(now, "Song1", "Artist1", "Album1", "Rock"),
		play(now.Add(time.Minute), "Song2", "Artist2", "Album2", "Jazz"),
	)
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenPlayLog(dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	appendAll(t, reopened, play(now.Add(2*time.Minute), "Song3", "Artist3", "Album3", "Pop"))

	n, err := reopened.Len(context.Background())
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 plays after reopen, got %d", n)
	}
}

func TestPlayLogAppendRoundTrip(t *testing.T) {
	log, _ := setupPlayLog(t)
	ts := time.Date(2024, 5, 1, 12, 30, 15, 0, time.UTC)
	appendAll(t, log, play(ts, "Blue in Green", "Miles Davis", "Kind of Blue", "Jazz"))

	res, err := log.Query(context.Background(), models.SortBySong)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(res.Events))
	}
	got := res.Events[0]
	if got.Name != "Blue in Green" || got.Artist != "Miles Davis" || got.Album != "Kind of Blue" || got.Genre != "Jazz" {
		t.Errorf("Unexpected metadata: %+v", got.SongMetadata)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Expected timestamp %v, got %v", ts, got.Timestamp)
	}
}

func TestPlayLogQueryPlainOrder(t *testing.T) {
	log, _ := setupPlayLog(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	appendAll(t, log,
		play(base, "Charlie", "Zed", "Beta", "Rock"),
		play(base.Add(time.Minute), "Alpha", "Yan", "Gamma", "Jazz"),
		play(base.Add(2*time.Minute), "Bravo", "Xia", "Alpha", "Blues"),
		play(base.Add(3*time.Minute), "Alpha", "Yan", "Gamma", "Jazz"),
	)

	tests := []struct {
		key  models.SortKey
		want []string
		get  func(models.PlayEvent) string
	}{
		{models.SortBySong, []string{"Alpha", "Alpha", "Bravo", "Charlie"}, func(e models.PlayEvent) string { return e.Name }},
		{models.SortByArtist, []string{"Xia", "Yan", "Yan", "Zed"}, func(e models.PlayEvent) string { return e.Artist }},
		{models.SortByAlbum, []string{"Alpha", "Beta", "Gamma", "Gamma"}, func(e models.PlayEvent) string { return e.Album }},
		{models.SortByGenre, []string{"Blues", "Jazz", "Jazz", "Rock"}, func(e models.PlayEvent) string { return e.Genre }},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			res, err := log.Query(context.Background(), tt.key)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(res.Counts) != 0 {
				t.Errorf("Expected no counts for plain key, got %d", len(res.Counts))
			}
			if len(res.Events) != len(tt.want) {
				t.Fatalf("Expected %d events, got %d", len(tt.want), len(res.Events))
			}
			for i, ev := range res.Events {
				if tt.get(ev) != tt.want[i] {
					t.Errorf("Row %d: expected %q, got %q", i, tt.want[i], tt.get(ev))
				}
			}
		})
	}
}

func TestPlayLogQueryTiesByTime(t *testing.T) {
	log, _ := setupPlayLog(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	appendAll(t, log,
		play(base.Add(2*time.Minute), "Same", "Late", "", ""),
		play(base, "Same", "Early", "", ""),
	)

	res, err := log.Query(context.Background(), models.SortBySong)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Events[0].Artist != "Early" || res.Events[1].Artist != "Late" {
		t.Errorf("Expected ties ordered by time, got %s then %s", res.Events[0].Artist, res.Events[1].Artist)
	}
}

func TestPlayLogQueryCounts(t *testing.T) {
	log, _ := setupPlayLog(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	appendAll(t, log,
		play(base, "A", "X", "One", "Rock"),
		play(base.Add(time.Minute), "A", "X", "One", "Rock"),
		play(base.Add(2*time.Minute), "B", "Y", "Two", "Jazz"),
	)

	res, err := log.Query(context.Background(), models.SortBySongPlays)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []models.PlayCount{{Value: "A", Count: 2}, {Value: "B", Count: 1}}
	if len(res.Counts) != len(want) {
		t.Fatalf("Expected %d counts, got %d: %+v", len(want), len(res.Counts), res.Counts)
	}
	for i := range want {
		if res.Counts[i] != want[i] {
			t.Errorf("Row %d: expected %+v, got %+v", i, want[i], res.Counts[i])
		}
	}
	if len(res.Events) != 0 {
		t.Errorf("Expected no events for counted key, got %d", len(res.Events))
	}
}

func TestPlayLogQueryCountTiesByValue(t *testing.T) {
	log, _ := setupPlayLog(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	appendAll(t, log,
		play(base, "S1", "Zappa", "", "Rock"),
		play(base.Add(time.Minute), "S2", "Abba", "", "Pop"),
		play(base.Add(2*time.Minute), "S3", "Miles", "", "Jazz"),
		play(base.Add(3*time.Minute), "S4", "Miles", "", "Jazz"),
	)

	res, err := log.Query(context.Background(), models.SortByArtistPlays)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []models.PlayCount{{Value: "Miles", Count: 2}, {Value: "Abba", Count: 1}, {Value: "Zappa", Count: 1}}
	if len(res.Counts) != len(want) {
		t.Fatalf("Expected %d counts, got %d", len(want), len(res.Counts))
	}
	for i := range want {
		if res.Counts[i] != want[i] {
			t.Errorf("Row %d: expected %+v, got %+v", i, want[i], res.Counts[i])
		}
	}
}

func TestPlayLogQueryInvalidKey(t *testing.T) {
	log, _ := setupPlayLog(t)

	_, err := log.Query(context.Background(), models.SortKey("tempo"))
	if !errors.Is(err, ErrInvalidSortKey) {
		t.Fatalf("Expected ErrInvalidSortKey, got %v", err)
	}
	if log.db.Migrator().HasTable(&Play{}) {
		t.Error("Invalid key must not touch the schema")
	}
}

func TestPlayLogRecent(t *testing.T) {
	log, _ := setupPlayLog(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	appendAll(t, log,
		play(base, "First", "A", "", ""),
		play(base.Add(time.Minute), "Second", "A", "", ""),
		play(base.Add(2*time.Minute), "Third", "A", "", ""),
	)

	recent, err := log.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Name != "Third" || recent[1].Name != "Second" {
		t.Errorf("Unexpected recent plays: %+v", recent)
	}
}

func TestPlayLogClosed(t *testing.T) {
	log, _ := setupPlayLog(t)
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}

	err := log.Append(context.Background(), play(time.Now(), "x", "y", "", ""))
	if !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Expected ErrStoreClosed, got %v", err)
	}
}
