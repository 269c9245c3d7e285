package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

var ErrTrackNotFound = errors.New("track not found")

const fingerprintBatch = 500

// Track is a recording known to the local fingerprint index.
type Track struct {
	ID         string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title      string `gorm:"uniqueIndex:idx_track_unique,priority:1" json:"title"`
	Artist     string `gorm:"uniqueIndex:idx_track_unique,priority:2" json:"artist"`
	Album      string `json:"album"`
	Genre      string `json:"genre"`
	DurationMs int    `json:"duration_ms"`
	CreatedAt  time.Time
}

func (t Track) Metadata() models.SongMetadata {
	return models.SongMetadata{Name: t.Title, Artist: t.Artist, Album: t.Album, Genre: t.Genre}
}

type Fingerprint struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash" json:"hash"`
	TrackID      string `gorm:"type:varchar(36);index:idx_track" json:"track_id"`
	AnchorTimeMs uint32 `json:"anchor_time_ms"`
}

// Index stores reference fingerprints for locally indexed recordings.
type Index struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

func OpenIndex(dbPath string) (*Index, error) {
	db, sqlDB, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Track{}, &Fingerprint{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Index{db: db, sqlDB: sqlDB}, nil
}

func (x *Index) Close() error {
	if x == nil || x.sqlDB == nil {
		return nil
	}
	return x.sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// RegisterTrack returns the id of the track with meta's title and artist,
// creating it if needed. Empty album and genre on an existing track are filled in.
func (x *Index) RegisterTrack(ctx context.Context, meta models.SongMetadata, durationMs int) (string, error) {
	db := x.db.WithContext(ctx)

	var track Track
	err := db.Where("title = ? AND artist = ?", meta.Name, meta.Artist).First(&track).Error
	if err == nil {
		updates := map[string]any{}
		if track.Album == "" && meta.Album != "" {
			updates["album"] = meta.Album
		}
		if track.Genre == "" && meta.Genre != "" {
			updates["genre"] = meta.Genre
		}
		if len(updates) > 0 {
			if err := db.Model(&track).Updates(updates).Error; err != nil {
				return "", fmt.Errorf("updating track: %w", err)
			}
		}
		return track.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing track: %w", err)
	}

	track = Track{
		ID:         uuid.NewString(),
		Title:      meta.Name,
		Artist:     meta.Artist,
		Album:      meta.Album,
		Genre:      meta.Genre,
		DurationMs: durationMs,
	}
	if err := db.Create(&track).Error; err != nil {
		if isUniqueViolation(err) {
			if fetchErr := db.Where("title = ? AND artist = ?", meta.Name, meta.Artist).First(&track).Error; fetchErr != nil {
				return "", fmt.Errorf("fetching track after constraint violation: %w", fetchErr)
			}
			return track.ID, nil
		}
		return "", fmt.Errorf("creating track: %w", err)
	}
	return track.ID, nil
}

func (x *Index) GetTrack(ctx context.Context, id string) (Track, error) {
	var track Track
	err := x.db.WithContext(ctx).Where("id = ?", id).First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	if err != nil {
		return Track{}, fmt.Errorf("querying track: %w", err)
	}
	return track, nil
}

func (x *Index) ListTracks(ctx context.Context) ([]Track, error) {
	var tracks []Track
	if err := x.db.WithContext(ctx).Order("artist").Order("title").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	return tracks, nil
}

// DeleteTrack removes a track and all of its fingerprints.
func (x *Index) DeleteTrack(ctx context.Context, id string) error {
	return x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&Fingerprint{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Track{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
		}
		return nil
	})
}

// StoreFingerprints inserts every couple keyed by its hash address.
func (x *Index) StoreFingerprints(ctx context.Context, fp map[uint32][]models.Couple) error {
	db := x.db.WithContext(ctx)

	entries := make([]Fingerprint, 0, 2*fingerprintBatch)
	for hash, couples := range fp {
		for _, c := range couples {
			entries = append(entries, Fingerprint{
				Hash:         hash,
				TrackID:      c.TrackID,
				AnchorTimeMs: c.AnchorTimeMs,
			})
			if len(entries) >= 2*fingerprintBatch {
				if err := db.CreateInBatches(entries, fingerprintBatch).Error; err != nil {
					return fmt.Errorf("batch insert fingerprints: %w", err)
				}
				entries = entries[:0]
			}
		}
	}
	if len(entries) > 0 {
		if err := db.CreateInBatches(entries, fingerprintBatch).Error; err != nil {
			return fmt.Errorf("batch insert last fingerprints: %w", err)
		}
	}
	return nil
}

// GetCouplesByHashes fetches every stored couple whose hash is in hashes.
func (x *Index) GetCouplesByHashes(ctx context.Context, hashes []uint32) (map[uint32][]models.Couple, error) {
	result := make(map[uint32][]models.Couple)
	if len(hashes) == 0 {
		return result, nil
	}

	db := x.db.WithContext(ctx)
	// SQLite caps bound parameters per statement.
	const chunk = 900
	for start := 0; start < len(hashes); start += chunk {
		end := min(start+chunk, len(hashes))

		var rows []Fingerprint
		if err := db.Where("hash IN ?", hashes[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("batch querying fingerprints: %w", err)
		}
		for _, r := range rows {
			result[r.Hash] = append(result[r.Hash], models.Couple{
				TrackID:      r.TrackID,
				AnchorTimeMs: r.AnchorTimeMs,
			})
		}
	}
	return result, nil
}

func (x *Index) FingerprintCount(ctx context.Context, trackID string) (int, error) {
	var n int64
	q := x.db.WithContext(ctx).Model(&Fingerprint{})
	if trackID != "" {
		q = q.Where("track_id = ?", trackID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return int(n), nil
}
