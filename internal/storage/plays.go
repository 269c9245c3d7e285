package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

var ErrInvalidSortKey = errors.New("invalid sort key")

// Play is a row of the play log.
type Play struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index:idx_play_time"`
	Name      string    `gorm:"type:varchar(255);index:idx_play_song,priority:1"`
	Artist    string    `gorm:"type:varchar(255);index:idx_play_song,priority:2;index:idx_play_artist"`
	Album     string    `gorm:"type:varchar(255);index:idx_play_album"`
	Genre     string    `gorm:"type:varchar(255);index:idx_play_genre"`
}

func (Play) TableName() string { return "songs" }

func (p Play) event() models.PlayEvent {
	return models.PlayEvent{
		Timestamp: p.Timestamp,
		SongMetadata: models.SongMetadata{
			Name:   p.Name,
			Artist: p.Artist,
			Album:  p.Album,
			Genre:  p.Genre,
		},
	}
}

// QueryResult holds the outcome of a play log query. Events is filled for plain
// sort keys, Counts for play-count keys.
type QueryResult struct {
	Key    models.SortKey
	Events []models.PlayEvent
	Counts []models.PlayCount
}

// PlayLog is the append-only record of play events.
// The table is created on first use; appends are serialized.
type PlayLog struct {
	db    *gorm.DB
	sqlDB *sql.DB

	mu      sync.Mutex
	ensured bool
	closed  bool
}

// OpenPlayLog opens the play log database at dbPath. No schema is touched until
// the first Append or Query.
func OpenPlayLog(dbPath string) (*PlayLog, error) {
	db, sqlDB, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &PlayLog{db: db, sqlDB: sqlDB}, nil
}

func (p *PlayLog) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.sqlDB.Close()
}

// ensureSchema creates the play table if absent. It is safe to call repeatedly:
// AutoMigrate never drops or rewrites existing rows. Callers hold p.mu.
func (p *PlayLog) ensureSchema(ctx context.Context) error {
	if p.closed {
		return ErrStoreClosed
	}
	if p.ensured {
		return nil
	}
	if err := p.db.WithContext(ctx).AutoMigrate(&Play{}); err != nil {
		return fmt.Errorf("ensuring play table: %w", err)
	}
	p.ensured = true
	return nil
}

// Append durably stores ev as a single row insert.
func (p *PlayLog) Append(ctx context.Context, ev models.PlayEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSchema(ctx); err != nil {
		return err
	}

	row := Play{
		Timestamp: ev.Timestamp.UTC(),
		Name:      ev.Name,
		Artist:    ev.Artist,
		Album:     ev.Album,
		Genre:     ev.Genre,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting play: %w", err)
	}
	return nil
}

// Query returns the play log ordered by key. Plain keys list every event
// ascending by the field (ties by time of play); play-count keys group by the field
// and order by descending count, ties by the field ascending.
func (p *PlayLog) Query(ctx context.Context, key models.SortKey) (*QueryResult, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortKey, key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}

	column := clause.Column{Name: key.Field()}
	result := &QueryResult{Key: key}

	if key.Counted() {
		var counts []models.PlayCount
		err := p.db.WithContext(ctx).
			Model(&Play{}).
			Select("? AS value, COUNT(*) AS count", column).
			Group(key.Field()).
			Order("count DESC").
			Order(clause.OrderByColumn{Column: clause.Column{Name: "value"}}).
			Scan(&counts).Error
		if err != nil {
			return nil, fmt.Errorf("querying play counts by %s: %w", key.Field(), err)
		}
		result.Counts = counts
		return result, nil
	}

	var rows []Play
	err := p.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: column}).
		Order("timestamp").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying plays by %s: %w", key.Field(), err)
	}
	result.Events = make([]models.PlayEvent, len(rows))
	for i, r := range rows {
		result.Events[i] = r.event()
	}
	return result, nil
}

// Recent returns up to limit events, most recent first.
func (p *PlayLog) Recent(ctx context.Context, limit int) ([]models.PlayEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var rows []Play
	if err := p.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying recent plays: %w", err)
	}
	out := make([]models.PlayEvent, len(rows))
	for i, r := range rows {
		out[i] = r.event()
	}
	return out, nil
}

// Len returns the number of recorded plays.
func (p *PlayLog) Len(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var n int64
	if err := p.db.WithContext(ctx).Model(&Play{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting plays: %w", err)
	}
	return int(n), nil
}
