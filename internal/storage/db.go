package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/VinylKeeper/pkg/utils"
)

const (
	DefaultDBFile    = "vinylkeeper.sqlite3"
	DefaultIndexFile = "vinylkeeper-index.sqlite3"
)

var ErrStoreClosed = errors.New("store is closed")

// openDB opens (creating if needed) the sqlite file at dbPath through gorm.
// SQLite allows one writer at a time; a single open connection keeps
// writes serialized without SQLITE_BUSY retries.
func openDB(dbPath string) (*gorm.DB, *sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, sqlDB, nil
}
