// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abelzeko/radar-loop/internal/entities"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// PreferenceRepository defines the key-value persistence surface for viewer preferences
type PreferenceRepository interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Close() error
}

// SQLitePreferenceRepository implements PreferenceRepository using SQLite
type SQLitePreferenceRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLitePreferenceRepository creates and initializes a new SQLite repository
func NewSQLitePreferenceRepository(dbPath string) (*SQLitePreferenceRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "radar.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Printf("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLitePreferenceRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection
func (r *SQLitePreferenceRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Get returns the stored value for key; ok is false when nothing is stored
func (r *SQLitePreferenceRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value
func (r *SQLitePreferenceRepository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO preferences(key, value, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		value=excluded.value,
		updated_at=excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

// LoadPreferences reads every viewer preference, using defaults for missing keys
func LoadPreferences(repo PreferenceRepository) (entities.Preferences, error) {
	prefs := entities.DefaultPreferences()

	if v, ok, err := repo.Get(entities.PrefRegion); err != nil {
		return prefs, err
	} else if ok && v != "" {
		prefs.Region = v
	}

	if v, ok, err := repo.Get(entities.PrefCenter); err != nil {
		return prefs, err
	} else if ok {
		prefs.Center = entities.ParseFlag(v)
	}

	if v, ok, err := repo.Get(entities.PrefWindVector); err != nil {
		return prefs, err
	} else if ok {
		prefs.WindVector = entities.ParseFlag(v)
	}

	if v, ok, err := repo.Get(entities.PrefSpeed); err != nil {
		return prefs, err
	} else if ok {
		prefs.PeriodMillis = entities.ParsePeriod(v)
	}

	return prefs, nil
}

// SavePeriod stores the playback period preference
func SavePeriod(repo PreferenceRepository, periodMillis int) error {
	return repo.Set(entities.PrefSpeed, strconv.Itoa(periodMillis))
}
