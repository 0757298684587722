// Package store persists user settings, OAuth credentials and the
// application history in a local SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_hh/internal/hh"
)

// Well-known settings keys.
const (
	KeySelectedResumeID = "selected_resume_id"
	KeySearchQuery      = "search_query"
	KeyCoverLetter      = "cover_letter"
	KeyAlwaysAttach     = "always_attach_cover_letter"

	keyAccessToken     = "access_token"
	keyRefreshToken    = "refresh_token"
	keyAccessExpiresAt = "access_expires_at"
)

// Store wraps the SQLite database. Safe for concurrent use; SQLite is
// kept to a single connection (single writer).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS applications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			vacancy_id TEXT NOT NULL,
			name       TEXT NOT NULL,
			url        TEXT,
			message    TEXT,
			applied_at TEXT NOT NULL
		)`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the value stored under key, or "" when absent.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// GetBool interprets the stored value as a boolean; absent or
// malformed values read as false.
func (s *Store) GetBool(key string) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	b, _ := strconv.ParseBool(v)
	return b, nil
}

// SetBool stores a boolean under key.
func (s *Store) SetBool(key string, v bool) error {
	return s.Set(key, strconv.FormatBool(v))
}

// LoadCredentials reads the persisted token pair. Absent fields come
// back as zero values.
func (s *Store) LoadCredentials() (hh.Credentials, error) {
	var creds hh.Credentials
	var err error
	if creds.AccessToken, err = s.Get(keyAccessToken); err != nil {
		return hh.Credentials{}, err
	}
	if creds.RefreshToken, err = s.Get(keyRefreshToken); err != nil {
		return hh.Credentials{}, err
	}
	raw, err := s.Get(keyAccessExpiresAt)
	if err != nil {
		return hh.Credentials{}, err
	}
	if raw != "" {
		creds.AccessExpiresAt, _ = strconv.ParseInt(raw, 10, 64)
	}
	return creds, nil
}

// SaveCredentials writes all three credential fields in one
// transaction.
func (s *Store) SaveCredentials(creds hh.Credentials) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: save credentials: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		keyAccessToken:     creds.AccessToken,
		keyRefreshToken:    creds.RefreshToken,
		keyAccessExpiresAt: strconv.FormatInt(creds.AccessExpiresAt, 10),
	} {
		if _, err := tx.Exec(
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("store: save credentials: %w", err)
		}
	}
	return tx.Commit()
}

// Application is one submitted application, as recorded by the apply
// engine.
type Application struct {
	ID        int64
	VacancyID string
	Name      string
	URL       string
	Message   string
	AppliedAt string
}

// RecordApplication appends a submitted application to the history.
func (s *Store) RecordApplication(vacancyID, name, url, message string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO applications (vacancy_id, name, url, message, applied_at)
		 VALUES (?, ?, ?, ?, ?)`,
		vacancyID, name, url, message, now,
	)
	if err != nil {
		return fmt.Errorf("store: record application: %w", err)
	}
	return nil
}

// ListApplications returns the most recent applications, newest first.
func (s *Store) ListApplications(limit int) ([]Application, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, vacancy_id, name, url, message, applied_at
		 FROM applications ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var a Application
		var url, message sql.NullString
		if err := rows.Scan(&a.ID, &a.VacancyID, &a.Name, &url, &message, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("store: scan application: %w", err)
		}
		a.URL = url.String
		a.Message = message.String
		apps = append(apps, a)
	}
	return apps, rows.Err()
}
