package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kakusu/internal/models"
)

// SQLite stores progress for many documents in one database, one row per document key.
type SQLite struct {
	db  *sql.DB
	key string
}

// NewSQLite opens or creates the database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLite(dbPath, key string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLite{db: db, key: key}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		doc_key TEXT PRIMARY KEY,
		processed_chunks INTEGER NOT NULL,
		people TEXT NOT NULL,
		companies TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Load returns the row for this store's key, or zero progress.
func (s *SQLite) Load(ctx context.Context) (*models.Progress, error) {
	var processed int
	var peopleJSON, companiesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT processed_chunks, people, companies FROM checkpoints WHERE doc_key = ?`, s.key,
	).Scan(&processed, &peopleJSON, &companiesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewProgress(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	p := models.NewProgress()
	p.ProcessedChunks = processed
	for cat, raw := range map[models.Category]string{models.People: peopleJSON, models.Companies: companiesJSON} {
		var texts []string
		if err := json.Unmarshal([]byte(raw), &texts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", cat, err)
		}
		for _, text := range texts {
			p.Entities.Add(cat, text)
		}
	}
	return p, nil
}

// Save upserts the row for this store's key.
func (s *SQLite) Save(ctx context.Context, p *models.Progress) error {
	people, err := json.Marshal(p.Entities.Sorted(models.People))
	if err != nil {
		return fmt.Errorf("failed to marshal people: %w", err)
	}
	companies, err := json.Marshal(p.Entities.Sorted(models.Companies))
	if err != nil {
		return fmt.Errorf("failed to marshal companies: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (doc_key, processed_chunks, people, companies, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(doc_key) DO UPDATE SET
		   processed_chunks = excluded.processed_chunks,
		   people = excluded.people,
		   companies = excluded.companies,
		   updated_at = excluded.updated_at`,
		s.key, p.ProcessedChunks, string(people), string(companies), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Clear deletes the row for this store's key.
func (s *SQLite) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE doc_key = ?`, s.key)
	return err
}

// Keys lists every document key with a saved checkpoint.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc_key FROM checkpoints ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
