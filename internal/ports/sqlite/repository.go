// Package sqlite stores matches in SQLite through the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"bataille/internal/domain"
	"bataille/internal/ports"

	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS matches (
	id         TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	mode       TEXT NOT NULL,
	phase      TEXT NOT NULL,
	doc        TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS match_archive (
	id            TEXT PRIMARY KEY,
	version       INTEGER NOT NULL,
	mode          TEXT NOT NULL,
	winner        TEXT,
	defeat_reason TEXT,
	rounds        INTEGER NOT NULL,
	doc           TEXT NOT NULL,
	ended_at      INTEGER NOT NULL
)`,
}

type Repository struct {
	Db *sql.DB
}

// Open connects to the database at dsn and applies the schema. Use ":memory:" for a throwaway store.
func Open(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	// SQLite serialises writers; a single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	repo, err := NewRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func NewRepository(db *sql.DB) (*Repository, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("error in db migration: %w", err)
		}
	}
	return &Repository{Db: db}, nil
}

func (repo *Repository) Close() error {
	return repo.Db.Close()
}

func (repo *Repository) Create(ctx context.Context, m *domain.Match) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	if archived, err := repo.exists(ctx, "match_archive", m.ID); err != nil {
		return err
	} else if archived {
		return ports.ErrAlreadyExists
	}
	res, err := repo.Db.ExecContext(ctx,
		`INSERT INTO matches(id, version, mode, phase, doc, updated_at) VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		m.ID, m.Version, string(m.Mode), string(m.Phase), string(doc), m.LastActionAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("error in db execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrAlreadyExists
	}
	return nil
}

func (repo *Repository) Load(ctx context.Context, id string) (*domain.Match, error) {
	var doc string
	err := repo.Db.QueryRowContext(ctx, "SELECT doc FROM matches WHERE id = ? LIMIT 1", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		err = repo.Db.QueryRowContext(ctx, "SELECT doc FROM match_archive WHERE id = ? LIMIT 1", id).Scan(&doc)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error in db execution: %w", err)
	}
	var m domain.Match
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	return &m, nil
}

func (repo *Repository) Save(ctx context.Context, m *domain.Match) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	res, err := repo.Db.ExecContext(ctx,
		"UPDATE matches SET version = ?, phase = ?, doc = ?, updated_at = ? WHERE id = ? AND version = ?",
		m.Version, string(m.Phase), string(doc), m.LastActionAt.UnixMilli(), m.ID, m.Version-1)
	if err != nil {
		return fmt.Errorf("error in db execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.missOrConflict(ctx, m.ID)
	}
	return nil
}

func (repo *Repository) Archive(ctx context.Context, m *domain.Match) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	tx, err := repo.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error in db transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE id = ? AND version = ?", m.ID, m.Version-1)
	if err != nil {
		return fmt.Errorf("error in db execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return repo.missOrConflict(ctx, m.ID)
	}

	var winner, reason sql.NullString
	if m.Winner != nil {
		winner = sql.NullString{String: *m.Winner, Valid: true}
	}
	if m.DefeatReason != nil {
		reason = sql.NullString{String: string(*m.DefeatReason), Valid: true}
	}
	endedAt := m.LastActionAt
	if m.EndedAt != nil {
		endedAt = *m.EndedAt
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO match_archive(id, version, mode, winner, defeat_reason, rounds, doc, ended_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Version, string(m.Mode), winner, reason, m.RoundCount, string(doc), endedAt.UnixMilli()); err != nil {
		return fmt.Errorf("error in db execution: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error in db transaction: %w", err)
	}
	return nil
}

// ListLive returns the ids of the matches still in play.
func (repo *Repository) ListLive(ctx context.Context) ([]string, error) {
	rows, err := repo.Db.QueryContext(ctx, "SELECT id FROM matches ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("error in db execution: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error in db scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ArchivedResult is the summary row kept for every finished match.
type ArchivedResult struct {
	ID           string
	Mode         domain.Mode
	Winner       sql.NullString
	DefeatReason sql.NullString
	Rounds       int
}

// RecentResults lists the latest finished matches, newest first.
func (repo *Repository) RecentResults(ctx context.Context, limit int) ([]ArchivedResult, error) {
	rows, err := repo.Db.QueryContext(ctx,
		"SELECT id, mode, winner, defeat_reason, rounds FROM match_archive ORDER BY ended_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("error in db execution: %w", err)
	}
	defer rows.Close()

	var results []ArchivedResult
	for rows.Next() {
		var r ArchivedResult
		var mode string
		if err := rows.Scan(&r.ID, &mode, &r.Winner, &r.DefeatReason, &r.Rounds); err != nil {
			return nil, fmt.Errorf("error in db scan: %w", err)
		}
		r.Mode = domain.Mode(mode)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (repo *Repository) missOrConflict(ctx context.Context, id string) error {
	live, err := repo.exists(ctx, "matches", id)
	if err != nil {
		return err
	}
	if live {
		return ports.ErrVersionConflict
	}
	archived, err := repo.exists(ctx, "match_archive", id)
	if err != nil {
		return err
	}
	if archived {
		return ports.ErrVersionConflict
	}
	return ports.ErrNotFound
}

func (repo *Repository) exists(ctx context.Context, table, id string) (bool, error) {
	var one int
	err := repo.Db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error in db execution: %w", err)
	}
	return true, nil
}

var (
	_ ports.MatchRepository = (*Repository)(nil)
	_ ports.LiveMatchLister = (*Repository)(nil)
)
