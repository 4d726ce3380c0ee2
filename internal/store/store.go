package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yangwenmai/taskforge/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ RoundReader     = (*Store)(nil)
	_ RoundWriter     = (*Store)(nil)
	_ RoundRepository = (*Store)(nil)
)

// Store persists each round's generated files so later rounds can revise them.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	// Ensure the schema_version table exists.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: round_artifacts
		s.migrateV2, // v1 → v2: add pages_url column
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS round_artifacts (
		id         TEXT PRIMARY KEY,
		task       TEXT NOT NULL,
		nonce      TEXT NOT NULL,
		round      INTEGER NOT NULL,
		index_html TEXT NOT NULL,
		style_css  TEXT NOT NULL,
		script_js  TEXT NOT NULL,
		readme_md  TEXT NOT NULL,
		repo_url   TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_round_artifacts_key ON round_artifacts(task, nonce, round);
	`)
	return err
}

// migrateV2 records the Pages URL alongside the repository (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`ALTER TABLE round_artifacts ADD COLUMN pages_url TEXT NOT NULL DEFAULT ''`)
	return err
}

// SaveRoundArtifacts inserts or replaces the files of (task, nonce, round).
func (s *Store) SaveRoundArtifacts(ctx context.Context, ra model.RoundArtifacts) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO round_artifacts (id, task, nonce, round, index_html, style_css, script_js, readme_md, repo_url, commit_sha, pages_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task, nonce, round) DO UPDATE SET
			id = excluded.id,
			index_html = excluded.index_html,
			style_css = excluded.style_css,
			script_js = excluded.script_js,
			readme_md = excluded.readme_md,
			repo_url = excluded.repo_url,
			commit_sha = excluded.commit_sha,
			pages_url = excluded.pages_url,
			created_at = excluded.created_at`,
		ra.ID, ra.Task, ra.Nonce, ra.Round,
		ra.Artifacts.IndexHTML, ra.Artifacts.StyleCSS, ra.Artifacts.ScriptJS, ra.Artifacts.ReadmeMD,
		ra.RepoURL, ra.CommitSHA, ra.PagesURL, ra.CreatedAt,
	)
	return err
}

const roundColumns = `id, task, nonce, round, index_html, style_css, script_js, readme_md, repo_url, commit_sha, pages_url, created_at`

// GetRoundArtifacts returns the files of one round, or ErrNotFound.
func (s *Store) GetRoundArtifacts(ctx context.Context, task, nonce string, round int) (*model.RoundArtifacts, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM round_artifacts WHERE task = ? AND nonce = ? AND round = ?`, task, nonce, round)
	ra, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ra, nil
}

// ListRounds returns every stored round of (task, nonce), oldest first.
func (s *Store) ListRounds(ctx context.Context, task, nonce string) ([]model.RoundArtifacts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roundColumns+` FROM round_artifacts WHERE task = ? AND nonce = ? ORDER BY round ASC`, task, nonce)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []model.RoundArtifacts
	for rows.Next() {
		ra, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, *ra)
	}
	return rounds, rows.Err()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRound(row scanner) (*model.RoundArtifacts, error) {
	var ra model.RoundArtifacts
	err := row.Scan(&ra.ID, &ra.Task, &ra.Nonce, &ra.Round,
		&ra.Artifacts.IndexHTML, &ra.Artifacts.StyleCSS, &ra.Artifacts.ScriptJS, &ra.Artifacts.ReadmeMD,
		&ra.RepoURL, &ra.CommitSHA, &ra.PagesURL, &ra.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ra, nil
}
