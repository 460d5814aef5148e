package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourorg/reuse-assistant/internal/model"
)

const batchSize = 100

type Store struct{ Pool *pgxpool.Pool }

func Open(ctx context.Context, url string) (*Store, error) {
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: p}, nil
}

func (s *Store) Close() { s.Pool.Close() }

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) StartRun(ctx context.Context, r model.Run) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO reuse_runs (id, repo_url, organization, repository, branch, status, started_at, progress_pct, progress_msg)
		VALUES ($1::uuid, $2, $3, $4, $5, 'running', $6, 0, 'starting')
	`, r.ID, r.RepoURL, r.Organization, r.Repository, r.Branch, r.StartedAt)
	return err
}

// RecordEvent appends a stage event and moves the run's progress forward.
func (s *Store) RecordEvent(ctx context.Context, runID, stage, detail string, pct int) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO reuse_run_events (run_id, ts, stage, detail, pct)
		VALUES ($1::uuid, now(), $2, $3, $4)
	`, runID, stage, detail, pct)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		UPDATE reuse_runs
		SET progress_pct=GREATEST(progress_pct, $2),
		    progress_msg=CASE WHEN $2 >= progress_pct THEN $3 ELSE progress_msg END
		WHERE id=$1::uuid
		  AND status='running'
	`, runID, pct, stage+": "+detail)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE reuse_runs
		SET status='failed',
		    finished_at=now(),
		    error_msg=$2,
		    progress_msg=COALESCE(progress_msg, $2)
		WHERE id=$1::uuid
		  AND status='running'
	`, id, errMsg)
	return err
}

func (s *Store) MarkDone(ctx context.Context, r model.Run) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE reuse_runs
		SET status='done', finished_at=now(),
		    progress_pct=100, progress_msg='completed',
		    entries=$2, diagnostics=$3, manifest_key=$4
		WHERE id=$1::uuid
	`, r.ID, r.Entries, r.Diagnostics, nullableString(r.ManifestKey))
	return err
}

// RecordLicenses replaces the directory/license rows stored for a run.
func (s *Store) RecordLicenses(ctx context.Context, runID string, entries []model.ScanEntry) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM reuse_run_licenses WHERE run_id=$1::uuid`, runID); err != nil {
		return err
	}
	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))
		sql, args := licenseInsert(runID, entries[start:end], start)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("batch insert licenses: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// licenseInsert builds one multi-value INSERT for a chunk of entries.
// offset is the position of the chunk's first entry in the whole map.
func licenseInsert(runID string, chunk []model.ScanEntry, offset int) (string, []any) {
	const colCount = 5
	var sb strings.Builder
	sb.WriteString(`
INSERT INTO reuse_run_licenses (run_id, position, directory, license, score) VALUES `)
	args := make([]any, 0, len(chunk)*colCount)
	for i, e := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i*colCount + 1
		fmt.Fprintf(&sb, "($%d::uuid, $%d, $%d, $%d, $%d)", base, base+1, base+2, base+3, base+4)
		args = append(args, runID, offset+i, e.Directory, e.License, nullableString(e.Score))
	}
	sb.WriteString(`
ON CONFLICT (run_id, directory) DO NOTHING`)
	return sb.String(), args
}

const runColumns = `id::text, repo_url, organization, repository, branch, status,
	COALESCE(entries, 0), COALESCE(diagnostics, 0), COALESCE(manifest_key, ''), COALESCE(error_msg, ''),
	started_at, finished_at`

func scanRun(row pgx.Row) (model.Run, error) {
	var r model.Run
	var status string
	err := row.Scan(&r.ID, &r.RepoURL, &r.Organization, &r.Repository, &r.Branch, &status,
		&r.Entries, &r.Diagnostics, &r.ManifestKey, &r.ErrorMsg, &r.StartedAt, &r.FinishedAt)
	r.Status = model.RunStatus(status)
	return r, err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+runColumns+` FROM reuse_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Run, 0, limit)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns nil when no run has the given id.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanRun(s.Pool.QueryRow(ctx, `SELECT `+runColumns+` FROM reuse_runs WHERE id=$1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) RunLicenses(ctx context.Context, id string) ([]model.ScanEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT directory, license, COALESCE(score, '')
		FROM reuse_run_licenses
		WHERE run_id=$1::uuid
		ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScanEntry
	for rows.Next() {
		var e model.ScanEntry
		if err := rows.Scan(&e.Directory, &e.License, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FailStaleRunning marks runs that have shown no event for idleFor as failed.
// A process killed mid-run leaves its row in 'running' otherwise.
func (s *Store) FailStaleRunning(ctx context.Context, idleFor time.Duration) ([]string, error) {
	seconds := int64(idleFor.Seconds())
	if seconds <= 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		WITH stale AS (
			SELECT r.id
			FROM reuse_runs r
			LEFT JOIN LATERAL (
				SELECT MAX(ts) AS last_event_ts
				FROM reuse_run_events e
				WHERE e.run_id = r.id
			) ev ON true
			WHERE r.status='running'
			  AND COALESCE(ev.last_event_ts, r.started_at) < now() - ($1::bigint * interval '1 second')
		)
		UPDATE reuse_runs r
		SET status='failed',
		    finished_at=now(),
		    error_msg='abandoned: no progress',
		    progress_msg='abandoned: no progress'
		FROM stale
		WHERE r.id = stale.id
		RETURNING r.id::text
	`, seconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reuse_runs (
  id UUID PRIMARY KEY,
  repo_url TEXT NOT NULL,
  organization TEXT NOT NULL,
  repository TEXT NOT NULL,
  branch TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('running','done','failed')),
  entries INTEGER,
  diagnostics INTEGER,
  manifest_key TEXT,
  error_msg TEXT,
  progress_pct INTEGER NOT NULL DEFAULT 0 CHECK (progress_pct BETWEEN 0 AND 100),
  progress_msg TEXT,
  started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_reuse_runs_started ON reuse_runs (started_at DESC);
CREATE INDEX IF NOT EXISTS idx_reuse_runs_repo ON reuse_runs (organization, repository);

CREATE TABLE IF NOT EXISTS reuse_run_events (
  id BIGSERIAL PRIMARY KEY,
  run_id UUID NOT NULL REFERENCES reuse_runs(id) ON DELETE CASCADE,
  ts TIMESTAMPTZ NOT NULL DEFAULT now(),
  stage TEXT NOT NULL,
  detail TEXT NOT NULL,
  pct SMALLINT
);

CREATE INDEX IF NOT EXISTS idx_reuse_run_events_run_ts ON reuse_run_events (run_id, ts);

CREATE TABLE IF NOT EXISTS reuse_run_licenses (
  id BIGSERIAL PRIMARY KEY,
  run_id UUID NOT NULL REFERENCES reuse_runs(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  directory TEXT NOT NULL,
  license TEXT NOT NULL,
  score TEXT,
  UNIQUE(run_id, directory)
);
`)
	return err
}
