package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
)

const runSelectColumns = `
	SELECT id, trigger, source_uri, started_at, completed_at, status,
	       files_scanned, files_added, files_updated, files_skipped, files_failed,
	       errors, metadata, client_id`

func (s *RunStore) Insert(ctx context.Context, run domain.IndexingRun) (domain.IndexingRun, error) {
	metaJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return domain.IndexingRun{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO indexing_runs (id, trigger, source_uri, started_at, status, metadata, client_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id
	`, string(run.Trigger), run.SourceURI, run.StartedAt, string(run.Status), metaJSON, run.ClientID)
	if err := row.Scan(&run.ID); err != nil {
		return domain.IndexingRun{}, err
	}
	return run, nil
}

func (s *RunStore) Complete(ctx context.Context, run domain.IndexingRun) (domain.IndexingRun, error) {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return domain.IndexingRun{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE indexing_runs SET
			completed_at = $2, status = $3, files_scanned = $4, files_added = $5,
			files_updated = $6, files_skipped = $7, files_failed = $8, errors = $9
		WHERE id = $1
	`, run.ID, run.CompletedAt, string(run.Status), run.FilesScanned, run.FilesAdded,
		run.FilesUpdated, run.FilesSkipped, run.FilesFailed, errorsJSON)
	if err != nil {
		return domain.IndexingRun{}, err
	}
	return run, nil
}

func (s *RunStore) Get(ctx context.Context, id string) (domain.IndexingRun, error) {
	row := s.db.QueryRowContext(ctx, runSelectColumns+` FROM indexing_runs WHERE id = $1`, id)
	return scanRun(row)
}

func (s *RunStore) List(ctx context.Context, limit, offset int) ([]domain.IndexingRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, runSelectColumns+`
		FROM indexing_runs ORDER BY started_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IndexingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Summary aggregates run history: counts by status, totals of files
// added/updated, and the most recent run time.
func (s *RunStore) Summary(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{CountsByStatus: map[domain.RunStatus]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM indexing_runs GROUP BY status`)
	if err != nil {
		return domain.RunSummary{}, err
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return domain.RunSummary{}, err
		}
		summary.CountsByStatus[domain.RunStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return domain.RunSummary{}, err
	}
	rows.Close()

	var lastRunAt sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(files_added), 0), COALESCE(SUM(files_updated), 0), MAX(started_at)
		FROM indexing_runs
	`).Scan(&summary.TotalAdded, &summary.TotalUpdated, &lastRunAt)
	if err != nil {
		return domain.RunSummary{}, err
	}
	if lastRunAt.Valid {
		summary.LastRunAt = &lastRunAt.Time
	}
	return summary, nil
}

// DeleteTerminalOlderThan deletes runs in a terminal state started before
// the cutoff. Running rows are never touched.
func (s *RunStore) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM indexing_runs
		WHERE status IN ('success', 'partial', 'failed') AND started_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReapStaleRunning marks runs stuck in "running" past the cutoff as failed.
func (s *RunStore) ReapStaleRunning(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE indexing_runs
		SET status = 'failed', completed_at = now(),
		    errors = errors || '[{"source_uri": "", "error": "reaped: exceeded stale-run timeout"}]'::jsonb
		WHERE status = 'running' AND started_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRun(row rowScanner) (domain.IndexingRun, error) {
	var r domain.IndexingRun
	var sourceURI, clientID sql.NullString
	var completedAt sql.NullTime
	var errorsRaw, metaRaw []byte

	err := row.Scan(&r.ID, &r.Trigger, &sourceURI, &r.StartedAt, &completedAt, &r.Status,
		&r.FilesScanned, &r.FilesAdded, &r.FilesUpdated, &r.FilesSkipped, &r.FilesFailed,
		&errorsRaw, &metaRaw, &clientID)
	if err != nil {
		return domain.IndexingRun{}, err
	}
	if sourceURI.Valid {
		r.SourceURI = &sourceURI.String
	}
	if clientID.Valid {
		r.ClientID = &clientID.String
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if len(errorsRaw) > 0 {
		if err := json.Unmarshal(errorsRaw, &r.Errors); err != nil {
			return domain.IndexingRun{}, err
		}
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &r.Metadata); err != nil {
			return domain.IndexingRun{}, err
		}
	}
	return r, nil
}
