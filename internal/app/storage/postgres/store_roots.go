package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/docuindex/engine/internal/app/domain"
)

const rootSelectColumns = `
	SELECT id, folder_path, normalized_folder_path, execution_scope, executor_id, root_id,
	       schedule_cron, enabled, paused, max_concurrency, consecutive_failures,
	       last_scan_started_at, last_scan_completed_at, last_successful_scan_at,
	       last_error_at, last_scanned_at, last_run_id, metadata`

func (s *RootStore) Insert(ctx context.Context, root domain.WatchedRoot) (domain.WatchedRoot, error) {
	metaJSON, err := json.Marshal(root.Metadata)
	if err != nil {
		return domain.WatchedRoot{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO watched_folders
			(folder_path, normalized_folder_path, execution_scope, executor_id, root_id,
			 schedule_cron, enabled, paused, max_concurrency, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, root.FolderPath, root.NormalizedFolderPath, string(root.ExecutionScope), root.ExecutorID, root.RootID,
		root.ScheduleCron, root.Enabled, root.Paused, root.MaxConcurrency, metaJSON)

	if err := row.Scan(&root.ID); err != nil {
		return domain.WatchedRoot{}, fmt.Errorf("insert watched root: %w", err)
	}
	return root, nil
}

func (s *RootStore) Update(ctx context.Context, root domain.WatchedRoot) (domain.WatchedRoot, error) {
	metaJSON, err := json.Marshal(root.Metadata)
	if err != nil {
		return domain.WatchedRoot{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE watched_folders SET
			folder_path = $2, normalized_folder_path = $3, execution_scope = $4, executor_id = $5,
			schedule_cron = $6, enabled = $7, paused = $8, max_concurrency = $9,
			consecutive_failures = $10, last_scan_started_at = $11, last_scan_completed_at = $12,
			last_successful_scan_at = $13, last_error_at = $14, last_scanned_at = $15,
			last_run_id = $16, metadata = $17
		WHERE id = $1
	`, root.ID, root.FolderPath, root.NormalizedFolderPath, string(root.ExecutionScope), root.ExecutorID,
		root.ScheduleCron, root.Enabled, root.Paused, root.MaxConcurrency, root.ConsecutiveFailures,
		root.LastScanStartedAt, root.LastScanCompletedAt, root.LastSuccessfulScanAt, root.LastErrorAt,
		root.LastScannedAt, root.LastRunID, metaJSON)
	if err != nil {
		return domain.WatchedRoot{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.WatchedRoot{}, sql.ErrNoRows
	}
	return root, nil
}

func (s *RootStore) Get(ctx context.Context, id string) (domain.WatchedRoot, error) {
	row := s.db.QueryRowContext(ctx, rootSelectColumns+` FROM watched_folders WHERE id = $1`, id)
	return scanRoot(row)
}

func (s *RootStore) GetByRootID(ctx context.Context, rootID string) (domain.WatchedRoot, error) {
	row := s.db.QueryRowContext(ctx, rootSelectColumns+` FROM watched_folders WHERE root_id = $1`, rootID)
	return scanRoot(row)
}

func (s *RootStore) FindByNormalizedPath(ctx context.Context, scope domain.ExecutionScope, executorID *string, normalizedPath string) (domain.WatchedRoot, bool, error) {
	var row *sql.Row
	if scope == domain.ScopeClient {
		row = s.db.QueryRowContext(ctx, rootSelectColumns+`
			FROM watched_folders WHERE execution_scope = 'client' AND executor_id = $1 AND normalized_folder_path = $2
		`, executorID, normalizedPath)
	} else {
		row = s.db.QueryRowContext(ctx, rootSelectColumns+`
			FROM watched_folders WHERE execution_scope = 'server' AND normalized_folder_path = $1
		`, normalizedPath)
	}
	root, err := scanRoot(row)
	if err == sql.ErrNoRows {
		return domain.WatchedRoot{}, false, nil
	}
	if err != nil {
		return domain.WatchedRoot{}, false, err
	}
	return root, true, nil
}

func (s *RootStore) List(ctx context.Context, enabledOnly bool, scope *domain.ExecutionScope, executorID *string) ([]domain.WatchedRoot, error) {
	query := rootSelectColumns + ` FROM watched_folders WHERE 1=1`
	var args []interface{}
	if enabledOnly {
		query += " AND enabled = true"
	}
	if scope != nil {
		args = append(args, string(*scope))
		query += fmt.Sprintf(" AND execution_scope = $%d", len(args))
	}
	if executorID != nil {
		args = append(args, *executorID)
		query += fmt.Sprintf(" AND executor_id = $%d", len(args))
	}
	query += " ORDER BY folder_path ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WatchedRoot
	for rows.Next() {
		root, err := scanRoot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, root)
	}
	return out, rows.Err()
}

func (s *RootStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM watched_folders WHERE id = $1`, id)
	return err
}

func scanRoot(row rowScanner) (domain.WatchedRoot, error) {
	var r domain.WatchedRoot
	var metaRaw []byte
	var executorID, lastRunID sql.NullString
	var lastScanStarted, lastScanCompleted, lastSuccessful, lastError, lastScanned sql.NullTime

	err := row.Scan(&r.ID, &r.FolderPath, &r.NormalizedFolderPath, &r.ExecutionScope, &executorID, &r.RootID,
		&r.ScheduleCron, &r.Enabled, &r.Paused, &r.MaxConcurrency, &r.ConsecutiveFailures,
		&lastScanStarted, &lastScanCompleted, &lastSuccessful, &lastError, &lastScanned, &lastRunID, &metaRaw)
	if err != nil {
		return domain.WatchedRoot{}, err
	}

	if executorID.Valid {
		r.ExecutorID = &executorID.String
	}
	if lastRunID.Valid {
		r.LastRunID = &lastRunID.String
	}
	if lastScanStarted.Valid {
		r.LastScanStartedAt = &lastScanStarted.Time
	}
	if lastScanCompleted.Valid {
		r.LastScanCompletedAt = &lastScanCompleted.Time
	}
	if lastSuccessful.Valid {
		r.LastSuccessfulScanAt = &lastSuccessful.Time
	}
	if lastError.Valid {
		r.LastErrorAt = &lastError.Time
	}
	if lastScanned.Valid {
		r.LastScannedAt = &lastScanned.Time
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &r.Metadata); err != nil {
			return domain.WatchedRoot{}, err
		}
	}
	return r, nil
}
