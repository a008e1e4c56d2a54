package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
)

const activitySelectColumns = `
	SELECT id, ts, action, client_id, user_id, details, executor_scope, executor_id, root_id, run_id`

func (s *ActivityStore) Insert(ctx context.Context, entry domain.ActivityLogEntry) (domain.ActivityLogEntry, error) {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return domain.ActivityLogEntry{}, err
	}

	var executorScope *string
	if entry.ExecutorScope != nil {
		scope := string(*entry.ExecutorScope)
		executorScope = &scope
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO activity_log (id, ts, action, client_id, user_id, details, executor_scope, executor_id, root_id, run_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, entry.Timestamp, entry.Action, entry.ClientID, entry.UserID, detailsJSON, executorScope,
		entry.ExecutorID, entry.RootID, entry.RunID)

	if err := row.Scan(&entry.ID); err != nil {
		return domain.ActivityLogEntry{}, err
	}
	return entry, nil
}

func (s *ActivityStore) List(ctx context.Context, limit, offset int) ([]domain.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, activitySelectColumns+`
		FROM activity_log ORDER BY ts DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityLogEntry
	for rows.Next() {
		entry, err := scanActivityEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *ActivityStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activity_log WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanActivityEntry(row rowScanner) (domain.ActivityLogEntry, error) {
	var e domain.ActivityLogEntry
	var clientID, userID, executorScope, executorID, rootID, runID sql.NullString
	var detailsRaw []byte

	err := row.Scan(&e.ID, &e.Timestamp, &e.Action, &clientID, &userID, &detailsRaw,
		&executorScope, &executorID, &rootID, &runID)
	if err != nil {
		return domain.ActivityLogEntry{}, err
	}

	if clientID.Valid {
		e.ClientID = &clientID.String
	}
	if userID.Valid {
		e.UserID = &userID.String
	}
	if executorScope.Valid {
		scope := domain.ExecutionScope(executorScope.String)
		e.ExecutorScope = &scope
	}
	if executorID.Valid {
		e.ExecutorID = &executorID.String
	}
	if rootID.Valid {
		e.RootID = &rootID.String
	}
	if runID.Valid {
		e.RunID = &runID.String
	}
	if len(detailsRaw) > 0 {
		if err := json.Unmarshal(detailsRaw, &e.Details); err != nil {
			return domain.ActivityLogEntry{}, err
		}
	}
	return e, nil
}
