package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
)

const lockSelectColumns = `
	SELECT id, source_uri, client_id, locked_at, expires_at, lock_reason, root_id, relative_path`

func (s *LockStore) DeleteExpiredForIdentity(ctx context.Context, sourceURI string, rootID, relativePath *string, now time.Time) error {
	if rootID != nil && relativePath != nil {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM document_locks WHERE root_id = $1 AND relative_path = $2 AND expires_at <= $3
		`, *rootID, *relativePath, now)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM document_locks WHERE source_uri = $1 AND expires_at <= $2
	`, sourceURI, now)
	return err
}

func (s *LockStore) GetActiveForIdentity(ctx context.Context, sourceURI string, rootID, relativePath *string, now time.Time) (domain.DocumentLock, bool, error) {
	var row *sql.Row
	if rootID != nil && relativePath != nil {
		row = s.db.QueryRowContext(ctx, lockSelectColumns+`
			FROM document_locks WHERE root_id = $1 AND relative_path = $2 AND expires_at > $3
		`, *rootID, *relativePath, now)
	} else {
		row = s.db.QueryRowContext(ctx, lockSelectColumns+`
			FROM document_locks WHERE source_uri = $1 AND expires_at > $2
		`, sourceURI, now)
	}
	lock, err := scanLock(row)
	if err == sql.ErrNoRows {
		return domain.DocumentLock{}, false, nil
	}
	if err != nil {
		return domain.DocumentLock{}, false, err
	}
	return lock, true, nil
}

func (s *LockStore) Insert(ctx context.Context, lock domain.DocumentLock) (domain.DocumentLock, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO document_locks (id, source_uri, client_id, locked_at, expires_at, lock_reason, root_id, relative_path)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, lock.SourceURI, lock.ClientID, lock.LockedAt, lock.ExpiresAt, lock.LockReason, lock.RootID, lock.RelativePath)

	if err := row.Scan(&lock.ID); err != nil {
		return domain.DocumentLock{}, err
	}
	return lock, nil
}

func (s *LockStore) ExtendTTL(ctx context.Context, id string, expiresAt time.Time, reason string) (domain.DocumentLock, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE document_locks SET expires_at = $2, lock_reason = $3 WHERE id = $1
		RETURNING id, source_uri, client_id, locked_at, expires_at, lock_reason, root_id, relative_path
	`, id, expiresAt, reason)
	return scanLock(row)
}

func (s *LockStore) DeleteByID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_locks WHERE id = $1`, id)
	return err
}

func (s *LockStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_locks WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanLock(row rowScanner) (domain.DocumentLock, error) {
	var l domain.DocumentLock
	var rootID, relativePath sql.NullString
	if err := row.Scan(&l.ID, &l.SourceURI, &l.ClientID, &l.LockedAt, &l.ExpiresAt, &l.LockReason, &rootID, &relativePath); err != nil {
		return domain.DocumentLock{}, err
	}
	if rootID.Valid {
		l.RootID = &rootID.String
	}
	if relativePath.Valid {
		l.RelativePath = &relativePath.String
	}
	return l, nil
}
