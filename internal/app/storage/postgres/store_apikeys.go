package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
)

const apiKeySelectColumns = `
	SELECT id, name, hash, prefix, created_at, last_used_at, revoked_at, expires_at
	FROM api_keys`

func (s *APIKeyStore) Insert(ctx context.Context, key domain.APIKey) (domain.APIKey, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (name, hash, prefix, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, key.Name, key.Hash, key.Prefix, key.ExpiresAt)
	if err := row.Scan(&key.ID, &key.CreatedAt); err != nil {
		return domain.APIKey{}, err
	}
	return key, nil
}

func (s *APIKeyStore) GetByHash(ctx context.Context, hash string) (domain.APIKey, bool, error) {
	row := s.db.QueryRowContext(ctx, apiKeySelectColumns+` WHERE hash = $1`, hash)
	key, err := scanAPIKey(row)
	if err == sql.ErrNoRows {
		return domain.APIKey{}, false, nil
	}
	if err != nil {
		return domain.APIKey{}, false, err
	}
	return key, true, nil
}

func (s *APIKeyStore) Get(ctx context.Context, id string) (domain.APIKey, error) {
	row := s.db.QueryRowContext(ctx, apiKeySelectColumns+` WHERE id = $1`, id)
	return scanAPIKey(row)
}

func (s *APIKeyStore) List(ctx context.Context) ([]domain.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, apiKeySelectColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *APIKeyStore) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET revoked_at = $2 WHERE id = $1`, id, revokedAt)
	return err
}

func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, usedAt)
	return err
}

func (s *APIKeyStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys WHERE revoked_at IS NULL`).Scan(&count)
	return count, err
}

func scanAPIKey(row rowScanner) (domain.APIKey, error) {
	var key domain.APIKey
	if err := row.Scan(&key.ID, &key.Name, &key.Hash, &key.Prefix, &key.CreatedAt,
		&key.LastUsedAt, &key.RevokedAt, &key.ExpiresAt); err != nil {
		return domain.APIKey{}, err
	}
	return key, nil
}
