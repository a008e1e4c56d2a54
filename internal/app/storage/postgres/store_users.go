package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
)

const userSelectColumns = `
	SELECT id, email, display_name, role, auth_provider, api_key_id, client_id,
	       is_active, created_at, updated_at, last_login_at
	FROM users`

// userRow mirrors the users table shape for sqlx struct scanning; nullable
// columns use sql.Null* so a NULL doesn't fail the scan.
type userRow struct {
	ID            string         `db:"id"`
	Email         string         `db:"email"`
	DisplayName   sql.NullString `db:"display_name"`
	Role          string         `db:"role"`
	AuthProvider  string         `db:"auth_provider"`
	APIKeyID      sql.NullString `db:"api_key_id"`
	ClientID      sql.NullString `db:"client_id"`
	IsActive      bool           `db:"is_active"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastLoginAt   sql.NullTime   `db:"last_login_at"`
}

func (r userRow) toDomain() domain.User {
	u := domain.User{
		ID:           r.ID,
		Email:        r.Email,
		Role:         r.Role,
		AuthProvider: domain.AuthProvider(r.AuthProvider),
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.DisplayName.Valid {
		u.DisplayName = r.DisplayName.String
	}
	if r.APIKeyID.Valid {
		u.APIKeyID = &r.APIKeyID.String
	}
	if r.ClientID.Valid {
		u.ClientID = &r.ClientID.String
	}
	if r.LastLoginAt.Valid {
		u.LastLoginAt = &r.LastLoginAt.Time
	}
	return u
}

func (s *UserStore) Insert(ctx context.Context, user domain.User) (domain.User, error) {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (email, display_name, role, auth_provider, api_key_id, client_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, user.Email, user.DisplayName, user.Role, string(user.AuthProvider), user.APIKeyID,
		user.ClientID, user.IsActive)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, bool, error) {
	return s.getBy(ctx, `WHERE id = $1`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return s.getBy(ctx, `WHERE email = $1`, email)
}

func (s *UserStore) GetByAPIKeyID(ctx context.Context, apiKeyID string) (domain.User, bool, error) {
	return s.getBy(ctx, `WHERE api_key_id = $1`, apiKeyID)
}

func (s *UserStore) getBy(ctx context.Context, clause string, arg interface{}) (domain.User, bool, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, userSelectColumns+" "+clause, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return row.toDomain(), true, nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id string, loginAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login_at = $2, updated_at = now() WHERE id = $1
	`, id, loginAt)
	return err
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}
