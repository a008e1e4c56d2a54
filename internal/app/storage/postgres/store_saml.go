package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
)

const samlSelectColumns = `
	SELECT id, user_id, name_id, session_index, idp_entity_id, created_at, expires_at, is_active
	FROM saml_sessions`

func (s *SAMLSessionStore) Insert(ctx context.Context, session domain.SAMLSession) (domain.SAMLSession, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO saml_sessions (user_id, name_id, session_index, idp_entity_id, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, session.UserID, session.NameID, session.SessionIndex, session.IdPEntityID, session.ExpiresAt, session.IsActive)
	if err := row.Scan(&session.ID, &session.CreatedAt); err != nil {
		return domain.SAMLSession{}, err
	}
	return session, nil
}

func (s *SAMLSessionStore) Get(ctx context.Context, id string) (domain.SAMLSession, bool, error) {
	row := s.db.QueryRowContext(ctx, samlSelectColumns+` WHERE id = $1`, id)
	session, err := scanSAMLSession(row)
	if err == sql.ErrNoRows {
		return domain.SAMLSession{}, false, nil
	}
	if err != nil {
		return domain.SAMLSession{}, false, err
	}
	return session, true, nil
}

func (s *SAMLSessionStore) Deactivate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE saml_sessions SET is_active = false WHERE id = $1`, id)
	return err
}

// DeleteExpiredOrInactive removes SAML sessions that have expired or were
// explicitly deactivated, as part of the retention sweep.
func (s *SAMLSessionStore) DeleteExpiredOrInactive(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM saml_sessions WHERE expires_at <= $1 OR is_active = false
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSAMLSession(row rowScanner) (domain.SAMLSession, error) {
	var session domain.SAMLSession
	if err := row.Scan(&session.ID, &session.UserID, &session.NameID, &session.SessionIndex,
		&session.IdPEntityID, &session.CreatedAt, &session.ExpiresAt, &session.IsActive); err != nil {
		return domain.SAMLSession{}, err
	}
	return session, nil
}
