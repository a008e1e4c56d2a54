package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/docuindex/engine/internal/app/domain"
)

const roleSelectColumns = `SELECT name, description, permissions, is_system FROM roles`

func (s *RoleStore) Get(ctx context.Context, name string) (domain.Role, bool, error) {
	row := s.db.QueryRowContext(ctx, roleSelectColumns+` WHERE name = $1`, name)
	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return domain.Role{}, false, nil
	}
	if err != nil {
		return domain.Role{}, false, err
	}
	return role, true, nil
}

func (s *RoleStore) List(ctx context.Context) ([]domain.Role, error) {
	rows, err := s.db.QueryContext(ctx, roleSelectColumns+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (s *RoleStore) Upsert(ctx context.Context, role domain.Role) (domain.Role, error) {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return domain.Role{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO roles (name, description, permissions, is_system)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			permissions = EXCLUDED.permissions,
			is_system = EXCLUDED.is_system
	`, role.Name, role.Description, permissionsJSON, role.IsSystem)
	if err != nil {
		return domain.Role{}, err
	}
	return role, nil
}

func scanRole(row rowScanner) (domain.Role, error) {
	var r domain.Role
	var permissionsRaw []byte
	if err := row.Scan(&r.Name, &r.Description, &permissionsRaw, &r.IsSystem); err != nil {
		return domain.Role{}, err
	}
	if len(permissionsRaw) > 0 {
		if err := json.Unmarshal(permissionsRaw, &r.Permissions); err != nil {
			return domain.Role{}, err
		}
	}
	return r, nil
}
