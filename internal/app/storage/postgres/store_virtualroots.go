package postgres

import (
	"context"
	"database/sql"

	"github.com/docuindex/engine/internal/app/domain"
)

const virtualRootSelectColumns = `SELECT id, name, client_id, local_path`

// Upsert inserts a virtual root or replaces the local path of the existing
// one for the same name/client pair.
func (s *VirtualRootStore) Upsert(ctx context.Context, vr domain.VirtualRoot) (domain.VirtualRoot, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO virtual_roots (id, name, client_id, local_path)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (name, client_id) DO UPDATE SET local_path = EXCLUDED.local_path
		RETURNING id
	`, vr.Name, vr.ClientID, vr.LocalPath)

	if err := row.Scan(&vr.ID); err != nil {
		return domain.VirtualRoot{}, err
	}
	return vr, nil
}

func (s *VirtualRootStore) ListForClient(ctx context.Context, clientID string) ([]domain.VirtualRoot, error) {
	rows, err := s.db.QueryContext(ctx, virtualRootSelectColumns+`
		FROM virtual_roots WHERE client_id = $1 ORDER BY name ASC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VirtualRoot
	for rows.Next() {
		vr, err := scanVirtualRoot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, vr)
	}
	return out, rows.Err()
}

func (s *VirtualRootStore) Resolve(ctx context.Context, name, clientID string) (domain.VirtualRoot, bool, error) {
	row := s.db.QueryRowContext(ctx, virtualRootSelectColumns+`
		FROM virtual_roots WHERE name = $1 AND client_id = $2
	`, name, clientID)
	vr, err := scanVirtualRoot(row)
	if err == sql.ErrNoRows {
		return domain.VirtualRoot{}, false, nil
	}
	if err != nil {
		return domain.VirtualRoot{}, false, err
	}
	return vr, true, nil
}

func (s *VirtualRootStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM virtual_roots WHERE id = $1`, id)
	return err
}

func scanVirtualRoot(row rowScanner) (domain.VirtualRoot, error) {
	var vr domain.VirtualRoot
	if err := row.Scan(&vr.ID, &vr.Name, &vr.ClientID, &vr.LocalPath); err != nil {
		return domain.VirtualRoot{}, err
	}
	return vr, nil
}
