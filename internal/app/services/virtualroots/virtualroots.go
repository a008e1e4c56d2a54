// Package virtualroots maps a client-local friendly name to an absolute
// path, letting a server-scope component resolve a cross-host URI back to
// a path meaningful on that client's machine.
package virtualroots

import (
	"context"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/storage"
)

// Service is the Virtual Roots registry.
type Service struct {
	store storage.VirtualRootStore
}

func New(store storage.VirtualRootStore) *Service {
	return &Service{store: store}
}

// RegisterParams carries the fields accepted by Register.
type RegisterParams struct {
	Name      string `json:"name"`
	ClientID  string `json:"client_id"`
	LocalPath string `json:"local_path"`
}

// Register upserts a client's named virtual root.
func (s *Service) Register(ctx context.Context, p RegisterParams) (domain.VirtualRoot, error) {
	if p.Name == "" || p.ClientID == "" || p.LocalPath == "" {
		return domain.VirtualRoot{}, apperrors.New(apperrors.PathValidationFailed, "name, client_id and local_path are required")
	}
	inserted, err := s.store.Upsert(ctx, domain.VirtualRoot{
		Name:      p.Name,
		ClientID:  p.ClientID,
		LocalPath: p.LocalPath,
	})
	if err != nil {
		return domain.VirtualRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "register virtual root", err)
	}
	return inserted, nil
}

// ListForClient returns every virtual root registered by a client.
func (s *Service) ListForClient(ctx context.Context, clientID string) ([]domain.VirtualRoot, error) {
	return s.store.ListForClient(ctx, clientID)
}

// Resolve maps a (name, client_id) pair to its registered local path.
func (s *Service) Resolve(ctx context.Context, name, clientID string) (domain.VirtualRoot, bool, error) {
	return s.store.Resolve(ctx, name, clientID)
}

// Remove deletes a virtual root registration.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
