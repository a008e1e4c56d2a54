// Package roles resolves role-to-permission mappings through a stack of
// providers tried in order: database-backed, file-backed, built-in. The
// first provider with an opinion on a role wins.
package roles

import (
	"context"
	"encoding/json"
	"os"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/storage"
)

// Provider resolves a role by name. Found is false when this provider has
// no opinion on the role, letting the stack fall through to the next one.
type Provider interface {
	Resolve(ctx context.Context, name string) (role domain.Role, found bool, err error)
}

// BuiltinRoles are always available regardless of database or file state,
// so the system never loses access entirely.
var BuiltinRoles = []domain.Role{
	{Name: domain.AdminRoleName, Description: "full access", IsSystem: true},
	{Name: "viewer", Description: "read-only access", Permissions: []string{"documents.read", "search.read"}, IsSystem: true},
}

// Stack tries each provider in order and returns the first match.
type Stack struct {
	providers []Provider
}

// NewStack builds the standard database -> file -> built-in stack.
func NewStack(store storage.RoleStore, rolesFilePath string) *Stack {
	return &Stack{providers: []Provider{
		dbProvider{store: store},
		fileProvider{path: rolesFilePath},
		builtinProvider{},
	}}
}

// Resolve walks the provider stack, returning the first match.
func (s *Stack) Resolve(ctx context.Context, name string) (domain.Role, bool, error) {
	for _, p := range s.providers {
		role, found, err := p.Resolve(ctx, name)
		if err != nil {
			return domain.Role{}, false, err
		}
		if found {
			return role, true, nil
		}
	}
	return domain.Role{}, false, nil
}

// Has is the standard permission check: the role carries permission
// directly, or it carries the system.admin catch-all.
func (s *Stack) Has(ctx context.Context, roleName, permission string) (bool, error) {
	role, found, err := s.Resolve(ctx, roleName)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return role.Has(permission), nil
}

type dbProvider struct{ store storage.RoleStore }

func (p dbProvider) Resolve(ctx context.Context, name string) (domain.Role, bool, error) {
	if p.store == nil {
		return domain.Role{}, false, nil
	}
	role, found, err := p.store.Get(ctx, name)
	if err != nil {
		return domain.Role{}, false, apperrors.Wrap(apperrors.DatabaseQueryError, "resolve role from database", err)
	}
	return role, found, nil
}

// fileProvider reads a static JSON array of roles from disk, letting an
// operator define roles without a migration. Absence of the file is not
// an error: it simply has no opinion.
type fileProvider struct{ path string }

func (p fileProvider) Resolve(_ context.Context, name string) (domain.Role, bool, error) {
	if p.path == "" {
		return domain.Role{}, false, nil
	}
	raw, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return domain.Role{}, false, nil
	}
	if err != nil {
		return domain.Role{}, false, apperrors.Wrap(apperrors.InternalServerError, "read roles file", err)
	}

	var fileRoles []domain.Role
	if err := json.Unmarshal(raw, &fileRoles); err != nil {
		return domain.Role{}, false, apperrors.Wrap(apperrors.InternalServerError, "parse roles file", err)
	}
	for _, r := range fileRoles {
		if r.Name == name {
			return r, true, nil
		}
	}
	return domain.Role{}, false, nil
}

type builtinProvider struct{}

func (builtinProvider) Resolve(_ context.Context, name string) (domain.Role, bool, error) {
	for _, r := range BuiltinRoles {
		if r.Name == name {
			return r, true, nil
		}
	}
	return domain.Role{}, false, nil
}
