package roles

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/docuindex/engine/internal/app/domain"
)

type memRoleStore struct {
	roles map[string]domain.Role
}

func (s memRoleStore) Get(ctx context.Context, name string) (domain.Role, bool, error) {
	r, ok := s.roles[name]
	return r, ok, nil
}

func (s memRoleStore) List(ctx context.Context) ([]domain.Role, error) {
	out := make([]domain.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s memRoleStore) Upsert(ctx context.Context, role domain.Role) (domain.Role, error) {
	s.roles[role.Name] = role
	return role, nil
}

func TestStackResolvesBuiltinRoleWhenNothingElseKnowsIt(t *testing.T) {
	stack := NewStack(memRoleStore{roles: map[string]domain.Role{}}, "")

	role, found, err := stack.Resolve(context.Background(), "viewer")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found {
		t.Fatal("expected the built-in viewer role to resolve")
	}
	if role.Description == "" {
		t.Fatal("expected built-in role to carry a description")
	}
}

func TestStackPrefersDatabaseOverBuiltin(t *testing.T) {
	custom := domain.Role{Name: "viewer", Description: "overridden", Permissions: []string{"documents.read", "extra.permission"}}
	stack := NewStack(memRoleStore{roles: map[string]domain.Role{"viewer": custom}}, "")

	role, found, err := stack.Resolve(context.Background(), "viewer")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found || role.Description != "overridden" {
		t.Fatalf("expected database role to win, got %+v", role)
	}
}

func TestStackFallsThroughToFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.json")
	fileRoles := []domain.Role{{Name: "editor", Description: "file-defined", Permissions: []string{"documents.write"}}}
	raw, _ := json.Marshal(fileRoles)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write roles file: %v", err)
	}

	stack := NewStack(memRoleStore{roles: map[string]domain.Role{}}, path)
	role, found, err := stack.Resolve(context.Background(), "editor")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found || role.Description != "file-defined" {
		t.Fatalf("expected file-provider role, got %+v", role)
	}
}

func TestStackResolveUnknownRoleNotFound(t *testing.T) {
	stack := NewStack(memRoleStore{roles: map[string]domain.Role{}}, "")
	_, found, err := stack.Resolve(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if found {
		t.Fatal("expected unknown role to not be found")
	}
}

func TestStackHasChecksPermission(t *testing.T) {
	stack := NewStack(memRoleStore{roles: map[string]domain.Role{}}, "")

	ok, err := stack.Has(context.Background(), "viewer", "documents.read")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !ok {
		t.Fatal("expected viewer to have documents.read")
	}

	ok, err = stack.Has(context.Background(), "viewer", "documents.write")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if ok {
		t.Fatal("expected viewer to lack documents.write")
	}
}

func TestStackHasAdminCatchAll(t *testing.T) {
	stack := NewStack(memRoleStore{roles: map[string]domain.Role{}}, "")
	ok, err := stack.Has(context.Background(), domain.AdminRoleName, "anything.at.all")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !ok {
		t.Fatal("expected admin role to implicitly carry every permission")
	}
}

func TestFileProviderMissingFileIsNotAnError(t *testing.T) {
	stack := NewStack(memRoleStore{roles: map[string]domain.Role{}}, filepath.Join(t.TempDir(), "missing.json"))
	_, found, err := stack.Resolve(context.Background(), "editor")
	if err != nil {
		t.Fatalf("expected missing roles file to be treated as no opinion, got error: %v", err)
	}
	if found {
		t.Fatal("expected no role to resolve when the file is absent")
	}
}
