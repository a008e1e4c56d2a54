package virtualroots

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
)

type memStore struct {
	mu    sync.Mutex
	next  int
	roots []domain.VirtualRoot
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) Upsert(ctx context.Context, vr domain.VirtualRoot) (domain.VirtualRoot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	vr.ID = "vroot-" + strconv.Itoa(s.next)
	s.roots = append(s.roots, vr)
	return vr, nil
}

func (s *memStore) ListForClient(ctx context.Context, clientID string) ([]domain.VirtualRoot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VirtualRoot
	for _, r := range s.roots {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Resolve(ctx context.Context, name, clientID string) (domain.VirtualRoot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roots {
		if r.Name == name && r.ClientID == clientID {
			return r, true, nil
		}
	}
	return domain.VirtualRoot{}, false, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.roots {
		if r.ID == id {
			s.roots = append(s.roots[:i], s.roots[i+1:]...)
			return nil
		}
	}
	return apperrors.New(apperrors.VirtualRootNotFound, "not found")
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	svc := New(newMemStore())
	cases := []RegisterParams{
		{ClientID: "c1", LocalPath: "/x"},
		{Name: "n1", LocalPath: "/x"},
		{Name: "n1", ClientID: "c1"},
	}
	for _, p := range cases {
		if _, err := svc.Register(context.Background(), p); err == nil {
			t.Fatalf("expected error for incomplete params %+v", p)
		}
	}
}

func TestRegisterThenResolve(t *testing.T) {
	svc := New(newMemStore())
	registered, err := svc.Register(context.Background(), RegisterParams{
		Name: "shared", ClientID: "client-1", LocalPath: "/srv/shared",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.ID == "" {
		t.Fatal("expected a generated ID")
	}

	resolved, found, err := svc.Resolve(context.Background(), "shared", "client-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found {
		t.Fatal("expected virtual root to resolve")
	}
	if resolved.LocalPath != "/srv/shared" {
		t.Fatalf("expected local path /srv/shared, got %q", resolved.LocalPath)
	}
}

func TestResolveMissingReturnsNotFoundFalse(t *testing.T) {
	svc := New(newMemStore())
	_, found, err := svc.Resolve(context.Background(), "nope", "client-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if found {
		t.Fatal("expected found to be false for an unregistered name")
	}
}

func TestListForClientScopesByClient(t *testing.T) {
	svc := New(newMemStore())
	_, _ = svc.Register(context.Background(), RegisterParams{Name: "a", ClientID: "client-1", LocalPath: "/a"})
	_, _ = svc.Register(context.Background(), RegisterParams{Name: "b", ClientID: "client-2", LocalPath: "/b"})

	roots, err := svc.ListForClient(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(roots) != 1 || roots[0].Name != "a" {
		t.Fatalf("expected only client-1's root, got %+v", roots)
	}
}

func TestRemoveDeletesRegistration(t *testing.T) {
	svc := New(newMemStore())
	registered, _ := svc.Register(context.Background(), RegisterParams{Name: "a", ClientID: "client-1", LocalPath: "/a"})

	if err := svc.Remove(context.Background(), registered.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, found, err := svc.Resolve(context.Background(), "a", "client-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if found {
		t.Fatal("expected root to be gone after removal")
	}
}
