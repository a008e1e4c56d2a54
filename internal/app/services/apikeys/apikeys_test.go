package apikeys

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
)

type memStore struct {
	mu   sync.Mutex
	next int
	keys map[string]domain.APIKey
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[string]domain.APIKey)}
}

func (s *memStore) Insert(ctx context.Context, key domain.APIKey) (domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	key.ID = "key-" + strconv.Itoa(s.next)
	key.CreatedAt = time.Now().UTC()
	s.keys[key.Hash] = key
	return key, nil
}

func (s *memStore) GetByHash(ctx context.Context, hash string) (domain.APIKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[hash]
	return k, ok, nil
}

func (s *memStore) Get(ctx context.Context, id string) (domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id {
			return k, nil
		}
	}
	return domain.APIKey{}, apperrors.New(apperrors.InvalidAPIKey, "not found")
}

func (s *memStore) List(ctx context.Context) ([]domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.APIKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	return out, nil
}

func (s *memStore) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, k := range s.keys {
		if k.ID == id {
			k.RevokedAt = &revokedAt
			s.keys[hash] = k
			return nil
		}
	}
	return apperrors.New(apperrors.InvalidAPIKey, "not found")
}

func (s *memStore) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, k := range s.keys {
		if k.ID == id {
			k.LastUsedAt = &usedAt
			s.keys[hash] = k
			return nil
		}
	}
	return nil
}

func (s *memStore) CountActive(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.keys {
		if k.RevokedAt == nil {
			n++
		}
	}
	return n, nil
}

func TestCreateRequiresName(t *testing.T) {
	svc := New(newMemStore(), []byte("pepper"))
	if _, err := svc.Create(context.Background(), CreateParams{}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestCreateReturnsRawSecretOnce(t *testing.T) {
	svc := New(newMemStore(), []byte("pepper"))
	issued, err := svc.Create(context.Background(), CreateParams{Name: "ci"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if issued.RawSecret == "" {
		t.Fatal("expected a raw secret")
	}
	if issued.Key.Hash == issued.RawSecret {
		t.Fatal("stored hash must not equal the raw secret")
	}
}

func TestAuthenticateAcceptsValidKey(t *testing.T) {
	svc := New(newMemStore(), []byte("pepper"))
	issued, err := svc.Create(context.Background(), CreateParams{Name: "ci"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	key, err := svc.Authenticate(context.Background(), issued.RawSecret)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if key.ID != issued.Key.ID {
		t.Fatalf("expected key id %s, got %s", issued.Key.ID, key.ID)
	}
}

func TestAuthenticateRejectsUnknownKey(t *testing.T) {
	svc := New(newMemStore(), []byte("pepper"))
	if _, err := svc.Authenticate(context.Background(), "pgv_sk_bogus"); err == nil {
		t.Fatal("expected error for unknown key")
	} else if !apperrors.IsKind(err, apperrors.InvalidAPIKey) {
		t.Fatalf("expected InvalidAPIKey, got %v", err)
	}
}

func TestRevokeThenAuthenticateOutsideGraceWindowFails(t *testing.T) {
	svc := New(newMemStore(), []byte("pepper"))
	issued, _ := svc.Create(context.Background(), CreateParams{Name: "ci"})

	fixed := time.Now().UTC()
	svc.now = func() time.Time { return fixed }
	if err := svc.Revoke(context.Background(), issued.Key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	svc.now = func() time.Time { return fixed.Add(domain.RevocationGraceWindow + time.Minute) }
	if _, err := svc.Authenticate(context.Background(), issued.RawSecret); err == nil {
		t.Fatal("expected authentication to fail past the grace window")
	}
}

func TestRevokeWithinGraceWindowStillAuthenticates(t *testing.T) {
	svc := New(newMemStore(), []byte("pepper"))
	issued, _ := svc.Create(context.Background(), CreateParams{Name: "ci"})

	fixed := time.Now().UTC()
	svc.now = func() time.Time { return fixed }
	if err := svc.Revoke(context.Background(), issued.Key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	svc.now = func() time.Time { return fixed.Add(time.Hour) }
	if _, err := svc.Authenticate(context.Background(), issued.RawSecret); err != nil {
		t.Fatalf("expected key to still authenticate within grace window: %v", err)
	}
}

func TestRotateIssuesNewSecretAndRevokesOld(t *testing.T) {
	svc := New(newMemStore(), []byte("pepper"))
	issued, _ := svc.Create(context.Background(), CreateParams{Name: "ci"})

	rotated, err := svc.Rotate(context.Background(), issued.Key.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.RawSecret == issued.RawSecret {
		t.Fatal("expected rotation to mint a new secret")
	}
	if rotated.Key.Name != issued.Key.Name {
		t.Fatalf("expected rotated key to keep name %q, got %q", issued.Key.Name, rotated.Key.Name)
	}

	keys, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var oldRevoked bool
	for _, k := range keys {
		if k.ID == issued.Key.ID && k.RevokedAt != nil {
			oldRevoked = true
		}
	}
	if !oldRevoked {
		t.Fatal("expected original key to be revoked after rotation")
	}
}

func TestCountActiveExcludesRevoked(t *testing.T) {
	svc := New(newMemStore(), []byte("pepper"))
	a, _ := svc.Create(context.Background(), CreateParams{Name: "a"})
	_, _ = svc.Create(context.Background(), CreateParams{Name: "b"})

	if n, err := svc.CountActive(context.Background()); err != nil || n != 2 {
		t.Fatalf("expected 2 active keys, got %d (err=%v)", n, err)
	}

	if err := svc.Revoke(context.Background(), a.Key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if n, err := svc.CountActive(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected 1 active key after revoke, got %d (err=%v)", n, err)
	}
}

func TestDigestIsDeterministicAndPepperDependent(t *testing.T) {
	svcA := New(newMemStore(), []byte("pepper-a"))
	svcB := New(newMemStore(), []byte("pepper-b"))

	if svcA.digest("secret") != svcA.digest("secret") {
		t.Fatal("expected digest to be deterministic for the same service")
	}
	if svcA.digest("secret") == svcB.digest("secret") {
		t.Fatal("expected digest to depend on the pepper")
	}
}
