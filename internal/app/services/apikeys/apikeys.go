// Package apikeys issues, verifies, and revokes the hashed bearer
// credentials used by clients and the admin CLI.
package apikeys

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/storage"
	"golang.org/x/crypto/blake2b"
)

// secretBytes is the amount of randomness in the generated key material,
// before hex-encoding.
const secretBytes = 32

// Service issues and validates API keys. Keys are never stored in
// plaintext: a deterministic, peppered digest is stored instead, so
// lookup-by-presented-key stays a single indexed equality query.
type Service struct {
	store  storage.APIKeyStore
	pepper []byte
	now    func() time.Time
}

// New builds the API key service. pepper is a server-side secret mixed
// into every digest so a stolen database dump alone cannot be used to
// forge valid Authorization headers.
func New(store storage.APIKeyStore, pepper []byte) *Service {
	return &Service{store: store, pepper: pepper, now: time.Now}
}

// Issued is returned once, at creation time, and carries the only copy of
// the raw secret the caller will ever see.
type Issued struct {
	Key       domain.APIKey
	RawSecret string
}

// CreateParams carries the fields accepted by Create.
type CreateParams struct {
	Name      string
	Prefix    string
	ExpiresAt *time.Time
}

// Create generates a new random secret, stores only its digest, and
// returns the plaintext secret to the caller exactly once.
func (s *Service) Create(ctx context.Context, p CreateParams) (Issued, error) {
	if p.Name == "" {
		return Issued{}, apperrors.New(apperrors.PathValidationFailed, "name is required")
	}
	prefix := p.Prefix
	if prefix == "" {
		prefix = "pgv_sk_"
	}

	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return Issued{}, apperrors.Wrap(apperrors.InternalServerError, "generate api key secret", err)
	}
	secret := prefix + hex.EncodeToString(raw)

	key := domain.APIKey{
		Name:      p.Name,
		Hash:      s.digest(secret),
		Prefix:    prefix,
		ExpiresAt: p.ExpiresAt,
	}
	inserted, err := s.store.Insert(ctx, key)
	if err != nil {
		return Issued{}, apperrors.Wrap(apperrors.DatabaseQueryError, "insert api key", err)
	}
	return Issued{Key: inserted, RawSecret: secret}, nil
}

// Authenticate looks up the key by the digest of the presented secret and
// validates it is still usable (not expired, not past its revocation
// grace window), bumping last_used_at on success.
func (s *Service) Authenticate(ctx context.Context, presented string) (domain.APIKey, error) {
	key, found, err := s.store.GetByHash(ctx, s.digest(presented))
	if err != nil {
		return domain.APIKey{}, apperrors.Wrap(apperrors.DatabaseQueryError, "lookup api key", err)
	}
	if !found {
		return domain.APIKey{}, apperrors.New(apperrors.InvalidAPIKey, "unknown api key")
	}
	if !key.IsUsable(s.now().UTC()) {
		return domain.APIKey{}, apperrors.New(apperrors.InvalidAPIKey, "api key expired or revoked")
	}
	if err := s.store.TouchLastUsed(ctx, key.ID, s.now().UTC()); err != nil {
		return domain.APIKey{}, apperrors.Wrap(apperrors.DatabaseQueryError, "touch api key last used", err)
	}
	return key, nil
}

// List returns every key, including revoked ones, for admin listing.
func (s *Service) List(ctx context.Context) ([]domain.APIKey, error) {
	return s.store.List(ctx)
}

// Revoke marks a key revoked; it remains usable for RevocationGraceWindow
// to let an in-flight rotation complete.
func (s *Service) Revoke(ctx context.Context, id string) error {
	return s.store.Revoke(ctx, id, s.now().UTC())
}

// Rotate revokes id (starting its grace window) and issues a replacement
// under the same name.
func (s *Service) Rotate(ctx context.Context, id string) (Issued, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return Issued{}, apperrors.Wrap(apperrors.DatabaseQueryError, "get api key", err)
	}
	if err := s.Revoke(ctx, id); err != nil {
		return Issued{}, err
	}
	return s.Create(ctx, CreateParams{Name: existing.Name, Prefix: existing.Prefix})
}

// CountActive reports the number of non-revoked keys, used for onboarding
// gates and demo-mode checks.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.store.CountActive(ctx)
}

// digest computes a deterministic, peppered BLAKE2b-256 hash of the
// presented secret.
func (s *Service) digest(secret string) string {
	sum := blake2b.Sum256(append(append([]byte{}, s.pepper...), secret...))
	return hex.EncodeToString(sum[:])
}
