package domain

import "time"

// AuthProvider names how a user authenticated.
type AuthProvider string

const (
	AuthProviderAPIKey AuthProvider = "api_key"
	AuthProviderSAML   AuthProvider = "saml"
)

// APIKey is a hashed credential used by clients and the admin CLI.
type APIKey struct {
	ID         string
	Name       string
	Hash       string
	Prefix     string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
	ExpiresAt  *time.Time
}

// RevocationGraceWindow is how long a revoked key still validates, to let
// callers complete a key rotation without a hard cutover.
const RevocationGraceWindow = 24 * time.Hour

// IsUsable reports whether the key can still authenticate a request as of
// now: not expired, and either not revoked or still inside the grace
// window.
func (k *APIKey) IsUsable(now time.Time) bool {
	if k.ExpiresAt != nil && !now.Before(*k.ExpiresAt) {
		return false
	}
	if k.RevokedAt == nil {
		return true
	}
	return now.Before(k.RevokedAt.Add(RevocationGraceWindow))
}

// Role is a named, permission-bearing access level. The admin role always
// implicitly holds every permission regardless of its stored list.
type Role struct {
	Name        string
	Description string
	Permissions []string
	IsSystem    bool
}

// AdminRoleName is the built-in role that implicitly holds every
// permission, including ones added after the role was defined.
const AdminRoleName = "admin"

// SystemAdminPermission is the catch-all permission that subsumes any
// specific permission check.
const SystemAdminPermission = "system.admin"

// Has reports whether the role carries the given permission, treating the
// admin role as carrying all permissions.
func (r Role) Has(permission string) bool {
	if r.Name == AdminRoleName {
		return true
	}
	for _, p := range r.Permissions {
		if p == permission || p == SystemAdminPermission {
			return true
		}
	}
	return false
}

// User is an authenticated principal: either an API-key client or a SAML
// identity.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	AuthProvider AuthProvider
	APIKeyID     *string
	ClientID     *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// IsAdmin reports whether the user's role name is the admin role. Callers
// needing permission-level checks should consult a RoleProvider instead.
func (u *User) IsAdmin() bool {
	return u.Role == AdminRoleName
}

// SAMLSession is an active SSO session tied to a user.
type SAMLSession struct {
	ID          string
	UserID      string
	NameID      string
	SessionIndex string
	IdPEntityID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	IsActive    bool
}
