package httpapi

import (
	"context"

	"github.com/docuindex/engine/internal/app/domain"
)

type contextKey string

const (
	ctxCallerID contextKey = "caller_id"
	ctxCaller   contextKey = "caller"
)

func withCaller(ctx context.Context, user domain.User) context.Context {
	ctx = context.WithValue(ctx, ctxCaller, user)
	return context.WithValue(ctx, ctxCallerID, user.ID)
}

func callerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxCallerID).(string)
	return id
}

// buildCallerFromKey synthesizes a principal for an authenticated API key.
// API keys are a flat bearer credential, not a full user record, so the
// role comes from whatever the caller was provisioned with; admin keys are
// expected to be named accordingly and granted the admin role out of band
// through the roles file or database.
func buildCallerFromKey(key domain.APIKey, roleName, clientID string) domain.User {
	user := domain.User{
		ID:           key.ID,
		DisplayName:  key.Name,
		Role:         roleName,
		AuthProvider: domain.AuthProviderAPIKey,
		APIKeyID:     &key.ID,
		IsActive:     true,
	}
	if clientID != "" {
		user.ClientID = &clientID
	}
	return user
}

func callerIsAdmin(ctx context.Context) bool {
	user, ok := ctx.Value(ctxCaller).(domain.User)
	if !ok {
		return false
	}
	return user.IsAdmin()
}
