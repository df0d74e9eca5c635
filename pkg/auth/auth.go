package auth

import (
	"context"
	"net/http"
	"strings"
)

// Identity is the verified result of resolving a session credential.
// It is derived per request and never persisted.
type Identity struct {
	UserID string
	Role   string
}

type contextKey string

const identityContextKey contextKey = "taskgate.identity"

// Verifier resolves an inbound request's headers to an authenticated identity.
// A nil identity with a nil error means "no valid session presented".
type Verifier interface {
	Resolve(ctx context.Context, header http.Header) (*Identity, error)
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v := ctx.Value(identityContextKey)
	if v == nil {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// HasAnyRole reports whether the identity carries at least one of the
// required roles. An empty requirement always passes.
func HasAnyRole(id Identity, required ...string) bool {
	if len(required) == 0 {
		return true
	}
	role := strings.ToLower(strings.TrimSpace(id.Role))
	for _, r := range required {
		if role == strings.ToLower(strings.TrimSpace(r)) {
			return true
		}
	}
	return false
}
