// Package guard classifies inbound paths and enforces session identity
// before any handler runs. Classification is prefix-based with public and
// auth prefixes checked first; anything unmatched is Protected, so a new
// route added without thought is gated, not exposed.
package guard

import (
	"context"
	"log"
	"net/http"
	"strings"

	"taskgate/pkg/auth"
	"taskgate/pkg/httpx"
)

type Classification int

const (
	Public Classification = iota
	AuthSubsystem
	Protected
)

func (c Classification) String() string {
	switch c {
	case Public:
		return "public"
	case AuthSubsystem:
		return "auth"
	default:
		return "protected"
	}
}

var publicPaths = map[string]struct{}{
	"/":        {},
	"/health":  {},
	"/openapi": {},
	"/docs":    {},
}

const authPrefix = "/auth"

// Classify decides how a path is dispatched. Unmatched paths default to
// Protected.
func Classify(path string) Classification {
	if _, ok := publicPaths[path]; ok {
		return Public
	}
	if path == authPrefix || strings.HasPrefix(path, authPrefix+"/") {
		return AuthSubsystem
	}
	return Protected
}

// VerifierSource hands out the session verifier handle, or an error when the
// credential subsystem could not be constructed.
type VerifierSource func(ctx context.Context) (auth.Verifier, error)

// Middleware rejects Protected requests that carry no resolvable identity.
// Public and AuthSubsystem paths pass through with no verifier call. On
// success the identity is attached to the request context; handlers never
// see an unauthenticated Protected request.
func Middleware(source VerifierSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch Classify(r.URL.Path) {
			case Public, AuthSubsystem:
				next.ServeHTTP(w, r)
				return
			}
			verifier, err := source(r.Context())
			if err != nil {
				httpx.Message(w, http.StatusServiceUnavailable, "Auth not available")
				return
			}
			identity, err := verifier.Resolve(r.Context(), r.Header)
			if err != nil {
				// A verifier fault is indistinguishable from "no session".
				log.Printf("guard: session resolution failed: %v", err)
				identity = nil
			}
			if identity == nil {
				httpx.Message(w, http.StatusUnauthorized, "Login required")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), *identity)))
		})
	}
}
