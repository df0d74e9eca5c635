package main

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"taskgate/pkg/auth"
	"taskgate/pkg/httpx"
)

// rateLimitMiddleware throttles per identity, falling back to the remote
// address when no identity is attached. It runs after the guard, so on the
// protected surface the key is effectively always the user id.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.RateLimitEnabled || s.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := "ip:" + remoteIP(r)
		if id, ok := auth.IdentityFromContext(r.Context()); ok {
			key = "user:" + id.UserID
		}
		decision := s.Limiter.Allow(key, s.RateLimitPerMinute)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httpx.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRole gates a handler on the caller's role. The guard has already
// rejected anonymous requests; this only narrows by role.
func (s *Server) withRole(h http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			httpx.Message(w, http.StatusUnauthorized, "Login required")
			return
		}
		if !auth.HasAnyRole(id, roles...) {
			httpx.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		h(w, r)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
