package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskgate/pkg/auth"
	"taskgate/pkg/metrics"
	"taskgate/pkg/ratelimit"
	"taskgate/pkg/session"
	"taskgate/pkg/store"
	"taskgate/pkg/stream"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, openDB func(ctx context.Context) (apiDB, error)) *Server {
	t.Helper()
	cache := store.NewMemoryCache()
	deps := newDeps(cache, openDB, func(d *Deps) (*session.Subsystem, error) {
		return session.New(d.sessionStore, d.cache, testSecret, "http://localhost:3000")
	})
	return &Server{
		Deps:               deps,
		Metrics:            metrics.NewRegistry(),
		Limiter:            ratelimit.NewInMemory(time.Minute),
		Events:             stream.NewHub(),
		RateLimitEnabled:   false,
		RateLimitPerMinute: 100,
	}
}

func staticDB(db apiDB) func(ctx context.Context) (apiDB, error) {
	return func(ctx context.Context) (apiDB, error) { return db, nil }
}

func failingDB(err error) func(ctx context.Context) (apiDB, error) {
	return func(ctx context.Context) (apiDB, error) { return nil, err }
}

// seedSession plants a resolvable session in the verifier cache and returns
// the signed cookie value. The cache-first resolve path means no store
// access is needed to authenticate.
func seedSession(t *testing.T, srv *Server, userID, role string) string {
	t.Helper()
	token := "tok-" + userID
	payload := fmt.Sprintf(`{"user_id":%q,"role":%q,"expires_at":%q}`,
		userID, role, time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano))
	if err := srv.Deps.cache.Set(context.Background(), "sess:"+token, payload, time.Hour); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return auth.SignToken(token, testSecret)
}

func doRequest(t *testing.T, h http.Handler, method, path, body, signedCookie string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if signedCookie != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: signedCookie})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
