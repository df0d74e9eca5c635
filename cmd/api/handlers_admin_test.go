package main

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestAdminRequiresAdminRole(t *testing.T) {
	srv := newTestServer(t, staticDB(&fakeAPIDB{}))
	h := srv.routes()
	cookie := seedSession(t, srv, "u-1", "user")
	for _, path := range []string{"/admin/user-count", "/admin/activity", "/admin/metrics"} {
		rec := doRequest(t, h, http.MethodGet, path, "", cookie)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestAdminAnonymous(t *testing.T) {
	srv := newTestServer(t, staticDB(&fakeAPIDB{}))
	rec := doRequest(t, srv.routes(), http.MethodGet, "/admin/user-count", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminUserCount(t *testing.T) {
	db := &fakeAPIDB{queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
		if !strings.Contains(sql, "count(*) FROM users") {
			t.Fatalf("unexpected sql: %s", sql)
		}
		return fakeAPIRow{values: []any{int64(42)}}
	}}
	srv := newTestServer(t, staticDB(db))
	cookie := seedSession(t, srv, "admin-1", "admin")

	rec := doRequest(t, srv.routes(), http.MethodGet, "/admin/user-count", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if m := decodeMap(t, rec.Body.String()); m["totalUsers"].(float64) != 42 {
		t.Fatalf("body = %v", m)
	}
}

func TestAdminActivity(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	db := &fakeAPIDB{queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		return &fakeAPIRows{rows: [][]any{
			{int64(2), "u-1", "todo.deleted", int64(7), now},
			{int64(1), "u-1", "todo.created", int64(7), now.Add(-time.Minute)},
		}}, nil
	}}
	srv := newTestServer(t, staticDB(db))
	cookie := seedSession(t, srv, "admin-1", "admin")

	rec := doRequest(t, srv.routes(), http.MethodGet, "/admin/activity?limit=10", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "[") {
		t.Fatalf("activity must be a bare array: %s", rec.Body.String())
	}
}

func TestAdminActivityBadLimit(t *testing.T) {
	srv := newTestServer(t, staticDB(&fakeAPIDB{}))
	cookie := seedSession(t, srv, "admin-1", "admin")
	rec := doRequest(t, srv.routes(), http.MethodGet, "/admin/activity?limit=zero", "", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminMetricsSnapshot(t *testing.T) {
	srv := newTestServer(t, staticDB(&fakeAPIDB{}))
	h := srv.routes()
	cookie := seedSession(t, srv, "admin-1", "admin")

	// Generate one observation first.
	doRequest(t, h, http.MethodGet, "/health", "", "")

	rec := doRequest(t, h, http.MethodGet, "/admin/metrics", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	m := decodeMap(t, rec.Body.String())
	endpoints := m["endpoints"].(map[string]any)
	if _, ok := endpoints["GET /health"]; !ok {
		t.Fatalf("endpoints = %v", endpoints)
	}
}

func TestRateLimitEnforced(t *testing.T) {
	srv := newTestServer(t, staticDB(&fakeAPIDB{}))
	srv.RateLimitEnabled = true
	srv.RateLimitPerMinute = 1
	h := srv.routes()
	cookie := seedSession(t, srv, "u-1", "user")

	if rec := doRequest(t, h, http.MethodGet, "/todos", "", cookie); rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec := doRequest(t, h, http.MethodGet, "/todos", "", cookie)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}

	// Another identity has its own budget.
	other := seedSession(t, srv, "u-2", "user")
	if rec := doRequest(t, h, http.MethodGet, "/todos", "", other); rec.Code != http.StatusOK {
		t.Fatalf("other identity: %d", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	srv := newTestServer(t, staticDB(&fakeAPIDB{}))
	srv.RateLimitEnabled = false
	srv.RateLimitPerMinute = 1
	h := srv.routes()
	cookie := seedSession(t, srv, "u-1", "user")
	for i := 0; i < 5; i++ {
		if rec := doRequest(t, h, http.MethodGet, "/todos", "", cookie); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i+1, rec.Code)
		}
	}
}
