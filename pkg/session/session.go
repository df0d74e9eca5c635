// Package session is the credential subsystem: it issues sessions on
// sign-in, revokes them on sign-out, and resolves inbound session tokens to
// identities. Sessions live in Postgres with a short Redis cache in front;
// the client holds only an HMAC-signed token cookie.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"taskgate/pkg/auth"
	"taskgate/pkg/store"
)

// DB is the slice of the store this subsystem needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBSource hands out the store handle per call. The handle is lazy on the
// caller's side, so the subsystem can outlive a store that was down when it
// was constructed.
type DBSource func(ctx context.Context) (DB, error)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	defaultCacheTTL   = 5 * time.Minute
	cacheKeyPrefix    = "sess:"
)

// Subsystem bundles issuance, revocation and resolution around one secret.
// It satisfies auth.Verifier so the route guard can use it directly.
type Subsystem struct {
	Store      DBSource
	Cache      store.Cache
	Secret     string
	BaseURL    string
	SessionTTL time.Duration
	CacheTTL   time.Duration

	handler http.Handler
}

// New validates the mandatory configuration. A missing secret or base URL
// is a construction failure the caller degrades on, never a panic.
func New(dbSource DBSource, cache store.Cache, secret, baseURL string) (*Subsystem, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("AUTH_SECRET is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("APP_URL is required")
	}
	s := &Subsystem{
		Store:      dbSource,
		Cache:      cache,
		Secret:     secret,
		BaseURL:    baseURL,
		SessionTTL: defaultSessionTTL,
		CacheTTL:   defaultCacheTTL,
	}
	s.handler = s.routes()
	return s, nil
}

type cachedSession struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Resolve implements auth.Verifier. A request without a credential, with a
// bad signature, or with an expired session resolves to (nil, nil); only
// store faults surface as errors. The cache is consulted before the store,
// so a cached session keeps resolving while the store is down.
func (s *Subsystem) Resolve(ctx context.Context, header http.Header) (*auth.Identity, error) {
	signed := auth.TokenFromHeader(header)
	if signed == "" {
		return nil, nil
	}
	token, err := auth.VerifyToken(signed, s.Secret)
	if err != nil {
		return nil, nil
	}
	now := time.Now().UTC()
	if s.Cache != nil {
		if raw, err := s.Cache.Get(ctx, cacheKeyPrefix+token); err == nil {
			var cached cachedSession
			if json.Unmarshal([]byte(raw), &cached) == nil && now.Before(cached.ExpiresAt) {
				return &auth.Identity{UserID: cached.UserID, Role: cached.Role}, nil
			}
		}
	}
	db, err := s.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("session store unavailable: %w", err)
	}
	var (
		userID    string
		role      string
		expiresAt time.Time
	)
	row := db.QueryRow(ctx, `
		SELECT s.user_id, u.role, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token=$1
	`, token)
	if err := row.Scan(&userID, &role, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if !now.Before(expiresAt) {
		_, _ = db.Exec(ctx, `DELETE FROM sessions WHERE token=$1`, token)
		if s.Cache != nil {
			_ = s.Cache.Del(ctx, cacheKeyPrefix+token)
		}
		return nil, nil
	}
	if s.Cache != nil {
		ttl := s.CacheTTL
		if remaining := expiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
		if raw, err := json.Marshal(cachedSession{UserID: userID, Role: role, ExpiresAt: expiresAt}); err == nil {
			_ = s.Cache.Set(ctx, cacheKeyPrefix+token, string(raw), ttl)
		}
	}
	return &auth.Identity{UserID: userID, Role: role}, nil
}

// create persists a fresh session and returns the signed token the client
// will hold.
func (s *Subsystem) create(ctx context.Context, db DB, userID string) (signed string, expiresAt time.Time, err error) {
	token := uuid.NewString()
	expiresAt = time.Now().UTC().Add(s.SessionTTL)
	if _, err = db.Exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1,$2,$3)
	`, token, userID, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}
	return auth.SignToken(token, s.Secret), expiresAt, nil
}

// revoke removes a session given the signed client token.
func (s *Subsystem) revoke(ctx context.Context, db DB, signed string) error {
	token, err := auth.VerifyToken(signed, s.Secret)
	if err != nil {
		return nil
	}
	if _, err := db.Exec(ctx, `DELETE FROM sessions WHERE token=$1`, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if s.Cache != nil {
		_ = s.Cache.Del(ctx, cacheKeyPrefix+token)
	}
	return nil
}

func (s *Subsystem) secureCookies() bool {
	return strings.HasPrefix(strings.ToLower(s.BaseURL), "https://")
}

func (s *Subsystem) setSessionCookie(w http.ResponseWriter, signed string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Subsystem) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}
