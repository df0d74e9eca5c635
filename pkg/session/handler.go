package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"taskgate/pkg/auth"
	"taskgate/pkg/httpx"
)

const minPasswordLength = 8

// Handler exposes the credential endpoints under a single router:
// sign-up, sign-in, sign-out and session introspection.
func (s *Subsystem) Handler() http.Handler {
	return s.handler
}

func (s *Subsystem) routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/sign-up", s.handleSignUp)
	r.Post("/sign-in", s.handleSignIn)
	r.Post("/sign-out", s.handleSignOut)
	r.Get("/session", s.handleGetSession)
	return r
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Subsystem) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		httpx.Error(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = email
	}
	db, err := s.Store(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusServiceUnavailable, "Database not available")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		internalError(w, "hash password", err)
		return
	}
	userID := uuid.NewString()
	if _, err := db.Exec(r.Context(), `
		INSERT INTO users (id, email, name, password_hash, role)
		VALUES ($1,$2,$3,$4,'user')
	`, userID, email, name, string(hash)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			httpx.Error(w, http.StatusConflict, "email already registered")
			return
		}
		internalError(w, "insert user", err)
		return
	}
	signed, expiresAt, err := s.create(r.Context(), db, userID)
	if err != nil {
		internalError(w, "create session", err)
		return
	}
	s.setSessionCookie(w, signed, expiresAt)
	httpx.Success(w, http.StatusCreated, userPayload{ID: userID, Email: email, Name: name, Role: "user"})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Subsystem) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	db, err := s.Store(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusServiceUnavailable, "Database not available")
		return
	}
	var (
		userID       string
		name         string
		role         string
		passwordHash string
	)
	row := db.QueryRow(r.Context(), `
		SELECT id, name, role, password_hash FROM users WHERE email=$1
	`, email)
	if err := row.Scan(&userID, &name, &role, &passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.Message(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		internalError(w, "load user", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		httpx.Message(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	signed, expiresAt, err := s.create(r.Context(), db, userID)
	if err != nil {
		internalError(w, "create session", err)
		return
	}
	s.setSessionCookie(w, signed, expiresAt)
	httpx.Success(w, http.StatusOK, userPayload{ID: userID, Email: email, Name: name, Role: role})
}

func (s *Subsystem) handleSignOut(w http.ResponseWriter, r *http.Request) {
	signed := ""
	if c, err := r.Cookie(auth.CookieName); err == nil {
		signed = c.Value
	}
	if signed != "" {
		db, err := s.Store(r.Context())
		if err != nil {
			httpx.Error(w, http.StatusServiceUnavailable, "Database not available")
			return
		}
		if err := s.revoke(r.Context(), db, signed); err != nil {
			internalError(w, "revoke session", err)
			return
		}
	}
	s.clearSessionCookie(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Subsystem) handleGetSession(w http.ResponseWriter, r *http.Request) {
	identity, err := s.Resolve(r.Context(), r.Header)
	if err != nil {
		httpx.Error(w, http.StatusServiceUnavailable, "Database not available")
		return
	}
	if identity == nil {
		httpx.Message(w, http.StatusUnauthorized, "Login required")
		return
	}
	db, err := s.Store(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusServiceUnavailable, "Database not available")
		return
	}
	var email, name string
	row := db.QueryRow(r.Context(), `SELECT email, name FROM users WHERE id=$1`, identity.UserID)
	if err := row.Scan(&email, &name); err != nil {
		internalError(w, "load user", err)
		return
	}
	httpx.Success(w, http.StatusOK, userPayload{ID: identity.UserID, Email: email, Name: name, Role: identity.Role})
}

func internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("session: %s: %v", op, err)
	httpx.Error(w, http.StatusInternalServerError, "internal error")
}
