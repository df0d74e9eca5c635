// Command api serves the task resource API: a session-gated CRUD surface
// over per-user todos, with a credential subsystem mounted under /auth and
// a small admin surface for operators.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"taskgate/pkg/eventbus"
	"taskgate/pkg/guard"
	"taskgate/pkg/hardening"
	"taskgate/pkg/httpx"
	"taskgate/pkg/metrics"
	"taskgate/pkg/ratelimit"
	"taskgate/pkg/session"
	"taskgate/pkg/store"
	"taskgate/pkg/stream"
	"taskgate/pkg/telemetry"
)

// Server carries the dependencies of the HTTP handlers.
type Server struct {
	Deps    *Deps
	Metrics *metrics.Registry
	Limiter ratelimit.Limiter
	Events  *stream.Hub
	Bus     eventbus.Publisher

	RateLimitEnabled   bool
	RateLimitPerMinute int
	WSAllowedOrigins   []string
}

// Testable variables for main().
var (
	logFatalf = log.Fatalf
	initTrace = telemetry.Init
	openRedis = store.NewRedis
	openPool  = func(ctx context.Context) (apiDB, error) {
		pool, err := store.NewPostgresPool(ctx)
		if err != nil {
			return nil, err
		}
		return pool, nil
	}
	listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runAPI(context.Background()); err != nil {
		logFatalf("api: %v", err)
	}
}

func runAPI(ctx context.Context) error {
	if err := hardening.ValidateProduction(hardening.Options{
		Service:               "api",
		Environment:           env("APP_ENV", "development"),
		StrictProdSecurity:    os.Getenv("STRICT_PROD_SECURITY"),
		DatabaseRequireTLS:    os.Getenv("DATABASE_REQUIRE_TLS"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisRequireTLS:       os.Getenv("REDIS_REQUIRE_TLS"),
		RedisTLSInsecure:      os.Getenv("REDIS_TLS_INSECURE"),
		RedisAllowInsecureTLS: os.Getenv("REDIS_ALLOW_INSECURE_TLS"),
		CORSAllowedOrigins:    os.Getenv("CORS_ALLOWED_ORIGINS"),
		RequiredSecrets: []hardening.EnvRequirement{
			{Name: "AUTH_SECRET", Value: os.Getenv("AUTH_SECRET")},
		},
	}); err != nil {
		return err
	}

	shutdownTrace, err := initTrace(ctx, "taskgate-api")
	if err != nil {
		return err
	}
	defer shutdownTrace(context.Background())

	// Missing credential config is visible at startup even though the
	// subsystem is only constructed on first use.
	if os.Getenv("AUTH_SECRET") == "" {
		log.Printf("api: AUTH_SECRET is not set; credential subsystem will be unavailable")
	}
	if os.Getenv("APP_URL") == "" {
		log.Printf("api: APP_URL is not set; credential subsystem will be unavailable")
	}

	var redisClient *redis.Client
	if c, err := openRedis(ctx); err != nil {
		log.Printf("api: redis unavailable, using in-memory cache: %v", err)
	} else {
		redisClient = c
	}
	cache := store.NewCache(ctx, redisClient)

	deps := newDeps(cache, openPool, func(d *Deps) (*session.Subsystem, error) {
		return session.New(d.sessionStore, d.cache, os.Getenv("AUTH_SECRET"), os.Getenv("APP_URL"))
	})

	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewRedis(redisClient, time.Minute)
	} else {
		limiter = ratelimit.NewInMemory(time.Minute)
	}

	srv := &Server{
		Deps:               deps,
		Metrics:            metrics.NewRegistry(),
		Limiter:            limiter,
		Events:             stream.NewHub(),
		RateLimitEnabled:   env("RATE_LIMIT_ENABLED", "true") == "true",
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 120),
		WSAllowedOrigins:   splitCSV(env("WS_ALLOWED_ORIGINS", "")),
	}

	if bus, err := eventbus.NewFromEnv(); err != nil {
		log.Printf("api: event bus disabled: %v", err)
	} else if bus != nil {
		defer bus.Close()
		srv.Bus = bus
	}

	addr := env("API_ADDR", ":8080")
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // streaming endpoints manage their own deadlines
		IdleTimeout:       120 * time.Second,
	}
	log.Printf("api: listening on %s", addr)
	return listenAndServe(httpSrv)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.CORSMiddleware(env("CORS_ALLOWED_ORIGINS", "")))
	r.Use(httpx.SecurityHeadersMiddleware)
	r.Use(telemetry.HTTPMiddleware("taskgate-api"))
	r.Use(maxBodyMiddleware(envInt("MAX_BODY_BYTES", 1<<20)))
	r.Use(s.Metrics.Middleware)
	r.Use(guard.Middleware(s.Deps.Verifier))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/openapi", s.handleOpenAPI)
	r.Get("/docs", s.handleDocs)

	r.Mount("/auth", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.Deps.Auth(r.Context())
		if err != nil {
			httpx.Message(w, http.StatusServiceUnavailable, "Auth not available")
			return
		}
		sub.Handler().ServeHTTP(w, r)
	}))

	r.Route("/todos", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Get("/", s.handleListTodos)
		r.Post("/", s.handleCreateTodo)
		r.Get("/stream", s.handleStreamTodos)
		r.Put("/{id}", s.handleReplaceTodo)
		r.Patch("/{id}", s.handlePatchTodo)
		r.Delete("/{id}", s.handleDeleteTodo)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Get("/user-count", s.withRole(s.handleUserCount, "admin"))
		r.Get("/activity", s.withRole(s.handleActivity, "admin"))
		r.Get("/metrics", s.withRole(s.handleMetrics, "admin"))
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"service": "taskgate",
		"docs":    "/docs",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func maxBodyMiddleware(limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, int64(limit))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
