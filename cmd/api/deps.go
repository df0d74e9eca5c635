package main

import (
	"context"
	"log"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"taskgate/pkg/auth"
	"taskgate/pkg/session"
	"taskgate/pkg/store"
)

// apiDB is the slice of pgxpool.Pool the service uses.
type apiDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Deps holds the lazily constructed process dependencies. Handles are built
// on first use, cached once construction succeeds, and re-attempted on the
// next request after a failure. A missing backend degrades the endpoints
// that need it; it never takes the process down.
type Deps struct {
	cache store.Cache

	dbMu   sync.Mutex
	db     apiDB
	openDB func(ctx context.Context) (apiDB, error)

	authMu   sync.Mutex
	authSub  *session.Subsystem
	openAuth func(d *Deps) (*session.Subsystem, error)
}

func newDeps(cache store.Cache, openDB func(ctx context.Context) (apiDB, error), openAuth func(d *Deps) (*session.Subsystem, error)) *Deps {
	return &Deps{cache: cache, openDB: openDB, openAuth: openAuth}
}

// DB returns the store handle, constructing it on first use. Concurrent
// first requests serialize on the mutex so only one construction runs.
func (d *Deps) DB(ctx context.Context) (apiDB, error) {
	d.dbMu.Lock()
	defer d.dbMu.Unlock()
	if d.db != nil {
		return d.db, nil
	}
	db, err := d.openDB(ctx)
	if err != nil {
		log.Printf("deps: database unavailable: %v", err)
		return nil, err
	}
	log.Printf("deps: database handle ready")
	d.db = db
	return db, nil
}

// Auth returns the credential subsystem, constructing it on first use.
// Construction needs only configuration, not a live store, so it stays
// available while the store is down.
func (d *Deps) Auth(ctx context.Context) (*session.Subsystem, error) {
	d.authMu.Lock()
	defer d.authMu.Unlock()
	if d.authSub != nil {
		return d.authSub, nil
	}
	sub, err := d.openAuth(d)
	if err != nil {
		log.Printf("deps: auth unavailable: %v", err)
		return nil, err
	}
	log.Printf("deps: auth subsystem ready")
	d.authSub = sub
	return sub, nil
}

// Verifier adapts Auth to the guard's source signature.
func (d *Deps) Verifier(ctx context.Context) (auth.Verifier, error) {
	sub, err := d.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// sessionStore narrows the store handle for the credential subsystem.
func (d *Deps) sessionStore(ctx context.Context) (session.DB, error) {
	db, err := d.DB(ctx)
	if err != nil {
		return nil, err
	}
	return db, nil
}
