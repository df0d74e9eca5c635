package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskgate/pkg/session"
	"taskgate/pkg/store"
)

func TestDepsDBConstructedOnce(t *testing.T) {
	attempts := 0
	d := newDeps(store.NewMemoryCache(), func(ctx context.Context) (apiDB, error) {
		attempts++
		return &fakeAPIDB{}, nil
	}, nil)

	for i := 0; i < 3; i++ {
		if _, err := d.DB(context.Background()); err != nil {
			t.Fatalf("db: %v", err)
		}
	}
	if attempts != 1 {
		t.Fatalf("handle must be cached after success, got %d constructions", attempts)
	}
}

func TestDepsDBRetriesAfterFailure(t *testing.T) {
	attempts := 0
	d := newDeps(store.NewMemoryCache(), func(ctx context.Context) (apiDB, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return &fakeAPIDB{}, nil
	}, nil)

	if _, err := d.DB(context.Background()); err == nil {
		t.Fatal("first attempt must fail")
	}
	db, err := d.DB(context.Background())
	if err != nil || db == nil {
		t.Fatalf("second attempt must succeed, got (%v, %v)", db, err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestDepsDBConcurrentFirstAccess(t *testing.T) {
	attempts := 0
	d := newDeps(store.NewMemoryCache(), func(ctx context.Context) (apiDB, error) {
		attempts++
		time.Sleep(10 * time.Millisecond)
		return &fakeAPIDB{}, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.DB(context.Background()); err != nil {
				t.Errorf("db: %v", err)
			}
		}()
	}
	wg.Wait()
	if attempts != 1 {
		t.Fatalf("concurrent first access must construct once, got %d", attempts)
	}
}

func TestDepsAuthRetriesAfterFailure(t *testing.T) {
	attempts := 0
	cache := store.NewMemoryCache()
	d := newDeps(cache, staticDB(&fakeAPIDB{}), func(d *Deps) (*session.Subsystem, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("AUTH_SECRET is required")
		}
		return session.New(d.sessionStore, d.cache, testSecret, "http://localhost:3000")
	})

	if _, err := d.Auth(context.Background()); err == nil {
		t.Fatal("first attempt must fail")
	}
	sub, err := d.Auth(context.Background())
	if err != nil || sub == nil {
		t.Fatalf("second attempt must succeed, got (%v, %v)", sub, err)
	}
	if _, err := d.Auth(context.Background()); err != nil {
		t.Fatalf("cached subsystem must be reused: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestDepsAuthIndependentOfStore(t *testing.T) {
	d := newDeps(store.NewMemoryCache(), failingDB(errors.New("store down")), func(d *Deps) (*session.Subsystem, error) {
		return session.New(d.sessionStore, d.cache, testSecret, "http://localhost:3000")
	})
	if _, err := d.Auth(context.Background()); err != nil {
		t.Fatalf("auth must construct while the store is down: %v", err)
	}
	if _, err := d.DB(context.Background()); err == nil {
		t.Fatal("store must still be down")
	}
}
