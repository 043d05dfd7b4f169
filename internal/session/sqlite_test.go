package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath, DefaultMaxAge)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := NewWithID("abc123")
	s.Preferences.Tone = "humorous"
	s.Preferences.Creativity = 0.9
	s.History.AppendPair(UserTurn("hello"), AssistantTurn("hi"), DefaultHistoryLimit)

	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.ID != s.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, s.ID)
	}
	if loaded.Preferences != s.Preferences {
		t.Errorf("Preferences = %+v, want %+v", loaded.Preferences, s.Preferences)
	}
	if loaded.History.Len() != 2 {
		t.Fatalf("History len = %d, want 2", loaded.History.Len())
	}
	if loaded.History[0] != UserTurn("hello") || loaded.History[1] != AssistantTurn("hi") {
		t.Errorf("History = %+v", loaded.History)
	}
	if !loaded.CreatedAt.Equal(s.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, s.CreatedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := NewWithID("s1")
	if err := store.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.History.Append(UserTurn("later"))
	if err := store.Save(ctx, s); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.History.Len() != 1 {
		t.Errorf("History len = %d, want 1", loaded.History.Len())
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, NewWithID("gone")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := store.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	if err := store.Save(ctx, NewWithID("old")); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(time.Hour)
	if err := store.Save(ctx, NewWithID("fresh")); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(DefaultMaxAge - 30*time.Minute)
	n, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh session should survive: %v", err)
	}

	clock = clock.Add(time.Hour)
	if _, err := store.Get(ctx, "fresh"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired Get: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteTouch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	if err := store.Save(ctx, NewWithID("s")); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(20 * time.Hour)
	if err := store.Touch(ctx, "s"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	clock = clock.Add(20 * time.Hour)
	if _, err := store.Get(ctx, "s"); err != nil {
		t.Errorf("touched session expired early: %v", err)
	}
	if err := store.Touch(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Touch missing: err = %v, want ErrNotFound", err)
	}
}

func TestInMemoryDSN(t *testing.T) {
	store, err := NewSQLiteStore(MemoryDSN, DefaultMaxAge)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, NewWithID("m")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "m"); err != nil {
		t.Errorf("Get: %v", err)
	}
}
