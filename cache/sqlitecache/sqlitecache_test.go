package sqlitecache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "qa:1", []byte("hello"), time.Hour); err != nil {
		t.Fatal(err)
	}

	data, ok, err := s.Get(ctx, "qa:1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != "hello" {
		t.Errorf("unexpected value: %s", data)
	}

	if _, ok, _ := s.Get(ctx, "qa:2"); ok {
		t.Error("expected cache miss for unknown key")
	}
}

func TestOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("first"), time.Hour)
	_ = s.Set(ctx, "k", []byte("second"), time.Hour)

	data, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(data) != "second" {
		t.Errorf("last writer should win, got %s", data)
	}
}

func TestTTLExpiration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "short", []byte("x"), time.Minute)
	_ = s.Set(ctx, "forever", []byte("y"), 0)

	now = now.Add(2 * time.Minute)

	if _, ok, _ := s.Get(ctx, "short"); ok {
		t.Error("expected cache miss after TTL expiration")
	}
	if _, ok, _ := s.Get(ctx, "forever"); !ok {
		t.Error("zero TTL entries should not expire")
	}

	n, err := s.Purge(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged entry, got %d", n)
	}
}
