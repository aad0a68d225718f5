package idempotency

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestPostgresStoreLifecycle(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	key := "test-key"
	rec := Replay{
		Status:    202,
		Body:      []byte(`{"id":"0xabc","kind":"bundle"}`),
		StoredAt:  time.Now().UTC(),
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	}

	if err := store.Remember(ctx, key, rec); err != nil {
		t.Fatalf("remember: %v", err)
	}

	got, err := store.Lookup(ctx, key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || got.Status != rec.Status {
		t.Fatalf("unexpected replay: %#v", got)
	}
}
