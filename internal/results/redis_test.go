//go:build integration

package results

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	return strings.TrimPrefix(endpoint, "redis://")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := setupRedis(t)
	ctx := context.Background()

	store, err := NewRedisStore(ctx, addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()

	if _, err := store.Load(ctx, Latest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: expected ErrNotFound, got %v", err)
	}

	if err := store.Save(ctx, sampleSet("r1")); err != nil {
		t.Fatalf("Save r1: %v", err)
	}
	if err := store.Save(ctx, sampleSet("r1")); !errors.Is(err, ErrAlreadySaved) {
		t.Fatalf("Save r1 twice: expected ErrAlreadySaved, got %v", err)
	}
	if err := store.Save(ctx, sampleSet("r2")); err != nil {
		t.Fatalf("Save r2: %v", err)
	}

	latest, err := store.Load(ctx, Latest)
	if err != nil {
		t.Fatalf("Load latest: %v", err)
	}
	if latest.Run.ID != "r2" {
		t.Fatalf("latest: got %s want r2", latest.Run.ID)
	}

	r1, err := store.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Load r1: %v", err)
	}
	if len(r1.Results) != 4 {
		t.Fatalf("r1 results: got %d", len(r1.Results))
	}

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing run: expected ErrNotFound, got %v", err)
	}
}

func TestNewRedisStoreValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewRedisStore(ctx, "", "", 0, 0); err == nil {
		t.Fatal("expected error for empty address")
	}
	if _, err := NewRedisStore(ctx, "localhost:6379", "", -1, 0); err == nil {
		t.Fatal("expected error for negative db")
	}
}
