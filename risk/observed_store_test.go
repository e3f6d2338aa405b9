package risk

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestObservedStore(t *testing.T) (*RedisObservedStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewRedisObservedStore(rdb), mr
}

func TestRedisObservedStore_GetOnFirstEvaluationIsNil(t *testing.T) {
	store, _ := newTestObservedStore(t)

	obs, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if obs != nil {
		t.Fatalf("expected nil on first evaluation, got %+v", obs)
	}
}

func TestRedisObservedStore_SetThenGetRoundTrips(t *testing.T) {
	store, _ := newTestObservedStore(t)
	ctx := context.Background()

	want := Observed{IP: "1.1.1.1", UserAgent: "curl/8.0", Geo: "US"}
	if err := store.Set(ctx, "s1", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestRedisObservedStore_SetOverwritesPrevious(t *testing.T) {
	store, _ := newTestObservedStore(t)
	ctx := context.Background()

	store.Set(ctx, "s1", Observed{IP: "1.1.1.1"})
	store.Set(ctx, "s1", Observed{IP: "2.2.2.2"})

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.IP != "2.2.2.2" {
		t.Fatalf("expected overwritten IP, got %+v", got)
	}
}
