package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "luxury_villas/internal/adapters/redis"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	var got []map[string]any
	ok, err := c.Get(ctx, "collection:listings", &got)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	in := []map[string]any{{"id": 1.0, "name": "Villa"}}
	if err := c.Set(ctx, "collection:listings", in, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("villas:collection:listings") {
		t.Fatalf("expected prefixed key in redis")
	}
	if ttl := mr.TTL("villas:collection:listings"); ttl != 0 {
		t.Fatalf("expected no ttl, got %v", ttl)
	}

	ok, err = c.Get(ctx, "collection:listings", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0]["name"] != "Villa" {
		t.Fatalf("unexpected value: %+v", got)
	}

	if err := c.Del(ctx, "collection:listings"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("villas:collection:listings") {
		t.Fatalf("expected key removed")
	}
}

func TestCache_TTL(t *testing.T) {
	c, mr := newCache(t)
	if err := c.Set(context.Background(), "k", 1, 30); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("villas:k"); ttl != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %v", ttl)
	}
}

func TestCache_CorruptValueIsReported(t *testing.T) {
	c, mr := newCache(t)
	if err := mr.Set("villas:collection:listings", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var got []map[string]any
	ok, err := c.Get(context.Background(), "collection:listings", &got)
	if !ok || err == nil {
		t.Fatalf("expected ok=true with decode error, got ok=%v err=%v", ok, err)
	}
}
