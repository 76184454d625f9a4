package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set err=%v", err)
	}
	b, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get=%q,%v,%v want=v,true,nil", b, ok, err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected key to expire")
	}
}

func TestMemoryStoreNoTTLAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("v"), 0)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("expected key without ttl to persist")
	}
	_ = s.Delete(ctx, "k")
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected key deleted")
	}
}

func TestJSONHelpers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	type item struct {
		Price float64 `json:"price"`
	}
	if err := SetJSON(ctx, s, "p", item{Price: 1.25}, time.Minute); err != nil {
		t.Fatalf("SetJSON err=%v", err)
	}
	var got item
	found, err := GetJSON(ctx, s, "p", &got)
	if err != nil || !found || got.Price != 1.25 {
		t.Fatalf("GetJSON=%+v,%v,%v", got, found, err)
	}
	found, err = GetJSON(ctx, nil, "p", &got)
	if err != nil || found {
		t.Fatalf("nil store should miss")
	}
}
