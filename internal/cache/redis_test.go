package cache

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
)

func TestRedisStoreGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := &RedisStore{Client: client, Prefix: "sniper:"}
	ctx := context.Background()

	mock.ExpectGet("sniper:hit").SetVal("payload")
	mock.ExpectGet("sniper:miss").RedisNil()

	b, ok, err := s.Get(ctx, "hit")
	if err != nil || !ok || string(b) != "payload" {
		t.Fatalf("Get(hit)=%q,%v,%v", b, ok, err)
	}
	b, ok, err = s.Get(ctx, "miss")
	if err != nil || ok || b != nil {
		t.Fatalf("Get(miss)=%q,%v,%v want=nil,false,nil", b, ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRedisStoreDelete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := &RedisStore{Client: client}
	mock.ExpectDel("k").SetVal(1)
	if err := s.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("Delete err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
