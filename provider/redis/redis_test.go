package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestTransportErrorIsNotAMiss(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	p, err := New(Config{Client: rdb, CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	_, ok, err := p.Get(ctx, "k")
	if err == nil || ok {
		t.Fatalf("expected transport error, got ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Second); err == nil || ok {
		t.Fatalf("expected Set failure, got ok=%v err=%v", ok, err)
	}

	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
