package bigcache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), Config{LifeWindow: time.Minute, Shards: 16, MaxEntriesInWindow: 128})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	if _, ok, err := p.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	ok, err := p.Set(ctx, "k", []byte{1, 2, 3}, 3, time.Second)
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	got, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("Get: %v %v %v", got, ok, err)
	}
	if p.Len() != 1 {
		t.Fatalf("Len = %d", p.Len())
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del of missing key: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestNewRejectsZeroLifeWindow(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
