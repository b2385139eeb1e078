package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestItemCache(t *testing.T, ttl time.Duration) (*ItemCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return NewItemCache(rc, ttl), mr
}

func TestItemCache_SetGetDelete(t *testing.T) {
	c, mr := newTestItemCache(t, time.Hour)
	ctx := context.Background()

	if _, err := c.Get(ctx, "1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
	if err := c.Set(ctx, "1", []byte(`{"id":"1"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "1")
	if err != nil || string(got) != `{"id":"1"}` {
		t.Fatalf("Get = %s, %v", got, err)
	}
	if ttl := mr.TTL(Key("1")); ttl != time.Hour {
		t.Errorf("ttl = %s, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := c.Get(ctx, "1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after expiry, got %v", err)
	}

	_ = c.Set(ctx, "1", []byte(`{}`))
	if err := c.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists(Key("1")) {
		t.Fatal("entry survived Delete")
	}
}

func TestItemCache_InvalidateBumpsGeneration(t *testing.T) {
	c, mr := newTestItemCache(t, time.Hour)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "7")
	if err != nil || gen != 0 {
		t.Fatalf("Generation = %d, %v; want 0", gen, err)
	}

	_ = c.Set(ctx, "7", []byte(`{}`))
	for want := int64(1); want <= 2; want++ {
		if err := c.Invalidate(ctx, "7"); err != nil {
			t.Fatalf("Invalidate: %v", err)
		}
		if gen, _ := c.Generation(ctx, "7"); gen != want {
			t.Fatalf("generation = %d, want %d", gen, want)
		}
	}
	if mr.Exists(Key("7")) {
		t.Fatal("Invalidate must evict the entry")
	}
	if mr.TTL(GenKey("7")) <= 0 {
		t.Fatal("generation key must expire")
	}
}

func TestItemCache_SetIfCurrent(t *testing.T) {
	tests := []struct {
		name       string
		invalidate bool
		wantStored bool
	}{
		{name: "generation unchanged", wantStored: true},
		{name: "written in between", invalidate: true, wantStored: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mr := newTestItemCache(t, time.Hour)
			ctx := context.Background()

			gen, err := c.Generation(ctx, "3")
			if err != nil {
				t.Fatalf("Generation: %v", err)
			}
			if tt.invalidate {
				if err := c.Invalidate(ctx, "3"); err != nil {
					t.Fatalf("Invalidate: %v", err)
				}
			}

			stored, err := c.SetIfCurrent(ctx, "3", gen, []byte(`{"id":"3"}`))
			if err != nil {
				t.Fatalf("SetIfCurrent: %v", err)
			}
			if stored != tt.wantStored {
				t.Fatalf("stored = %v, want %v", stored, tt.wantStored)
			}
			if mr.Exists(Key("3")) != tt.wantStored {
				t.Fatalf("entry present = %v, want %v", mr.Exists(Key("3")), tt.wantStored)
			}
		})
	}
}

func TestItemCache_Unreachable(t *testing.T) {
	c, mr := newTestItemCache(t, time.Hour)
	mr.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, "1"); err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if _, err := c.Generation(ctx, "1"); err == nil {
		t.Fatal("expected Generation error")
	}
	if stored, err := c.SetIfCurrent(ctx, "1", 0, []byte(`{}`)); err == nil || stored {
		t.Fatalf("SetIfCurrent = %v, %v; want error", stored, err)
	}
}
