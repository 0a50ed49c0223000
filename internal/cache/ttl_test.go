package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestTTLExpiry(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	c := NewTTL(time.Minute)
	c.now = func() time.Time { return clock }

	if _, ok := c.Get(); ok {
		t.Fatal("expected empty cache")
	}

	c.Set("snapshot")
	if value, ok := c.Get(); !ok || value != "snapshot" {
		t.Fatalf("get = %v, %v", value, ok)
	}

	clock = clock.Add(61 * time.Second)
	if _, ok := c.Get(); ok {
		t.Fatal("expected expired value")
	}
}

func TestTTLInvalidate(t *testing.T) {
	c := NewTTL(time.Hour)
	c.Set(42)
	c.Invalidate()
	if _, ok := c.Get(); ok {
		t.Fatal("expected invalidated cache")
	}
}

func TestTTLDoMemoizes(t *testing.T) {
	c := NewTTL(time.Hour)
	computes := 0
	fetch := func() (any, error) {
		computes++
		return computes, nil
	}

	for i := 0; i < 3; i++ {
		value, err := c.Do(fetch)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		if value != 1 {
			t.Fatalf("value = %v, want 1", value)
		}
	}
	if computes != 1 {
		t.Fatalf("computes = %d, want 1", computes)
	}
}

func TestTTLDoErrorNotMemoized(t *testing.T) {
	c := NewTTL(time.Hour)
	calls := 0
	fetch := func() (any, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("feed down")
		}
		return "ok", nil
	}

	if _, err := c.Do(fetch); err == nil {
		t.Fatal("expected first call to fail")
	}
	value, err := c.Do(fetch)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if value != "ok" {
		t.Fatalf("value = %v", value)
	}
}
