package cache

import (
	"testing"
	"time"
)

func TestGetExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(time.Minute).WithClock(func() time.Time { return now })

	c.Set("tours:a", 1)
	if v, ok := c.Get("tours:a"); !ok || v != 1 {
		t.Fatalf("got %v %v, want hit", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("tours:a"); ok {
		t.Fatalf("entry should expire at its ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not dropped, len=%d", c.Len())
	}
}

func TestDeletePrefixKeepsOtherNamespaces(t *testing.T) {
	c := New(0)
	c.Set("tours:a", 1)
	c.Set("tours:b", 2)
	c.Set("reviews:a", 3)

	if n := c.DeletePrefix("tours:"); n != 2 {
		t.Fatalf("deleted %d, want 2", n)
	}
	if _, ok := c.Get("reviews:a"); !ok {
		t.Fatalf("other namespace should survive")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("clear left %d entries", c.Len())
	}
}
