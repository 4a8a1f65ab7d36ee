package cache

import (
	"testing"
	"time"

	"firerag/internal/domain"
)

func TestQueryCacheHitMiss(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	if _, hit := c.Get("fire doors", 5); hit {
		t.Error("expected miss on empty cache")
	}

	result := &domain.RetrievalResult{Context: "[Page 12]\ndoor gaps", Pages: []int{12}}
	c.Put("fire doors", 5, result)

	got, hit := c.Get("fire doors", 5)
	if !hit {
		t.Fatal("expected hit")
	}
	if got.Context != result.Context {
		t.Errorf("expected cached context %q, got %q", result.Context, got.Context)
	}

	if _, hit := c.Get("fire doors", 3); hit {
		t.Error("expected miss for different k")
	}
}

func TestQueryCacheNilResult(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	c.Put("nothing relevant", 5, nil)

	got, hit := c.Get("nothing relevant", 5)
	if !hit {
		t.Fatal("expected hit for cached nil result")
	}
	if got != nil {
		t.Errorf("expected nil result, got %+v", got)
	}
}

func TestQueryCacheTTL(t *testing.T) {
	c := NewQueryCache(10, 10*time.Millisecond)

	c.Put("fire doors", 5, &domain.RetrievalResult{Pages: []int{12}})
	time.Sleep(20 * time.Millisecond)

	if _, hit := c.Get("fire doors", 5); hit {
		t.Error("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Errorf("expected expired entry removed, size %d", c.Size())
	}
}

func TestQueryCacheEviction(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("q1", 5, &domain.RetrievalResult{Pages: []int{1}})
	c.Put("q2", 5, &domain.RetrievalResult{Pages: []int{2}})
	c.Put("q3", 5, &domain.RetrievalResult{Pages: []int{3}})

	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
	if _, hit := c.Get("q1", 5); hit {
		t.Error("expected oldest entry evicted")
	}
	if _, hit := c.Get("q3", 5); !hit {
		t.Error("expected newest entry present")
	}
}

func TestQueryCacheLRUTouch(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("q1", 5, &domain.RetrievalResult{Pages: []int{1}})
	c.Put("q2", 5, &domain.RetrievalResult{Pages: []int{2}})
	c.Get("q1", 5)
	c.Put("q3", 5, &domain.RetrievalResult{Pages: []int{3}})

	if _, hit := c.Get("q1", 5); !hit {
		t.Error("expected recently used entry kept")
	}
	if _, hit := c.Get("q2", 5); hit {
		t.Error("expected least recently used entry evicted")
	}
}

func TestQueryCacheInvalidate(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	c.Put("fire doors", 5, &domain.RetrievalResult{Pages: []int{12}})
	c.Invalidate()

	if _, hit := c.Get("fire doors", 5); hit {
		t.Error("expected miss after invalidation")
	}
	if c.Size() != 0 {
		t.Errorf("expected empty cache, got size %d", c.Size())
	}
}
