package cache

import (
	"errors"
	"testing"
)

func TestGetOrLoad(t *testing.T) {
	c := New[string, int]()
	calls := 0
	load := func(k string) (int, error) {
		calls++
		return len(k), nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("abcd", load)
		if err != nil || v != 4 {
			t.Fatalf("GetOrLoad = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times", calls)
	}
	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("stats = %d/%d", hits, misses)
	}
}

func TestGetOrLoad_ErrorNotCached(t *testing.T) {
	c := New[string, int]()
	boom := errors.New("boom")
	if _, err := c.GetOrLoad("k", func(string) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed load was cached")
	}
}

func TestReset(t *testing.T) {
	c := New[int, string]()
	c.Put(1, "a")
	c.Reset()
	if _, ok := c.Get(1); ok || c.Len() != 0 {
		t.Fatal("Reset kept entries")
	}
}
