package refcache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func suffixFactory(calls *atomic.Int64) Factory[string, string] {
	return func(key string) (*string, error) {
		calls.Add(1)
		v := key + "_value"
		return &v, nil
	}
}

func TestGetBuildsAndMemoizes(t *testing.T) {
	var calls atomic.Int64
	cache := New(suffixFactory(&calls))

	first, err := cache.Get("foo")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if first == nil || *first != "foo_value" {
		t.Fatalf("unexpected value %v", first)
	}
	second, err := cache.Get("foo")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if second != first {
		t.Fatalf("expected the identical cached pointer")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("factory ran %d times, want 1", got)
	}
}

func TestZeroKeyBypassesCache(t *testing.T) {
	var calls atomic.Int64
	cache := New(suffixFactory(&calls))

	v, err := cache.Get("")
	if err != nil {
		t.Fatalf("zero key must not fail: %v", err)
	}
	if v != nil {
		t.Fatalf("zero key must yield nil, got %v", *v)
	}
	if calls.Load() != 0 {
		t.Fatalf("factory must not run for the zero key")
	}
	if cache.Size() != 0 {
		t.Fatalf("zero key must not create an entry")
	}
	if cache.Remove("") {
		t.Fatalf("removing the zero key must report false")
	}
}

func TestRemoveForcesRebuild(t *testing.T) {
	var calls atomic.Int64
	cache := New(suffixFactory(&calls))

	first, err := cache.Get("foo")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !cache.Remove("foo") {
		t.Fatalf("remove must report an existing entry")
	}
	if cache.Remove("foo") {
		t.Fatalf("second remove must report false")
	}
	second, err := cache.Get("foo")
	if err != nil {
		t.Fatalf("get after remove failed: %v", err)
	}
	if second == first {
		t.Fatalf("expected a rebuilt value after remove")
	}
	if *second != "foo_value" {
		t.Fatalf("unexpected rebuilt value %q", *second)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("factory ran %d times, want 2", got)
	}
}

func TestInitPrewarmsEntry(t *testing.T) {
	var calls atomic.Int64
	cache := New(suffixFactory(&calls))

	if err := cache.Init("foo"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if cache.Size() != 1 {
		t.Fatalf("init must create the entry")
	}
	if calls.Load() != 1 {
		t.Fatalf("init must run the factory once")
	}
}

func TestSizeAndClear(t *testing.T) {
	var calls atomic.Int64
	cache := New(suffixFactory(&calls))

	// Keep the values alive so the entries stay live during the test.
	keep := make([]*string, 0, 3)
	for _, key := range []string{"a", "b", "c"} {
		v, err := cache.Get(key)
		if err != nil {
			t.Fatalf("get %q failed: %v", key, err)
		}
		keep = append(keep, v)
	}
	if cache.Size() != 3 {
		t.Fatalf("unexpected size %d", cache.Size())
	}
	cache.Clear()
	if cache.Size() != 0 {
		t.Fatalf("clear left %d entries", cache.Size())
	}

	rebuilt, err := cache.Get("a")
	if err != nil {
		t.Fatalf("get after clear failed: %v", err)
	}
	if rebuilt == keep[0] {
		t.Fatalf("expected a rebuilt value after clear")
	}
	if got := calls.Load(); got != 4 {
		t.Fatalf("factory ran %d times, want 4", got)
	}
}

func TestFactoryErrorIsNotCached(t *testing.T) {
	boom := errors.New("boom")
	fail := true
	var calls atomic.Int64
	cache := New(func(key string) (*string, error) {
		calls.Add(1)
		if fail {
			return nil, boom
		}
		v := key + "_value"
		return &v, nil
	})

	if _, err := cache.Get("foo"); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
	if cache.Size() != 0 {
		t.Fatalf("failed build must not leave an entry")
	}

	fail = false
	v, err := cache.Get("foo")
	if err != nil {
		t.Fatalf("get after recovery failed: %v", err)
	}
	if *v != "foo_value" {
		t.Fatalf("unexpected value %q", *v)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("factory ran %d times, want 2", got)
	}
}

func TestStringReportsLiveAndStale(t *testing.T) {
	cache := New(suffixFactory(new(atomic.Int64)))
	a, err := cache.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	b, err := cache.Get("b")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got, want := cache.String(), "2/0 of 2"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	_, _ = a, b
}

func TestConcurrentGetsYieldOneValuePerKey(t *testing.T) {
	var calls atomic.Int64
	cache := New(suffixFactory(&calls))

	const workers = 16
	results := make([]*string, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			v, err := cache.Get("shared")
			if err != nil {
				t.Errorf("get failed: %v", err)
				return
			}
			results[slot] = v
		}(w)
	}
	wg.Wait()

	for slot := 1; slot < workers; slot++ {
		if results[slot] != results[0] {
			t.Fatalf("worker %d saw a different value pointer", slot)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("factory ran %d times under contention, want 1", got)
	}
}

func TestDistinctKeysBuildDistinctValues(t *testing.T) {
	cache := New(func(key int) (*string, error) {
		v := fmt.Sprintf("value_%d", key)
		return &v, nil
	})
	a, err := cache.Get(1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	b, err := cache.Get(2)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if *a != "value_1" || *b != "value_2" {
		t.Fatalf("unexpected values %q %q", *a, *b)
	}
	if cache.Size() != 2 {
		t.Fatalf("unexpected size %d", cache.Size())
	}
}
