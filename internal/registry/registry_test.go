package registry_test

import (
	"sync"
	"testing"

	"github.com/haildev/hail/internal/registry"
)

func TestAddGetRemove(t *testing.T) {
	r := registry.New()

	if r.Len() != 0 {
		t.Fatalf("new registry length = %d, want 0", r.Len())
	}

	r.Add("10.0.0.1:6881", nil)

	if r.Len() != 1 {
		t.Fatalf("length after add = %d, want 1", r.Len())
	}
	if _, ok := r.Get("10.0.0.1:6881"); !ok {
		t.Error("expected Get to find the registered address")
	}

	r.Remove("10.0.0.1:6881")
	if r.Len() != 0 {
		t.Errorf("length after remove = %d, want 0", r.Len())
	}
	if _, ok := r.Get("10.0.0.1:6881"); ok {
		t.Error("expected Get to fail after Remove")
	}
}

func TestSnapshotIsIndependentOfFurtherMutation(t *testing.T) {
	r := registry.New()
	r.Add("a", nil)
	r.Add("b", nil)

	snapshot := r.Snapshot()
	r.Add("c", nil)

	if len(snapshot) != 2 {
		t.Errorf("snapshot length = %d, want 2", len(snapshot))
	}
	if r.Len() != 3 {
		t.Errorf("registry length = %d, want 3", r.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := registry.New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := string(rune('a' + i%26))
			r.Add(addr, nil)
			r.Get(addr)
			r.Snapshot()
		}(i)
	}

	wg.Wait()
}
