package behavior

import (
	"sort"
	"testing"
)

func TestCacheGetOrDefaultDoesNotStore(t *testing.T) {
	c := NewCache()
	made := 0
	mk := func() *Context { made++; return NewContext(1, zeroVec, nil, nil, nil) }

	a := c.GetOrDefault(1, mk)
	if c.Len() != 0 {
		t.Fatal("default context stored before Set")
	}
	c.Set(1, a)
	b := c.GetOrDefault(1, mk)
	if a != b || made != 1 {
		t.Errorf("cached context not returned (made=%d)", made)
	}
}

func TestCacheSweepEvictsAfterMisses(t *testing.T) {
	c := NewCache()
	for _, id := range []uint64{1, 2, 3} {
		c.Set(id, NewContext(id, zeroVec, nil, nil, nil))
	}
	active := []Handle{{ConstructID: 1}}

	if ev := c.Sweep(active, 2); len(ev) != 0 {
		t.Fatalf("evicted %v after one miss", ev)
	}
	// Construct 3 comes back, resetting its counter.
	if ev := c.Sweep([]Handle{{ConstructID: 1}, {ConstructID: 3}}, 2); len(ev) != 1 || ev[0] != 2 {
		t.Fatalf("evicted %v, want [2]", ev)
	}
	if _, ok := c.Get(3); !ok {
		t.Fatal("returning construct evicted")
	}
	ev := c.Sweep(active, 2)
	if len(ev) != 0 {
		t.Fatalf("evicted %v, want none", ev)
	}
	ev = c.Sweep(active, 2)
	sort.Slice(ev, func(i, j int) bool { return ev[i] < ev[j] })
	if len(ev) != 1 || ev[0] != 3 {
		t.Fatalf("evicted %v, want [3]", ev)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCacheSweepDisabled(t *testing.T) {
	c := NewCache()
	c.Set(1, NewContext(1, zeroVec, nil, nil, nil))
	for i := 0; i < 5; i++ {
		c.Sweep(nil, 0)
	}
	if c.Len() != 1 {
		t.Error("eviction ran with maxMisses=0")
	}
}
