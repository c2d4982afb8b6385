package rtsync

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestCellGroup_SameCellPerKey(t *testing.T) {
	var g CellGroup[string, float64]

	a := g.Cell("gain")
	b := g.Cell("gain")
	if a != b {
		t.Fatalf("two lookups of one key returned different cells")
	}
	if c := g.Cell("pan"); c == a {
		t.Fatalf("distinct keys share a cell")
	}
}

func TestCellGroup_PublishThroughGroup(t *testing.T) {
	var g CellGroup[string, float64]

	g.Cell("gain").SetPublish(0.5)
	r := g.Cell("gain").ReadRT()
	if got := r.Value(); got != 0.5 {
		t.Fatalf("value = %v, want 0.5", got)
	}
	r.Release()
}

func TestCellGroup_LookupAndDrop(t *testing.T) {
	var g CellGroup[string, int]

	if _, ok := g.Lookup("x"); ok {
		t.Fatalf("Lookup created a cell")
	}
	old := g.Cell("x")
	if c, ok := g.Lookup("x"); !ok || c != old {
		t.Fatalf("Lookup missed an existing cell")
	}

	g.Drop("x")
	if _, ok := g.Lookup("x"); ok {
		t.Fatalf("cell survived Drop")
	}
	if g.Cell("x") == old {
		t.Fatalf("dropped cell resurrected")
	}

	// A reader that grabbed the cell before the drop keeps working.
	r := old.ReadRT()
	r.Release()
}

func TestCellGroup_ConcurrentCreate(t *testing.T) {
	var g CellGroup[int, int]

	const callers = 16
	cells := make([]*SyncCell[int], callers)
	var eg errgroup.Group
	for i := range callers {
		eg.Go(func() error {
			cells[i] = g.Cell(7)
			return nil
		})
	}
	_ = eg.Wait()

	for i := 1; i < callers; i++ {
		if cells[i] != cells[0] {
			t.Fatalf("concurrent creation split key 7 across cells")
		}
	}
}

func TestCellGroup_ReclaimAll(t *testing.T) {
	var g CellGroup[string, int]

	for _, k := range []string{"a", "b"} {
		c := g.Cell(k)
		for i := 1; i <= 4; i++ {
			c.SetPublish(i)
		}
	}
	g.ReclaimAll()

	for _, k := range []string{"a", "b"} {
		c := g.Cell(k)
		if n := liveSlots(&c.published); n != 1 {
			t.Fatalf("key %q: live slots = %d, want 1", k, n)
		}
	}
}
