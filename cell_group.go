package rtsync

import (
	"github.com/llxisdsh/pb"
)

// CellGroup manages SyncCells on arbitrary keys, creating them on
// demand. It suits plugin hosts and mixers where the set of shared
// values (one per voice, channel, parameter, ...) is not known up
// front.
//
// Non-realtime code addresses cells by key; realtime code must not
// touch the map and instead holds the *SyncCell obtained ahead of
// time, reading it with ReadRT as usual.
//
// It is zero-value usable.
//
// Usage:
//
//	var group rtsync.CellGroup[string, float64]
//
//	// Control thread
//	group.Cell("gain").SetPublish(0.5)
//
//	// Audio thread, cell pointer captured at setup time
//	gain := group.Cell("gain") // non-realtime, during setup
//	...
//	r := gain.ReadRT()
type CellGroup[K comparable, T any] struct {
	_ noCopy
	m pb.MapOf[K, *SyncCell[T]]
}

// Cell returns the cell for key k, creating and publishing a zero
// value if the key is new. Concurrent callers for the same key get the
// same cell.
//
// Non-realtime.
func (g *CellGroup[K, T]) Cell(k K) *SyncCell[T] {
	c, _ := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *SyncCell[T]]) (*pb.EntryOf[K, *SyncCell[T]], *SyncCell[T], bool) {
			if l != nil {
				return l, l.Value, true
			}
			c := NewSyncCell[T]()
			return &pb.EntryOf[K, *SyncCell[T]]{Value: c}, c, false
		},
	)
	return c
}

// Lookup returns the cell for key k without creating one.
//
// Non-realtime.
func (g *CellGroup[K, T]) Lookup(k K) (*SyncCell[T], bool) {
	return g.m.Load(k)
}

// Drop removes the cell for key k from the group. A realtime reader
// still holding the cell pointer keeps working; the cell is simply no
// longer reachable by key.
//
// Non-realtime.
func (g *CellGroup[K, T]) Drop(k K) {
	g.m.Delete(k)
}

// ReclaimAll runs a reclamation pass over every cell in the group.
//
// Non-realtime.
func (g *CellGroup[K, T]) ReclaimAll() {
	g.m.Range(func(_ K, c *SyncCell[T]) bool {
		c.Reclaim()
		return true
	})
}
