package rtsync

import (
	"sync/atomic"
)

// EdgeTrigger is a single-bit latch. Fire arms it from any goroutine;
// Fired reports whether it was armed since the last call and clears
// it. It carries no data, only the edge: fire it when something
// changed, poll it where the reaction happens.
//
// Both methods are realtime-safe. The zero value is unarmed.
type EdgeTrigger struct {
	_     noCopy
	armed atomic.Bool
}

// Fire arms the trigger. Firing an armed trigger is a no-op; edges
// between two polls collapse into one.
func (t *EdgeTrigger) Fire() {
	t.armed.Store(true)
}

// Fired reports whether the trigger was armed, clearing it in the same
// step. Of several concurrent pollers, exactly one observes the edge.
func (t *EdgeTrigger) Fired() bool {
	return t.armed.Swap(false)
}
