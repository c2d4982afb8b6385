package rtsync

import (
	"sync/atomic"

	"github.com/llxisdsh/rtsync/internal/opt"
)

// SignalledSyncCell is a SyncCell whose realtime reads are stable
// across a frame.
//
// ReadRT caches the last fetched version and only re-fetches when the
// associated FrameSignal has advanced since the previous fetch, so two
// reads inside the same frame always observe the same payload even if
// a writer published in between:
//
//	signal := rtsync.NewFrameSignal()
//	cell := rtsync.NewSignalledSyncCell[State](signal)
//
//	func audioCallback() {
//		signal.Increment()
//		a := cell.ReadRT()
//		// ... a writer may publish here ...
//		b := cell.ReadRT()
//		// a and b point at the same version
//	}
//
// At most one realtime goroutine may call ReadRT on a given cell; the
// cached handle is owned by that reader. In race builds a concurrent
// second reader panics. The writer-side methods are inherited from
// SyncCell and remain safe for any number of non-realtime goroutines.
type SignalledSyncCell[T any] struct {
	SyncCell[T]
	signal   *FrameSignal
	lastSeen uint64
	cached   Ref[T]
	busy     atomic.Bool
}

// NewSignalledSyncCell creates a cell bound to signal, with the zero
// value of T published, like NewSyncCell.
func NewSignalledSyncCell[T any](signal *FrameSignal, opts ...func(*CellConfig)) *SignalledSyncCell[T] {
	var cfg CellConfig
	for _, o := range opts {
		o(&cfg)
	}
	s := &SignalledSyncCell[T]{}
	s.initSignalled(signal, &cfg)
	return s
}

func (s *SignalledSyncCell[T]) initSignalled(signal *FrameSignal, cfg *CellConfig) {
	if signal == nil {
		panic("rtsync: SignalledSyncCell needs a FrameSignal")
	}
	s.signal = signal
	s.SyncCell.init(cfg)
}

// ReadRT returns the version fetched at the current frame's first
// read. The handle is owned by the cell and stays valid until the next
// ReadRT call; do not release it.
//
// Realtime-safe. Single realtime reader only.
func (s *SignalledSyncCell[T]) ReadRT() *Ref[T] {
	if opt.Race_ {
		if !s.busy.CompareAndSwap(false, true) {
			panic("rtsync: SignalledSyncCell.ReadRT called concurrently; one realtime reader only")
		}
	}
	if sig := s.signal.Current(); sig > s.lastSeen {
		s.lastSeen = sig
		if s.IsUnread() {
			s.cached.Release()
			s.cached = s.SyncCell.ReadRT()
		}
	}
	if opt.Race_ {
		s.busy.Store(false)
	}
	return &s.cached
}
