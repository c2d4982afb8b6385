package rtsync

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/rtsync/internal/opt"
)

// slot is one reusable storage cell for a payload version.
//
// refs counts the owners of the cell: the container itself always
// counts as 1, the writer pin on the currently published slot adds 1,
// and each outstanding Ref adds 1. A refs of 0 is the transient
// "dying" state during reclamation; readers that observe it back off
// and re-load the published pointer.
//
// The cell is never freed while its VersionedValue exists. Clearing a
// slot zeroes the payload in place so that any memory it referenced
// can be collected, and leaves the cell ready for reuse.
type slot[T any] struct {
	refs atomic.Int64
	ok   bool
	val  T
}

// Ref is a shared-ownership handle to one published payload version.
// While a Ref is held, the slot behind it stays live: reclamation will
// not touch it and the payload pointer stays valid.
//
// A Ref must be released exactly once by the goroutine that obtained
// it. Release on the zero Ref, or a second Release, is a no-op.
type Ref[T any] struct {
	s *slot[T]
}

// Ptr returns a pointer to the payload. The pointee must be treated as
// read-only. Returns nil for the zero Ref.
//
// Realtime-safe.
func (r Ref[T]) Ptr() *T {
	if r.s == nil {
		return nil
	}
	return &r.s.val
}

// Value returns a copy of the payload. Panics on the zero Ref.
//
// Realtime-safe for payload types whose copy is a plain memory copy.
func (r Ref[T]) Value() T {
	return r.s.val
}

// Clone returns an additional handle to the same payload version. The
// clone must be released independently.
//
// Realtime-safe.
func (r Ref[T]) Clone() Ref[T] {
	if r.s != nil {
		r.s.refs.Add(1)
	}
	return Ref[T]{s: r.s}
}

// Release drops the handle. Idempotent.
//
// Realtime-safe.
func (r *Ref[T]) Release() {
	if s := r.s; s != nil {
		r.s = nil
		s.refs.Add(-1)
	}
}

// VersionedValue is a mutate-in-place value store with lock-free reads
// and deferred reclamation.
//
// Writers install new versions under a mutex; each publish lands in a
// reusable slot and flips a single atomic pointer. Readers pin the
// published slot with a CAS increment between two atomic loads of the
// published pointer, so the
// read path never locks and never allocates. Old versions are kept
// until Reclaim observes that no reader still references them; their
// slots are then cleared and reused, so steady-state memory equals the
// peak number of simultaneously referenced versions.
//
// Slot memory is never returned to the allocator while the
// VersionedValue exists, and slot addresses are stable across growth,
// so payload pointers held through a Ref stay valid across publishes.
//
// Every method is thread-safe. Only ReadRT is realtime-safe. Multiple
// simultaneous realtime readers are supported.
type VersionedValue[T any] struct {
	_ noCopy

	// current is the only field realtime readers touch; keep it off
	// the writer's cache lines.
	current atomic.Pointer[slot[T]]
	_       [(opt.CacheLineSize_ - unsafe.Sizeof(unsafe.Pointer(nil))%opt.CacheLineSize_) % opt.CacheLineSize_]byte

	mu          sync.Mutex
	working     T
	pinned      *slot[T]
	slots       []*slot[T]
	dead        []bool
	autoReclaim bool
}

// NewVersionedValue creates a store and publishes the zero value of T,
// so ReadRT is valid immediately.
func NewVersionedValue[T any](opts ...func(*CellConfig)) *VersionedValue[T] {
	var cfg CellConfig
	for _, o := range opts {
		o(&cfg)
	}
	v := &VersionedValue[T]{}
	v.init(&cfg)
	return v
}

func (v *VersionedValue[T]) init(cfg *CellConfig) {
	v.autoReclaim = cfg.autoReclaim
	var zero T
	v.Set(zero)
}

// Modify computes the next version by applying fn to the previous one
// and publishes it. fn runs under the writer mutex and must not call
// back into this VersionedValue.
//
// Non-realtime: takes the writer mutex and may allocate a slot.
func (v *VersionedValue[T]) Modify(fn func(T) T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	next := fn(v.working)
	v.working = next

	i := v.emptySlotLocked()
	s := v.slots[i]
	s.val = next
	s.ok = true
	v.dead[i] = false

	// Pin before publishing: the writer's reference keeps the slot's
	// count >= 2, so an interleaved Reclaim can never take the version
	// a reader is about to acquire.
	s.refs.Add(1)
	v.current.Store(s)
	if old := v.pinned; old != nil {
		old.refs.Add(-1)
	}
	v.pinned = s

	if v.autoReclaim {
		v.reclaimLocked()
	}
}

// Set publishes value, discarding the previous version's payload.
//
// Non-realtime.
func (v *VersionedValue[T]) Set(value T) {
	v.Modify(func(T) T { return value })
}

// ReadRT pins and returns the currently published version.
//
// Realtime-safe: an atomic pointer load, one CAS on the slot's
// reference count and a second pointer load to confirm the slot is
// still published. The loop only retries when a publish, a
// reclamation or another reader raced with the acquisition.
func (v *VersionedValue[T]) ReadRT() Ref[T] {
	for {
		s := v.current.Load()
		r := s.refs.Load()
		if r < 1 || !s.refs.CompareAndSwap(r, r+1) {
			// Either the slot is being reclaimed, in which case the
			// published pointer has necessarily moved on, or its count
			// moved under us; retry.
			cpuRelax()
			continue
		}
		if v.current.Load() == s {
			return Ref[T]{s: s}
		}
		// A publish overtook us between the load and the pin. The
		// payload is still live, but re-read so the caller observes
		// the newest version.
		s.refs.Add(-1)
		cpuRelax()
	}
}

// Reclaim clears every version that is referenced only by the
// container itself, making its slot reusable. The currently published
// version is held by the writer pin and is never reclaimed.
//
// Non-realtime.
func (v *VersionedValue[T]) Reclaim() {
	v.mu.Lock()
	v.reclaimLocked()
	v.mu.Unlock()
}

func (v *VersionedValue[T]) reclaimLocked() {
	for i, s := range v.slots {
		if v.dead[i] || s == v.pinned {
			continue
		}
		// Claim the slot by dropping the container's reference to the
		// dying state. Readers refuse slots at 0, so after a
		// successful claim nobody can pin the payload we are about to
		// destroy. A failed claim means a reader still holds it (or
		// is mid-acquire); it will be collected on a later pass.
		if !s.refs.CompareAndSwap(1, 0) {
			continue
		}
		var zero T
		s.val = zero
		s.ok = false
		v.dead[i] = true
		s.refs.Store(1)
	}
}

// emptySlotLocked returns the index of a dead slot, growing the
// collection by one cell when none is free. Slots are appended, never
// moved, so previously handed-out payload pointers stay valid.
func (v *VersionedValue[T]) emptySlotLocked() int {
	for i, d := range v.dead {
		if d {
			return i
		}
	}
	v.slots = append(v.slots, &slot[T]{})
	v.dead = append(v.dead, true)
	i := len(v.slots) - 1
	v.slots[i].refs.Store(1)
	return i
}
