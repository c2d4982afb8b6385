package rtsync

import (
	"sync"
	"sync/atomic"
)

// CellConfig defines configurable options for cell initialization.
type CellConfig struct {
	// autoReclaim runs a reclamation pass at the end of every publish,
	// so no separate Reclaim call is needed. Publishes become slightly
	// more expensive; the realtime read path is unaffected.
	autoReclaim bool
}

// WithAutoReclaim configures a cell to reclaim unreferenced versions
// as part of every publish. Without it, Reclaim should be called
// periodically from a non-realtime goroutine (a timer or a background
// thread is fine; the pass is cheap).
func WithAutoReclaim() func(*CellConfig) {
	return func(c *CellConfig) {
		c.autoReclaim = true
	}
}

// SyncCell separates a writer-private working value from the published
// value visible to realtime readers.
//
// Update and Set change the working value but do not make it visible.
// Publish commits the working value to the underlying versioned store,
// where ReadRT picks it up without locking or allocating.
//
// Any number of non-realtime writers may share a cell (they serialize
// on the writer mutex), and any number of realtime readers may call
// ReadRT concurrently.
type SyncCell[T any] struct {
	_         noCopy
	mu        sync.Mutex
	working   T
	published VersionedValue[T]
	unread    atomic.Bool
}

// NewSyncCell creates a cell whose working value is the zero value of
// T, already published once: ReadRT immediately after construction
// returns that zero value, and IsUnread reports true until the first
// realtime read.
func NewSyncCell[T any](opts ...func(*CellConfig)) *SyncCell[T] {
	var cfg CellConfig
	for _, o := range opts {
		o(&cfg)
	}
	c := &SyncCell[T]{}
	c.init(&cfg)
	return c
}

func (c *SyncCell[T]) init(cfg *CellConfig) {
	c.published.init(cfg)
	c.unread.Store(true)
}

// ReadWorking returns a copy of the working value.
//
// Non-realtime.
func (c *SyncCell[T]) ReadWorking() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.working
}

// Set replaces the working value without publishing it.
//
// Non-realtime.
func (c *SyncCell[T]) Set(value T) {
	c.mu.Lock()
	c.working = value
	c.mu.Unlock()
}

// Update applies fn to the working value without publishing, and
// returns the new working value. fn runs under the writer mutex.
//
// Non-realtime.
func (c *SyncCell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.working = fn(c.working)
	return c.working
}

// Publish makes the current working value visible to realtime readers.
//
// Non-realtime.
func (c *SyncCell[T]) Publish() {
	c.mu.Lock()
	w := c.working
	c.mu.Unlock()
	c.published.Set(w)
	c.unread.Store(true)
}

// SetPublish replaces the working value and publishes it.
//
// Non-realtime.
func (c *SyncCell[T]) SetPublish(value T) {
	c.Set(value)
	c.Publish()
}

// UpdatePublish applies fn to the working value, publishes the result
// and returns it.
//
// Non-realtime.
func (c *SyncCell[T]) UpdatePublish(fn func(T) T) T {
	value := c.Update(fn)
	c.Publish()
	return value
}

// ReadRT pins and returns the most recently published value.
//
// Realtime-safe. The returned Ref must be released when the caller is
// done with it.
func (c *SyncCell[T]) ReadRT() Ref[T] {
	r := c.published.ReadRT()
	c.unread.Store(false)
	return r
}

// IsUnread reports whether the most recent publish has not yet been
// observed by a realtime read. It is a hint: a stale answer is
// possible while a publish or a read is in flight.
//
// Safe from any context.
func (c *SyncCell[T]) IsUnread() bool {
	return c.unread.Load()
}

// Reclaim clears published versions no reader references anymore.
//
// Non-realtime.
func (c *SyncCell[T]) Reclaim() {
	c.published.Reclaim()
}
