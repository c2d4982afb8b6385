// Package rtsync provides synchronization primitives for sharing state
// between realtime threads (audio callbacks and similar hard-deadline
// contexts) and ordinary threads.
//
// The realtime side of every primitive is lock-free and allocation-free:
// it never takes a mutex, never allocates, and completes in bounded time.
// The non-realtime side may block on a writer mutex and may allocate.
//
// Calling convention: methods suffixed with RT (ReadRT, ReadIntoRT) are
// the realtime-safe entry points and must be the only methods invoked
// from a realtime goroutine. Unsuffixed methods are non-realtime unless
// their doc comment says otherwise. FrameSignal and EdgeTrigger are
// realtime-safe throughout.
//
// The library cannot verify which goroutine is calling; a non-realtime
// method invoked from a realtime thread will work, but may miss its
// deadline.
package rtsync
