//go:build race

package opt

// Race_ reports whether the race detector is compiled in. Contract
// assertions that need cross-goroutine bookkeeping are enabled only in
// race builds.
const Race_ = true
