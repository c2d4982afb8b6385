package rtsync

import (
	"fmt"
	"sync/atomic"
)

// noHolder marks the token as caught: a participant holds it locally
// and has not yet thrown it on.
const noHolder = -1

// TurnBall coordinates exclusive access to a shared region among a
// fixed set of participants, typically long-running threads (audio,
// UI, a collector). A participant may touch the region only while it
// holds the token; when done it throws the token to a named peer.
//
// Catching is a single CAS and throwing is a single store, so both
// sides are realtime-safe. There is no queue and no retry loop inside
// the primitive: a participant whose TryCatch misses simply goes back
// to its normal work and tries again on its next iteration.
//
// The throw's release store and the catch's acquiring CAS order all
// writes the thrower made to the shared region before any read the
// catcher makes after.
type TurnBall struct {
	_      noCopy
	holder atomic.Int32
	n      int32
}

// NewTurnBall creates a ball for n participants (identities 0..n-1)
// with the token initially thrown to firstCatcher. Panics if n < 2 or
// firstCatcher is out of range.
func NewTurnBall(n, firstCatcher int) *TurnBall {
	if n < 2 {
		panic("rtsync: TurnBall needs at least two participants")
	}
	if firstCatcher < 0 || firstCatcher >= n {
		panic(fmt.Sprintf("rtsync: first catcher %d out of range [0,%d)", firstCatcher, n))
	}
	b := &TurnBall{n: int32(n)}
	b.holder.Store(int32(firstCatcher))
	return b
}

// Player returns the handle through which participant id takes part.
// Each participant must use its own handle from a single goroutine.
// Panics if id is out of range.
func (b *TurnBall) Player(id int) *TurnPlayer {
	if id < 0 || id >= int(b.n) {
		panic(fmt.Sprintf("rtsync: player %d out of range [0,%d)", id, b.n))
	}
	return &TurnPlayer{ball: b, id: int32(id)}
}

// TurnPlayer is one participant's view of a TurnBall. It tracks local
// possession of the token, so misuse (throwing without the token,
// catching while holding it) is caught without touching shared state.
type TurnPlayer struct {
	ball     *TurnBall
	id       int32
	hasToken bool
}

// TryCatch attempts to catch the token. It returns true and records
// possession when the token was thrown to this participant; false
// when it is elsewhere. Never blocks.
//
// Realtime-safe. Panics if called while already holding the token.
func (p *TurnPlayer) TryCatch() bool {
	if p.hasToken {
		panic("rtsync: TryCatch while holding the token")
	}
	if p.ball.holder.CompareAndSwap(p.id, noHolder) {
		p.hasToken = true
	}
	return p.hasToken
}

// ThrowTo passes the token to participant target. The caller must hold
// the token; target must be a different, valid participant.
//
// Realtime-safe. Panics on either contract violation.
func (p *TurnPlayer) ThrowTo(target int) {
	if !p.hasToken {
		panic("rtsync: ThrowTo without holding the token")
	}
	if target < 0 || target >= int(p.ball.n) || int32(target) == p.id {
		panic(fmt.Sprintf("rtsync: cannot throw to participant %d", target))
	}
	p.hasToken = false
	p.ball.holder.Store(int32(target))
}

// Holding reports whether this participant currently holds the token.
//
// Realtime-safe.
func (p *TurnPlayer) Holding() bool {
	return p.hasToken
}

// Ensure reports whether the participant holds the token, catching it
// first if it is available. Never blocks.
//
// Realtime-safe.
func (p *TurnPlayer) Ensure() bool {
	if p.hasToken {
		return true
	}
	return p.TryCatch()
}

// WithToken runs fn while holding the token, then throws it to target.
// If the token is not available the call returns false without running
// fn. Never blocks.
//
// Realtime-safe when fn is.
func (p *TurnPlayer) WithToken(target int, fn func()) bool {
	if !p.Ensure() {
		return false
	}
	fn()
	p.ThrowTo(target)
	return true
}
