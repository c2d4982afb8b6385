package rtsync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fastrand"
	"golang.org/x/sync/errgroup"
)

func liveSlots[T any](v *VersionedValue[T]) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, d := range v.dead {
		if !d {
			n++
		}
	}
	return n
}

func slotCount[T any](v *VersionedValue[T]) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.slots)
}

func TestVersionedValue_DefaultPublish(t *testing.T) {
	v := NewVersionedValue[int]()
	r := v.ReadRT()
	if got := r.Value(); got != 0 {
		t.Fatalf("initial value = %d, want 0", got)
	}
	r.Release()
}

func TestVersionedValue_SetRead(t *testing.T) {
	v := NewVersionedValue[int]()
	v.Set(42)
	r := v.ReadRT()
	if got := r.Value(); got != 42 {
		t.Fatalf("value = %d, want 42", got)
	}
	r.Release()
}

func TestVersionedValue_Modify(t *testing.T) {
	v := NewVersionedValue[int]()
	v.Modify(func(prev int) int { return prev + 1 })
	v.Modify(func(prev int) int { return prev + 1 })
	r := v.ReadRT()
	if got := r.Value(); got != 2 {
		t.Fatalf("value = %d, want 2", got)
	}
	r.Release()
}

func TestVersionedValue_SlotReuse(t *testing.T) {
	v := NewVersionedValue[int]()

	r0 := v.ReadRT()
	p0 := r0.Ptr()
	r0.Release()

	v.Set(2)
	v.Reclaim()
	v.Set(3)

	r := v.ReadRT()
	if r.Ptr() != p0 {
		t.Fatalf("publish after reclaim did not reuse the freed slot")
	}
	if got := r.Value(); got != 3 {
		t.Fatalf("value = %d, want 3", got)
	}
	r.Release()
}

func TestVersionedValue_PinAcrossReclaim(t *testing.T) {
	v := NewVersionedValue[string]()
	v.Set("A")

	h := v.ReadRT()
	v.Set("B")
	v.Reclaim()
	if got := *h.Ptr(); got != "A" {
		t.Fatalf("pinned value = %q, want A", got)
	}

	h.Release()
	v.Reclaim()
	if n := liveSlots(v); n != 1 {
		t.Fatalf("live slots after release+reclaim = %d, want 1", n)
	}
	v.mu.Lock()
	for i, s := range v.slots {
		if s.ok == v.dead[i] {
			t.Errorf("slot %d: payload present = %v with dead = %v", i, s.ok, v.dead[i])
		}
	}
	v.mu.Unlock()
}

func TestVersionedValue_ReleaseIdempotent(t *testing.T) {
	v := NewVersionedValue[int]()
	r := v.ReadRT()
	r.Release()
	r.Release() // no-op
	var zero Ref[int]
	zero.Release() // no-op
	if zero.Ptr() != nil {
		t.Fatalf("zero Ref.Ptr() != nil")
	}
}

func TestVersionedValue_ReclaimProgress(t *testing.T) {
	v := NewVersionedValue[int]()
	for i := 1; i <= 5; i++ {
		v.Set(i)
	}
	if n := liveSlots(v); n != 6 {
		t.Fatalf("live slots before reclaim = %d, want 6", n)
	}
	v.Reclaim()
	if n := liveSlots(v); n != 1 {
		t.Fatalf("live slots after reclaim = %d, want 1", n)
	}
}

func TestVersionedValue_AutoReclaim(t *testing.T) {
	v := NewVersionedValue[int](WithAutoReclaim())
	for i := 1; i <= 100; i++ {
		v.Set(i)
	}
	// With no readers, each publish frees the previous version in the
	// same call, so the store ping-pongs between two slots.
	if n := slotCount(v); n != 2 {
		t.Fatalf("slot count = %d, want 2", n)
	}
}

func TestVersionedValue_GrowthIsBounded(t *testing.T) {
	v := NewVersionedValue[int]()
	h := v.ReadRT() // pin the initial version
	for i := 1; i <= 50; i++ {
		v.Set(i)
		v.Reclaim()
	}
	// One slot pinned by the reader, one by the writer, plus at most
	// one in flight between publish and reclaim.
	if n := slotCount(v); n > 3 {
		t.Fatalf("slot count = %d, want <= 3", n)
	}
	h.Release()
}

func TestVersionedValue_ConcurrentReadersWriter(t *testing.T) {
	const (
		readers   = 4
		publishes = 20000
	)
	v := NewVersionedValue[int]()
	var stop atomic.Bool

	var g errgroup.Group
	for range readers {
		g.Go(func() error {
			last := 0
			for !stop.Load() {
				r := v.ReadRT()
				got := r.Value()
				if got < last {
					r.Release()
					t.Errorf("read went backwards: %d after %d", got, last)
					return nil
				}
				last = got
				if fastrand.Uint32n(8) == 0 {
					time.Sleep(time.Microsecond)
				}
				r.Release()
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 1; i <= publishes; i++ {
			v.Set(i)
			if fastrand.Uint32n(64) == 0 {
				v.Reclaim()
			}
		}
		stop.Store(true)
		return nil
	})
	_ = g.Wait()

	v.Reclaim()
	r := v.ReadRT()
	if got := r.Value(); got != publishes {
		t.Fatalf("final value = %d, want %d", got, publishes)
	}
	r.Release()
}

func TestVersionedValue_PinSafetyUnderChurn(t *testing.T) {
	v := NewVersionedValue[[2]uint64]()
	var stop atomic.Bool
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); !stop.Load(); i++ {
			v.Set([2]uint64{i, i})
			v.Reclaim()
		}
	}()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		r := v.ReadRT()
		got := *r.Ptr()
		// The two halves were written together before the publish; a
		// reclaimed or torn payload would break the pairing.
		if got[0] != got[1] {
			r.Release()
			stop.Store(true)
			wg.Wait()
			t.Fatalf("payload torn or reclaimed under pin: %v", got)
		}
		r.Release()
	}
	stop.Store(true)
	wg.Wait()
}
