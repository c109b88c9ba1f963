// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"sync"
	"time"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/internal/bitvec"
)

// slotState is the state of one image slot.
//
// Valid transitions:
//
//	slotFree -> slotAcquired       (acquire)
//	slotAcquired -> slotQueued     (present enqueued)
//	slotQueued -> slotPresenting   (dequeued by the loop)
//	slotPresenting -> slotFree     (present completed)
//	slotQueued -> slotFree         (teardown drain)
//	slotAcquired -> slotFree       (rollback/teardown)
type slotState int

const (
	slotFree slotState = iota
	slotAcquired
	slotQueued
	slotPresenting
)

// slot is one presentable image of a swapchain.
type slot struct {
	// Native backing and the API image bound to it.
	backing Backing
	image   hal.Image

	// sem is the slot's present semaphore. Aggregated
	// multi-swapchain submissions signal it; the slot's
	// own wait submission consumes it.
	sem hal.Semaphore

	// native is the synchronization bridge's internal
	// primitive for this slot. The presentation goroutine
	// waits on it before calling into the window system.
	native hal.NativeFence

	// fence is the caller's present fence for the pending
	// request, if any.
	fence hal.Fence

	state slotState

	// seq of the pending or most recent present that used
	// this slot.
	seq uint64
}

// slotStore is the fixed-capacity pool of image slots.
// At most one present request referencing a given slot is
// outstanding at any time; the state machine enforces this
// under the store's lock.
type slotStore struct {
	mu    sync.Mutex
	cond  sync.Cond
	slots []slot

	// used has a set bit for every slot that is not free.
	used bitvec.V

	// lost is the sticky surface-invalidated flag.
	lost bool
}

func newSlotStore(n int) *slotStore {
	s := &slotStore{
		slots: make([]slot, n),
		used:  bitvec.New(n),
	}
	s.cond.L = &s.mu
	return s
}

// acquire blocks until a free slot can be transitioned to
// slotAcquired, subject to timeout. DontWait answers
// immediately with ErrNotReady when no slot is free; Forever
// blocks until one is recycled. Expiry of a positive timeout
// returns ErrTimeout and leaves all state unchanged.
func (s *slotStore) acquire(timeout time.Duration) (int, error) {
	var deadline time.Time
	var timer *time.Timer
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		// cond has no timed wait; a timer broadcast
		// bounds the sleep.
		timer = time.AfterFunc(timeout, func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		defer timer.Stop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.lost {
			return -1, ErrSurfaceLost
		}
		if i, ok := s.used.Search(); ok {
			s.used.Set(i)
			s.slots[i].state = slotAcquired
			return i, nil
		}
		switch {
		case timeout == DontWait:
			return -1, ErrNotReady
		case timeout > 0 && !time.Now().Before(deadline):
			return -1, ErrTimeout
		}
		s.cond.Wait()
	}
}

// release undoes an acquisition that could not be completed.
func (s *slotStore) release(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[index].state != slotAcquired {
		panic("wsi: release of a slot not acquired")
	}
	s.slots[index].state = slotFree
	s.slots[index].fence = nil
	s.used.Unset(index)
	s.cond.Broadcast()
}

// markQueued transitions an acquired slot to slotQueued,
// recording the request's sequence and present fence.
// It reports ErrInvalidUsage when the slot is not currently
// acquired; presenting a slot twice or before acquiring it
// is a caller-contract error.
func (s *slotStore) markQueued(index int, seq uint64, fence hal.Fence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.slots) {
		return ErrInvalidUsage
	}
	if s.slots[index].state != slotAcquired {
		return ErrInvalidUsage
	}
	s.slots[index].state = slotQueued
	s.slots[index].seq = seq
	s.slots[index].fence = fence
	return nil
}

// unmarkQueued rolls a queued slot back to slotAcquired.
// Used when the wait submission for the present cannot be
// built, so the call fails with no side effect.
func (s *slotStore) unmarkQueued(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[index].state != slotQueued {
		panic("wsi: unmarkQueued of a slot not queued")
	}
	s.slots[index].state = slotAcquired
	s.slots[index].fence = nil
}

// markPresenting transitions a queued slot to slotPresenting.
// Only the presentation goroutine calls this.
func (s *slotStore) markPresenting(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[index].state != slotQueued {
		panic("wsi: markPresenting of a slot not queued")
	}
	s.slots[index].state = slotPresenting
}

// recycle returns a queued or presenting slot to slotFree
// and wakes every acquire waiter.
func (s *slotStore) recycle(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.slots[index].state {
	case slotQueued, slotPresenting:
	default:
		panic("wsi: recycle of an idle slot")
	}
	s.slots[index].state = slotFree
	s.slots[index].fence = nil
	s.used.Unset(index)
	s.cond.Broadcast()
}

// invalidate sets the sticky surface-invalidated flag and
// wakes acquire waiters so they can observe it.
func (s *slotStore) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = true
	s.cond.Broadcast()
}

// state returns the current state of a slot.
func (s *slotStore) state(index int) slotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[index].state
}

// inFlight returns the number of slots not currently free.
func (s *slotStore) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used.Count()
}

// forceFree drains every slot to slotFree. Whole-swapchain
// teardown calls this after the presentation goroutine has
// exited.
func (s *slotStore) forceFree() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		s.slots[i].state = slotFree
		s.slots[i].fence = nil
	}
	s.used.Clear()
	s.cond.Broadcast()
}
