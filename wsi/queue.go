// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"errors"
	"time"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/internal/log"
)

// presentRequest is one pending present sitting in the
// swapchain's queue.
type presentRequest struct {
	slot       int
	seq        uint64
	presentID  uint64
	fence      hal.Fence
	mode       PresentMode
	switchMode bool
	timing     *TimingInfo
}

// presentLoop is the swapchain's presentation goroutine.
// It owns the only code path that calls into the native
// present operation. Requests are executed strictly in
// sequence order; presents for one swapchain are never
// reordered relative to each other.
func (s *Swapchain) presentLoop() {
	defer s.wg.Done()
	for {
		// Teardown takes priority over queued work.
		select {
		case <-s.quit:
			// Drain what is still queued without
			// presenting; waits are honored so no
			// synchronization primitive leaks.
			for {
				select {
				case req := <-s.pending:
					s.discardPresent(req)
				default:
					return
				}
			}
		default:
		}
		select {
		case req := <-s.pending:
			s.executePresent(req)
		case <-s.quit:
		}
	}
}

// executePresent performs one native present.
func (s *Swapchain) executePresent(req presentRequest) {
	sl := &s.store.slots[req.slot]
	s.store.markPresenting(req.slot)

	// Wait natively on the bridge's primitive; the caller's
	// wait semaphores are satisfied once it signals.
	if err := sl.native.Wait(Forever); err != nil {
		log.Errorf("present wait failed: %v", err)
		s.recordStatus(ErrDeviceLost)
		s.finishPresent(req)
		return
	}
	sl.native.Reset()

	if req.switchMode {
		// Compatibility was validated before queuing.
		s.mu.Lock()
		if s.mode != req.mode {
			log.Infof("present mode switch: %v -> %v", s.mode, req.mode)
			s.mode = req.mode
		}
		s.mu.Unlock()
	}

	if req.timing != nil {
		if d := time.Until(req.timing.TargetTime); d > 0 {
			time.Sleep(d)
		}
	}

	s.mu.Lock()
	fatal := s.fatal
	s.mu.Unlock()
	if !fatal {
		switch err := s.surf.Backend().Present(sl.backing); {
		case err == nil:
		case errors.Is(err, ErrOutOfDate):
			// Recoverable. The slot still returns to the
			// store; recreation is advisable but not
			// required.
			log.Warnf("present: %v", err)
			s.recordStatus(ErrOutOfDate)
		case IsFatal(err):
			log.Errorf("present: %v", err)
			s.recordStatus(err)
		default:
			log.Errorf("present: %v", err)
			s.recordStatus(ErrDeviceLost)
		}
	}
	s.finishPresent(req)
}

// discardPresent honors a request's waits and releases its
// slot without any pixel transfer.
func (s *Swapchain) discardPresent(req presentRequest) {
	sl := &s.store.slots[req.slot]
	s.store.markPresenting(req.slot)
	if err := sl.native.Wait(Forever); err != nil {
		log.Errorf("teardown wait failed: %v", err)
	} else {
		sl.native.Reset()
	}
	s.finishPresent(req)
}

// finishPresent signals the request's present fence, recycles
// the slot and records its identifier, in that order, so a
// present-id waiter never observes the slot still in flight.
func (s *Swapchain) finishPresent(req presentRequest) {
	if req.fence != nil {
		if err := s.bridge.complete(req.fence); err != nil {
			log.Errorf("present fence signal failed: %v", err)
		}
	}
	s.store.recycle(req.slot)
	if req.presentID != 0 {
		s.mu.Lock()
		if req.presentID > s.lastID {
			s.lastID = req.presentID
			s.idCond.Broadcast()
		}
		s.mu.Unlock()
	}
}

// recordStatus updates the sticky status. A fatal status is
// never downgraded; a recoverable one is kept until
// recreation.
func (s *Swapchain) recordStatus(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal {
		return
	}
	if IsFatal(err) {
		s.fatal = true
		s.status = err
		// Fatal also unblocks present-id waiters.
		s.idCond.Broadcast()
		if errors.Is(err, ErrSurfaceLost) {
			s.store.invalidate()
		}
		return
	}
	s.status = err
}
