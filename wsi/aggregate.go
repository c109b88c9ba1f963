// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"github.com/gviegas/wsishim/hal"
)

// PresentAggregate presents one image on each of several
// swapchains as a single call.
//
// Each swapchain queues and presents independently, but the
// caller issued one call and expects its wait semaphores to
// gate every present. The aggregator therefore builds a
// single submission that waits on the union of the caller's
// semaphores and signals the present semaphore of every
// involved slot; each swapchain's own wait submission then
// waits its slot semaphore instead of the caller's.
//
// Only after the aggregated submission is accepted is any
// per-swapchain request enqueued. If it cannot be built or
// submitted, the call fails before any side effect: every
// present queue is left unchanged.
//
// The returned slice holds one result per swapchain; err is
// the first non-nil of those, or the aggregation failure
// itself.
func PresentAggregate(q hal.Queue, waits []hal.Semaphore, chains []*Swapchain, params []PresentParams) ([]error, error) {
	if len(chains) != len(params) {
		return nil, ErrInvalidUsage
	}
	if len(chains) == 1 {
		// Fast path: no aggregation, the caller's
		// semaphores go straight to the one swapchain's
		// bridge.
		p := params[0]
		p.Waits = waits
		err := chains[0].Present(p)
		return []error{err}, err
	}

	sems := make([]hal.Semaphore, len(chains))
	for i := range chains {
		sem, err := chains[i].imagePresentSemaphore(params[i].ImageIndex)
		if err != nil {
			return nil, err
		}
		sems[i] = sem
	}
	if err := q.Submit(hal.SubmitInfo{Waits: waits, Signals: sems}); err != nil {
		return nil, err
	}

	results := make([]error, len(chains))
	var first error
	for i := range chains {
		p := params[i]
		p.Waits = nil
		results[i] = chains[i].present(p, true)
		if results[i] != nil && first == nil {
			first = results[i]
		}
	}
	return results, first
}

// imagePresentSemaphore returns the present semaphore of a
// slot about to be presented. It validates that the slot is
// currently acquired so aggregation fails before any
// submission when the caller's parameters are bad.
func (s *Swapchain) imagePresentSemaphore(index int) (hal.Semaphore, error) {
	if index < 0 || index >= len(s.store.slots) {
		return nil, ErrInvalidUsage
	}
	if s.store.state(index) != slotAcquired {
		return nil, ErrInvalidUsage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrInvalidUsage
	}
	if s.fatal {
		return nil, s.status
	}
	return s.store.slots[index].sem, nil
}
