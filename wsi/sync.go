// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"github.com/gviegas/wsishim/hal"
)

// syncBridge translates API-level wait/signal primitives into
// the native fences the presentation goroutine waits on.
// The native present call cannot itself wait on arbitrary
// semaphores, so the bridge issues a queue submission that
// waits on the caller's semaphores and signals the slot's
// native fence; the presentation goroutine then waits on that
// fence outside of API semantics. This is what lets the
// application return from a present call immediately.
type syncBridge struct {
	q hal.Queue
}

// arm guarantees that the native present of a slot will not
// be issued before every semaphore in waits is satisfied.
func (b *syncBridge) arm(waits []hal.Semaphore, native hal.NativeFence) error {
	return b.q.Submit(hal.SubmitInfo{
		Waits:   waits,
		Natives: []hal.NativeFence{native},
	})
}

// signalAcquire makes a successful acquisition visible to the
// caller's synchronization primitives. The acquired slot is
// free by definition, so the submission carries no waits.
func (b *syncBridge) signalAcquire(sem hal.Semaphore, fence hal.Fence) error {
	if sem == nil && fence == nil {
		return nil
	}
	si := hal.SubmitInfo{Fence: fence}
	if sem != nil {
		si.Signals = []hal.Semaphore{sem}
	}
	return b.q.Submit(si)
}

// complete signals the caller's present fence once the native
// present has landed.
func (b *syncBridge) complete(fence hal.Fence) error {
	if fence == nil {
		return nil
	}
	return b.q.Submit(hal.SubmitInfo{Fence: fence})
}
