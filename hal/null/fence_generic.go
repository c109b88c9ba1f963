// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build !linux

package null

import (
	"sync"
	"time"

	"github.com/gviegas/wsishim/hal"
)

// nativeFence implements hal.NativeFence on platforms that
// have no pollable fence primitive.
type nativeFence struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
}

func newNativeFence() (hal.NativeFence, error) {
	return &nativeFence{done: make(chan struct{})}, nil
}

func (f *nativeFence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		f.set = true
		close(f.done)
	}
}

func (f *nativeFence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	done := f.done
	set := f.set
	f.mu.Unlock()
	if set {
		return nil
	}
	switch {
	case timeout < 0:
		<-done
		return nil
	case timeout == 0:
		return hal.ErrTimeout
	default:
		select {
		case <-done:
			return nil
		case <-time.After(timeout):
			return hal.ErrTimeout
		}
	}
}

func (f *nativeFence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		f.set = false
		f.done = make(chan struct{})
	}
	return nil
}

func (f *nativeFence) Destroy() {}
