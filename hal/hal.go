// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package hal defines the interfaces through which the
// presentation layer reaches the underlying graphics driver.
// The layer itself never talks to a real device; everything it
// needs - semaphores, fences, images, queue submissions - is
// expressed here and provided by a driver implementation.
package hal

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrNoDevice means that no suitable device could be found.
var ErrNoDevice = errors.New("hal: no suitable device found")

// ErrNoHostMemory means that host memory could not be
// allocated.
var ErrNoHostMemory = errors.New("hal: out of host memory")

// ErrDeviceLost means that the device is in an unrecoverable
// state.
var ErrDeviceLost = errors.New("hal: device lost")

// ErrTimeout means that a wait expired before the primitive
// was signaled. It is a status, not a failure.
var ErrTimeout = errors.New("hal: wait timed out")

// Driver is the interface that provides methods for loading
// and unloading an underlying implementation.
type Driver interface {
	// Open initializes the driver.
	// If it succeeds, further calls with the same receiver
	// have no effect and must return the same Device.
	// Callers should assume that Open is not safe for
	// parallel execution.
	Open() (Device, error)

	// Name returns the name of the driver.
	// It must not cause the driver to be opened.
	Name() string

	// Close deinitializes the driver.
	// Closing a driver that is not open has no effect.
	Close()
}

// Device is the interface that creates the primitives the
// presentation layer operates on.
type Device interface {
	// NewSemaphore creates a binary semaphore.
	// A semaphore is signaled by a queue submission and
	// unsignaled when a submission waits on it.
	NewSemaphore() (Semaphore, error)

	// NewFence creates a fence, optionally in the
	// signaled state.
	NewFence(signaled bool) (Fence, error)

	// NewNativeFence creates a fence that the window
	// system can wait on outside of API semantics.
	NewNativeFence() (NativeFence, error)

	// NewImage creates an image object with no memory
	// bound to it.
	NewImage(info ImageInfo) (Image, error)

	// NewMemory allocates size bytes of image memory.
	NewMemory(size int) (Memory, error)

	// BindImage binds memory to an image.
	// An image can be bound at most once.
	BindImage(img Image, mem Memory) error

	// Queue returns the device's queue.
	Queue() Queue

	// Destroy invalidates the device and everything
	// created from it.
	Destroy()
}

// Queue is the interface that serializes work on the device.
type Queue interface {
	// Submit enqueues a submission that waits until every
	// semaphore in Waits is signaled and then signals all of
	// Signals, Natives and Fence. It returns as soon as the
	// submission is accepted; completion is observed through
	// the signaled primitives.
	Submit(SubmitInfo) error
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	Waits   []Semaphore
	Signals []Semaphore
	Natives []NativeFence
	Fence   Fence
}

// Semaphore is an opaque binary semaphore.
type Semaphore interface {
	Destroy()
}

// Fence is a fence that the application can query and
// wait on.
type Fence interface {
	// Signaled reports the fence state without blocking.
	Signaled() bool

	// Wait blocks until the fence is signaled.
	// A negative timeout means wait forever; zero means
	// do not wait. It returns ErrTimeout on expiry.
	Wait(timeout time.Duration) error

	// Reset returns the fence to the unsignaled state.
	Reset() error

	Destroy()
}

// NativeFence is a fence exported to the window system.
// The presentation engine waits on it natively, outside of
// API semantics, before handing an image to the compositor.
type NativeFence interface {
	// Wait blocks until the fence is signaled.
	// A negative timeout means wait forever.
	Wait(timeout time.Duration) error

	// Reset returns the fence to the unsignaled state so
	// it can be armed for the next present.
	Reset() error

	Destroy()
}

// Image is an opaque image object.
type Image interface {
	Destroy()
}

// Memory is an opaque memory allocation backing an image.
type Memory interface {
	Destroy()
}

// ImageInfo describes an image to create.
type ImageInfo struct {
	Width  int
	Height int
	// Format is a drm.Format value.
	Format int
}

// Drivers returns the registered Drivers.
// Client code imports specific driver packages, which
// register themselves on init.
func Drivers() []Driver {
	mu.Lock()
	defer mu.Unlock()
	drv := make([]Driver, len(drivers))
	copy(drv, drivers)
	return drv
}

// Register registers a Driver.
// Driver implementations are expected to call Register
// exactly once, from an init function.
// If a driver with the same name has already been
// registered, it will be replaced by drv.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	for i := range drivers {
		if drivers[i].Name() == drv.Name() {
			drivers[i] = drv
			log.Printf("[!] hal: driver '%s' replaced", drv.Name())
			return
		}
	}
	drivers = append(drivers, drv)
	log.Printf("hal: driver '%s' registered", drv.Name())
}

var (
	mu      sync.Mutex
	drivers = make([]Driver, 0, 1)
)
