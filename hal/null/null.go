// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package null implements hal on top of plain process
// primitives, with no device underneath.
// It exists so the layer and its tests can run on machines
// that have no usable GPU driver, and so multiple simulated
// devices can coexist in a single binary.
package null

import (
	"errors"
	"sync"
	"time"

	"github.com/gviegas/wsishim/hal"
)

// driverName is the name reported by Driver.Name.
const driverName = "null"

func init() {
	hal.Register(&Driver{})
}

// Driver implements hal.Driver.
// The zero value is ready to open.
type Driver struct {
	mu  sync.Mutex
	dev *device
}

// Open initializes the driver.
func (d *Driver) Open() (hal.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		d.dev = &device{}
		d.dev.que.d = d.dev
	}
	return d.dev, nil
}

// Name returns the name of the driver.
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		d.dev.Destroy()
		d.dev = nil
	}
}

// device implements hal.Device.
type device struct {
	que  queue
	mu   sync.Mutex
	dead bool
}

var errDeviceDestroyed = errors.New("null: device destroyed")

func (d *device) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dead {
		return errDeviceDestroyed
	}
	return nil
}

func (d *device) NewSemaphore() (hal.Semaphore, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return &semaphore{ch: make(chan struct{}, 1)}, nil
}

func (d *device) NewFence(signaled bool) (hal.Fence, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	f := &fence{done: make(chan struct{})}
	if signaled {
		f.signal()
	}
	return f, nil
}

func (d *device) NewNativeFence() (hal.NativeFence, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return newNativeFence()
}

func (d *device) NewImage(info hal.ImageInfo) (hal.Image, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if info.Width < 1 || info.Height < 1 {
		return nil, errors.New("null: invalid image extent")
	}
	return &image{info: info}, nil
}

func (d *device) NewMemory(size int) (hal.Memory, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, hal.ErrNoHostMemory
	}
	return &memory{size: size}, nil
}

func (d *device) BindImage(img hal.Image, mem hal.Memory) error {
	i, ok := img.(*image)
	if !ok {
		panic("null: foreign image")
	}
	m, ok := mem.(*memory)
	if !ok {
		panic("null: foreign memory")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.mem != nil {
		return errors.New("null: image already bound")
	}
	i.mem = m
	return nil
}

func (d *device) Queue() hal.Queue { return &d.que }

func (d *device) Destroy() {
	d.mu.Lock()
	d.dead = true
	d.mu.Unlock()
}

// queue implements hal.Queue.
// Each submission runs on its own goroutine; ordering
// between submissions is established solely through the
// semaphores they wait on and signal.
type queue struct {
	d  *device
	wg sync.WaitGroup
}

func (q *queue) Submit(si hal.SubmitInfo) error {
	if err := q.d.check(); err != nil {
		return err
	}
	waits := make([]*semaphore, len(si.Waits))
	for i, w := range si.Waits {
		s, ok := w.(*semaphore)
		if !ok {
			panic("null: foreign semaphore")
		}
		waits[i] = s
	}
	signals := make([]*semaphore, len(si.Signals))
	for i, x := range si.Signals {
		s, ok := x.(*semaphore)
		if !ok {
			panic("null: foreign semaphore")
		}
		signals[i] = s
	}
	natives := make([]*nativeFence, len(si.Natives))
	for i, x := range si.Natives {
		f, ok := x.(*nativeFence)
		if !ok {
			panic("null: foreign native fence")
		}
		natives[i] = f
	}
	var fen *fence
	if si.Fence != nil {
		f, ok := si.Fence.(*fence)
		if !ok {
			panic("null: foreign fence")
		}
		fen = f
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for _, w := range waits {
			<-w.ch
		}
		for _, s := range signals {
			s.signal()
		}
		for _, f := range natives {
			f.signal()
		}
		if fen != nil {
			fen.signal()
		}
	}()
	return nil
}

// semaphore implements hal.Semaphore as a binary semaphore.
type semaphore struct {
	ch chan struct{}
}

func (s *semaphore) signal() {
	select {
	case s.ch <- struct{}{}:
	default:
		// Signaling a signaled binary semaphore is a
		// contract violation on the submitter's side.
	}
}

func (s *semaphore) Destroy() {}

// fence implements hal.Fence.
type fence struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
}

func (f *fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		f.set = true
		close(f.done)
	}
}

func (f *fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

func (f *fence) Wait(timeout time.Duration) error {
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

func (f *fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		f.set = false
		f.done = make(chan struct{})
	}
	return nil
}

func (f *fence) Destroy() {}

// image implements hal.Image.
type image struct {
	info hal.ImageInfo
	mu   sync.Mutex
	mem  *memory
}

func (i *image) Destroy() {
	i.mu.Lock()
	i.mem = nil
	i.mu.Unlock()
}

// memory implements hal.Memory.
type memory struct {
	size int
}

func (m *memory) Destroy() {}
