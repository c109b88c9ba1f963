// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package layer

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/internal/config"
	"github.com/gviegas/wsishim/internal/log"
	"github.com/gviegas/wsishim/wsi"
)

// Forwarder is the dispatch to the underlying driver for
// handles the layer does not own. Those calls must reach the
// driver unmodified.
type Forwarder interface {
	CreateSwapchain(surface Handle, info wsi.CreateInfo) (Handle, error)
	DestroySwapchain(swapchain Handle)
	SwapchainImages(swapchain Handle) ([]hal.Image, error)
	AcquireNextImage(swapchain Handle, timeout time.Duration, sem hal.Semaphore, fence hal.Fence) (int, error)
	QueuePresent(batch PresentBatch) ([]error, error)
	SwapchainStatus(swapchain Handle) error
	BindImage(swapchain Handle, img hal.Image, index int) error
}

// PresentEntry names one swapchain and the parameters of the
// image presented on it.
type PresentEntry struct {
	Swapchain Handle
	Params    wsi.PresentParams
}

// PresentBatch is one present call covering one or more
// swapchains.
type PresentBatch struct {
	// Waits is the union of the caller's wait semaphores.
	Waits   []hal.Semaphore
	Entries []PresentEntry
}

// Device holds device-wide bookkeeping: the registry of
// layer-owned swapchains and the accessors the core calls.
type Device struct {
	inst *Instance
	dev  hal.Device
	fwd  Forwarder
	cfg  config.Config

	mu         sync.Mutex
	next       uint64
	swapchains map[Handle]*wsi.Swapchain
}

// NewDevice creates the device-side boundary state.
// fwd may be nil when there is no underlying driver to
// forward to; foreign handles are then rejected with
// wsi.ErrInvalidUsage.
func NewDevice(inst *Instance, dev hal.Device, fwd Forwarder, cfg config.Config) *Device {
	return &Device{
		inst:       inst,
		dev:        dev,
		fwd:        fwd,
		cfg:        cfg,
		swapchains: make(map[Handle]*wsi.Swapchain),
	}
}

// OwnsSwapchain reports whether the layer owns the handle.
func (d *Device) OwnsSwapchain(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.swapchains[h]
	return ok
}

// OwnsAllSwapchains reports whether the layer owns every
// handle. A present call mixing layer-owned and foreign
// swapchains cannot be split, so ownership is all or
// nothing.
func (d *Device) OwnsAllSwapchains(hs ...Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range hs {
		if _, ok := d.swapchains[h]; !ok {
			return false
		}
	}
	return true
}

func (d *Device) swapchain(h Handle) (*wsi.Swapchain, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.swapchains[h]
	return s, ok
}

// CreateSwapchain creates a swapchain on a surface.
// For layer-owned surfaces the swapchain always starts in
// FIFO mode; the requested mode is reached later through
// compatible mode switches. The configuration may force a
// different initial mode or cap the image count.
func (d *Device) CreateSwapchain(surface Handle, info wsi.CreateInfo) (Handle, error) {
	surf, ok := d.inst.Surface(surface)
	if !ok {
		if d.fwd != nil {
			return d.fwd.CreateSwapchain(surface, info)
		}
		return 0, wsi.ErrInvalidUsage
	}

	info.Mode = wsi.FIFO
	switch d.cfg.ForcePresentMode {
	case "mailbox":
		info.Mode = wsi.Mailbox
	}
	if d.cfg.MaxImageCount > 0 && info.ImageCount > d.cfg.MaxImageCount {
		log.Infof("image count capped at %d by configuration", d.cfg.MaxImageCount)
		info.ImageCount = d.cfg.MaxImageCount
	}
	info.RetainTiming = d.cfg.PresentTiming

	s, err := wsi.New(surf, d.dev, info)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	h := Handle(d.next)
	d.swapchains[h] = s
	return h, nil
}

// DestroySwapchain tears a swapchain down.
func (d *Device) DestroySwapchain(h Handle) {
	d.mu.Lock()
	s, ok := d.swapchains[h]
	delete(d.swapchains, h)
	d.mu.Unlock()
	if !ok {
		if d.fwd != nil {
			d.fwd.DestroySwapchain(h)
		}
		return
	}
	s.Destroy()
}

// SwapchainImages returns the swapchain's images.
func (d *Device) SwapchainImages(h Handle) ([]hal.Image, error) {
	s, ok := d.swapchain(h)
	if !ok {
		if d.fwd != nil {
			return d.fwd.SwapchainImages(h)
		}
		return nil, wsi.ErrInvalidUsage
	}
	return s.Images(), nil
}

// AcquireNextImage hands a free image of the swapchain to
// the caller.
func (d *Device) AcquireNextImage(h Handle, timeout time.Duration, sem hal.Semaphore, fence hal.Fence) (int, error) {
	s, ok := d.swapchain(h)
	if !ok {
		if d.fwd != nil {
			return d.fwd.AcquireNextImage(h, timeout, sem, fence)
		}
		return -1, wsi.ErrInvalidUsage
	}
	return s.AcquireNextImage(timeout, sem, fence)
}

// QueuePresent presents one image per named swapchain.
// When the batch covers more than one swapchain, a single
// aggregated wait submission gates every present; otherwise
// the caller's semaphores go straight to the one swapchain.
// The returned slice holds one result per entry.
func (d *Device) QueuePresent(b PresentBatch) ([]error, error) {
	hs := make([]Handle, len(b.Entries))
	for i := range b.Entries {
		hs[i] = b.Entries[i].Swapchain
	}
	if !d.OwnsAllSwapchains(hs...) {
		if d.fwd != nil {
			return d.fwd.QueuePresent(b)
		}
		return nil, wsi.ErrInvalidUsage
	}

	chains := make([]*wsi.Swapchain, len(b.Entries))
	params := make([]wsi.PresentParams, len(b.Entries))
	for i := range b.Entries {
		s, ok := d.swapchain(b.Entries[i].Swapchain)
		if !ok {
			return nil, wsi.ErrInvalidUsage
		}
		chains[i] = s
		params[i] = b.Entries[i].Params
	}
	return wsi.PresentAggregate(d.dev.Queue(), b.Waits, chains, params)
}

// SwapchainStatus surfaces the swapchain's sticky status
// without blocking.
func (d *Device) SwapchainStatus(h Handle) error {
	s, ok := d.swapchain(h)
	if !ok {
		if d.fwd != nil {
			return d.fwd.SwapchainStatus(h)
		}
		return wsi.ErrInvalidUsage
	}
	return s.Status()
}

// CreateAliasedImage creates an image object to be bound
// onto one of the swapchain's slots.
func (d *Device) CreateAliasedImage(h Handle) (hal.Image, error) {
	s, ok := d.swapchain(h)
	if !ok {
		return nil, wsi.ErrInvalidUsage
	}
	return s.CreateAliasedImage()
}

// BindInfo names one image-to-slot bind.
type BindInfo struct {
	Swapchain Handle
	Image     hal.Image
	Index     int
}

// BindImages binds images onto swapchain slots.
// Every bind is attempted even after a failure; the first
// error is returned once all have run.
func (d *Device) BindImages(binds []BindInfo) error {
	var first error
	for i := range binds {
		err := d.bindImage(binds[i])
		if err != nil {
			log.Errorf("image bind %d failed: %v", i, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (d *Device) bindImage(b BindInfo) error {
	s, ok := d.swapchain(b.Swapchain)
	if !ok {
		if d.fwd != nil {
			return d.fwd.BindImage(b.Swapchain, b.Image, b.Index)
		}
		return wsi.ErrInvalidUsage
	}
	if !s.IsBindAllowed(b.Index) {
		// Bind is not allowed on images that have not
		// been acquired first.
		return wsi.ErrInvalidUsage
	}
	return s.BindImage(b.Image, b.Index)
}

// IsBindAllowed reports whether a slot of a layer-owned
// swapchain can be bound to.
func (d *Device) IsBindAllowed(h Handle, index int) bool {
	s, ok := d.swapchain(h)
	return ok && s.IsBindAllowed(index)
}

// Destroy tears down every live swapchain and invalidates
// the device bookkeeping. Teardowns run in parallel; each
// one drains its own present queue and joins its own
// presentation goroutine.
func (d *Device) Destroy() {
	d.mu.Lock()
	chains := make([]*wsi.Swapchain, 0, len(d.swapchains))
	for h, s := range d.swapchains {
		chains = append(chains, s)
		delete(d.swapchains, h)
	}
	d.mu.Unlock()

	var g errgroup.Group
	for _, s := range chains {
		s := s
		g.Go(func() error {
			s.Destroy()
			return nil
		})
	}
	g.Wait()
}
