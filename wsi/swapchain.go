// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/internal/drm"
	"github.com/gviegas/wsishim/internal/log"
)

// CreateInfo is the snapshot of parameters a swapchain is
// created with.
type CreateInfo struct {
	Extent     Extent
	Format     drm.Format
	ImageCount int
	Mode       PresentMode
	Alpha      AlphaMode

	// RetainTiming enables retention of presentation timing
	// hints on queued presents.
	RetainTiming bool
}

// TimingInfo carries presentation timing hints for one
// present request. Hints are best effort.
type TimingInfo struct {
	// TargetTime is the earliest time the image should
	// reach the display.
	TargetTime time.Time
}

// PresentParams describes the presentation of one image.
type PresentParams struct {
	// ImageIndex is the slot to present. It must be in the
	// acquired state.
	ImageIndex int

	// PresentID is the caller-supplied present identifier.
	// Zero means none.
	PresentID uint64

	// Fence, if not nil, is signaled when the present
	// lands.
	Fence hal.Fence

	// Mode switches the active present mode for this and
	// subsequent presents when SwitchMode is set. The new
	// mode must be compatible with the active one.
	Mode       PresentMode
	SwitchMode bool

	// Timing holds optional presentation timing hints.
	Timing *TimingInfo

	// Waits are the caller's wait semaphores. The native
	// present is not issued until all are satisfied.
	Waits []hal.Semaphore
}

// Swapchain is a pool of presentable images bound to one
// surface. Its methods are safe for concurrent use.
type Swapchain struct {
	dev    hal.Device
	surf   Surface
	info   CreateInfo
	store  *slotStore
	bridge syncBridge

	pending chan presentRequest
	quit    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	mode    PresentMode
	status  error
	fatal   bool
	closed  bool
	nextSeq uint64
	lastID  uint64
	idCond  sync.Cond
}

// New creates a swapchain on surf with images allocated from
// the surface's backend and synchronization primitives from
// dev.
func New(surf Surface, dev hal.Device, info CreateInfo) (*Swapchain, error) {
	props := surf.Properties()
	caps, err := props.Capabilities()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(props.PresentModes(), info.Mode) {
		return nil, ErrInvalidUsage
	}
	if !slices.Contains(props.Formats(), info.Format) {
		return nil, ErrInvalidUsage
	}

	n := info.ImageCount
	if n < caps.MinImageCount {
		n = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	if n > MaxImages {
		n = MaxImages
	}
	info.ImageCount = n

	if info.Extent == (Extent{}) {
		info.Extent = caps.CurrentExtent
	}

	s := &Swapchain{
		dev:     dev,
		surf:    surf,
		info:    info,
		store:   newSlotStore(n),
		bridge:  syncBridge{q: dev.Queue()},
		pending: make(chan presentRequest, n),
		quit:    make(chan struct{}),
		mode:    info.Mode,
	}
	s.idCond.L = &s.mu

	undo := func(i int) {
		for j := 0; j < i; j++ {
			s.destroySlot(&s.store.slots[j])
		}
	}
	for i := range s.store.slots {
		sl := &s.store.slots[i]
		if sl.backing, err = surf.Backend().AllocBacking(info.Extent, info.Format); err != nil {
			undo(i)
			return nil, err
		}
		if sl.image, err = dev.NewImage(imageInfo(info)); err != nil {
			undo(i + 1)
			return nil, err
		}
		if err = dev.BindImage(sl.image, sl.backing.Memory()); err != nil {
			undo(i + 1)
			return nil, err
		}
		if sl.sem, err = dev.NewSemaphore(); err != nil {
			undo(i + 1)
			return nil, err
		}
		if sl.native, err = dev.NewNativeFence(); err != nil {
			undo(i + 1)
			return nil, err
		}
	}

	s.wg.Add(1)
	go s.presentLoop()
	log.Debugf("swapchain created: %dx%d %v, %d images, %v",
		info.Extent.Width, info.Extent.Height, info.Format, n, info.Mode)
	return s, nil
}

func imageInfo(info CreateInfo) hal.ImageInfo {
	return hal.ImageInfo{
		Width:  info.Extent.Width,
		Height: info.Extent.Height,
		Format: int(info.Format),
	}
}

func (s *Swapchain) destroySlot(sl *slot) {
	if sl.native != nil {
		sl.native.Destroy()
	}
	if sl.sem != nil {
		sl.sem.Destroy()
	}
	if sl.image != nil {
		sl.image.Destroy()
	}
	if sl.backing != nil {
		sl.backing.Destroy()
	}
	*sl = slot{}
}

// ImageCount returns the number of images in the swapchain.
func (s *Swapchain) ImageCount() int { return len(s.store.slots) }

// Images returns the swapchain's image objects, indexed by
// slot.
func (s *Swapchain) Images() []hal.Image {
	imgs := make([]hal.Image, len(s.store.slots))
	for i := range s.store.slots {
		imgs[i] = s.store.slots[i].image
	}
	return imgs
}

// Mode returns the active present mode.
func (s *Swapchain) Mode() PresentMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Extent returns the extent snapshot taken at creation.
func (s *Swapchain) Extent() Extent { return s.info.Extent }

// Format returns the image format.
func (s *Swapchain) Format() drm.Format { return s.info.Format }

// AcquireNextImage hands a free image slot to the caller.
// The returned index identifies the slot; sem and fence, when
// not nil, are signaled once the slot's previous present has
// released its backing, and must be waited on before the
// caller reuses it. See acquire for the timeout semantics.
func (s *Swapchain) AcquireNextImage(timeout time.Duration, sem hal.Semaphore, fence hal.Fence) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return -1, ErrInvalidUsage
	}
	if s.fatal {
		st := s.status
		s.mu.Unlock()
		return -1, st
	}
	s.mu.Unlock()
	if s.surf.Lost() {
		s.store.invalidate()
	}
	index, err := s.store.acquire(timeout)
	if err != nil {
		return -1, err
	}
	if err := s.bridge.signalAcquire(sem, fence); err != nil {
		s.store.release(index)
		return -1, err
	}
	return index, nil
}

// Present enqueues the presentation of one image.
// This is the single-swapchain fast path: the caller's wait
// semaphores go straight to this swapchain's bridge. The call
// returns as soon as the request is queued; the native
// present happens on the swapchain's presentation goroutine.
// A sticky recoverable status is returned (and preserved)
// once set, so callers learn that recreation is advisable.
func (s *Swapchain) Present(p PresentParams) error {
	return s.present(p, false)
}

func (s *Swapchain) present(p PresentParams, useImageSem bool) error {
	if p.ImageIndex < 0 || p.ImageIndex >= len(s.store.slots) {
		return ErrInvalidUsage
	}
	if p.SwitchMode {
		// Mode overrides are validated here, at present
		// time, never on the presentation goroutine.
		if !slices.Contains(s.surf.Properties().CompatibleModes(s.Mode()), p.Mode) {
			return ErrInvalidUsage
		}
	}
	if !s.info.RetainTiming {
		p.Timing = nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrInvalidUsage
	}
	if s.fatal {
		st := s.status
		s.mu.Unlock()
		return st
	}
	sticky := s.status
	s.mu.Unlock()

	if err := s.enqueue(p, useImageSem); err != nil {
		return err
	}
	return sticky
}

// enqueue transitions the slot to queued, arms the bridge
// and appends the request, all under the ordering lock so
// sequence numbers match queue order.
func (s *Swapchain) enqueue(p PresentParams, useImageSem bool) error {
	sl := &s.store.slots[p.ImageIndex]

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.markQueued(p.ImageIndex, s.nextSeq+1, p.Fence); err != nil {
		return err
	}
	waits := p.Waits
	if useImageSem {
		waits = []hal.Semaphore{sl.sem}
	}
	if err := s.bridge.arm(waits, sl.native); err != nil {
		s.store.unmarkQueued(p.ImageIndex)
		return err
	}
	s.nextSeq++
	req := presentRequest{
		slot:       p.ImageIndex,
		seq:        s.nextSeq,
		presentID:  p.PresentID,
		fence:      p.Fence,
		mode:       p.Mode,
		switchMode: p.SwitchMode,
		timing:     p.Timing,
	}
	select {
	case s.pending <- req:
	default:
		// The queue bound equals the slot count and each
		// slot has at most one outstanding request, so a
		// full queue means the bound was miscomputed.
		s.store.unmarkQueued(p.ImageIndex)
		s.nextSeq--
		return ErrNoMemory
	}
	return nil
}

// Status surfaces the sticky status recorded by the
// presentation goroutine without blocking.
// It returns nil, ErrOutOfDate, ErrSurfaceLost or
// ErrDeviceLost.
func (s *Swapchain) Status() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastPresented returns the highest present identifier whose
// native present has completed.
func (s *Swapchain) LastPresented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// WaitForPresent blocks until a present with identifier id or
// greater completes. A negative timeout means wait forever.
// It returns ErrTimeout on expiry and the sticky fatal status
// if presentation is disabled before id completes.
func (s *Swapchain) WaitForPresent(id uint64, timeout time.Duration) error {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
		t := time.AfterFunc(timeout, func() {
			s.mu.Lock()
			s.idCond.Broadcast()
			s.mu.Unlock()
		})
		defer t.Stop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.lastID < id {
		if s.fatal {
			return s.status
		}
		if s.closed {
			return ErrInvalidUsage
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return ErrTimeout
		}
		s.idCond.Wait()
	}
	return nil
}

// CreateAliasedImage creates an image object with the
// swapchain's parameters and no memory bound. Callers bind it
// onto a slot's backing with BindImage.
func (s *Swapchain) CreateAliasedImage() (hal.Image, error) {
	return s.dev.NewImage(imageInfo(s.info))
}

// IsBindAllowed reports whether a slot can have an image
// bound to its backing. Binding is only allowed while the
// slot is acquired.
func (s *Swapchain) IsBindAllowed(index int) bool {
	if index < 0 || index >= len(s.store.slots) {
		return false
	}
	return s.store.state(index) == slotAcquired
}

// BindImage binds an aliased image onto a slot's backing
// memory. Bind before acquire is a contract violation.
func (s *Swapchain) BindImage(img hal.Image, index int) error {
	if !s.IsBindAllowed(index) {
		return ErrInvalidUsage
	}
	return s.dev.BindImage(img, s.store.slots[index].backing.Memory())
}

// Destroy tears the swapchain down.
// Requests still sitting in the queue are drained without
// presenting; their waits are honored so no synchronization
// primitive leaks. Destroy blocks until the presentation
// goroutine has exited before releasing slot resources.
func (s *Swapchain) Destroy() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.idCond.Broadcast()
	s.mu.Unlock()

	close(s.quit)
	s.wg.Wait()

	s.store.forceFree()
	for i := range s.store.slots {
		s.destroySlot(&s.store.slots[i])
	}
	log.Debugf("swapchain destroyed")
}
