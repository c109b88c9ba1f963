// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/hal/null"
	"github.com/gviegas/wsishim/internal/drm"
)

func testDevice(t *testing.T) hal.Device {
	t.Helper()
	var drv null.Driver
	dev, err := drv.Open()
	if err != nil {
		t.Fatalf("null.Driver.Open() failed, cannot test swapchain\n%v", err)
	}
	t.Cleanup(drv.Close)
	return dev
}

// testSurface implements Surface for swapchain tests.
// Its backend records present order, can gate presents and
// can script per-present results.
type testSurface struct {
	backend testBackend
	props   testProps
	lost    atomic.Bool
}

func newTestSurface(dev hal.Device, minImages int) *testSurface {
	s := &testSurface{}
	s.backend.dev = dev
	s.props.s = s
	s.props.minImages = minImages
	return s
}

func (s *testSurface) Properties() SurfaceProperties { return &s.props }
func (s *testSurface) Backend() Backend              { return &s.backend }
func (s *testSurface) Lost() bool                    { return s.lost.Load() }

type testProps struct {
	s         *testSurface
	minImages int
	// compatAll makes every mode compatible with every
	// other, enabling mode-switch tests.
	compatAll bool
}

func (p *testProps) Capabilities() (Capabilities, error) {
	if p.s.Lost() {
		return Capabilities{}, ErrSurfaceLost
	}
	return Capabilities{
		MinImageCount:  p.minImages,
		MaxImageCount:  MaxImages,
		CurrentExtent:  Extent{Width: 64, Height: 64},
		MinExtent:      Extent{Width: 1, Height: 1},
		MaxExtent:      Extent{Width: 4096, Height: 4096},
		SupportedAlpha: []AlphaMode{AlphaOpaque},
	}, nil
}

func (p *testProps) Formats() []drm.Format {
	return []drm.Format{drm.BGRA8Unorm, drm.RGBA8Unorm}
}

func (p *testProps) PresentModes() []PresentMode {
	return []PresentMode{FIFO, Mailbox}
}

func (p *testProps) CompatibleModes(m PresentMode) []PresentMode {
	if p.compatAll {
		return []PresentMode{FIFO, Mailbox}
	}
	return []PresentMode{m}
}

func (p *testProps) ScalingCaps() ScalingCaps {
	return ScalingCaps{
		Scaling:  []Scaling{ScalingOneToOne},
		GravityX: []Gravity{GravityMin},
		GravityY: []Gravity{GravityMin},
	}
}

// testBacking tags each backing with its allocation index,
// which matches the slot index since slots allocate in
// order.
type testBacking struct {
	id  int
	mem hal.Memory
}

func (b *testBacking) Memory() hal.Memory { return b.mem }
func (b *testBacking) Destroy()           { b.mem.Destroy() }

type testBackend struct {
	dev hal.Device

	mu    sync.Mutex
	next  int
	calls int
	order []int
	// errs scripts the result of each present, in call
	// order. Calls beyond the script succeed.
	errs []error
	// gate, when not nil, blocks each present until a
	// token is received.
	gate chan struct{}
	// onPresent, when not nil, runs at the start of each
	// present with the 1-based call number.
	onPresent func(call int)
}

func (b *testBackend) AllocBacking(e Extent, f drm.Format) (Backing, error) {
	mem, err := b.dev.NewMemory(e.Width * e.Height * 4)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.mu.Unlock()
	return &testBacking{id: id, mem: mem}, nil
}

func (b *testBackend) Present(bk Backing) error {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.order = append(b.order, bk.(*testBacking).id)
	var err error
	if call-1 < len(b.errs) {
		err = b.errs[call-1]
	}
	gate := b.gate
	hook := b.onPresent
	b.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (b *testBackend) presentCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *testBackend) presentOrder() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.order...)
}

func newTestSwapchain(t *testing.T, dev hal.Device, surf *testSurface, n int) *Swapchain {
	t.Helper()
	s, err := New(surf, dev, CreateInfo{
		Format:     drm.BGRA8Unorm,
		ImageCount: n,
		Mode:       FIFO,
	})
	if err != nil {
		t.Fatalf("New() failed, cannot test swapchain\n%v", err)
	}
	t.Cleanup(s.Destroy)
	return s
}

// signal satisfies a semaphore the way a rendering
// submission would.
func signal(t *testing.T, dev hal.Device, sem hal.Semaphore) {
	t.Helper()
	if err := dev.Queue().Submit(hal.SubmitInfo{Signals: []hal.Semaphore{sem}}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
}
