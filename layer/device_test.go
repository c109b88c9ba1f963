// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package layer

import (
	"errors"
	"testing"
	"time"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/hal/null"
	"github.com/gviegas/wsishim/internal/config"
	"github.com/gviegas/wsishim/internal/drm"
	"github.com/gviegas/wsishim/wsi"
	"github.com/gviegas/wsishim/wsi/headless"
)

func testDevice(t *testing.T) hal.Device {
	t.Helper()
	var drv null.Driver
	dev, err := drv.Open()
	if err != nil {
		t.Fatalf("null.Driver.Open() failed, cannot test layer\n%v", err)
	}
	t.Cleanup(drv.Close)
	return dev
}

func testLayer(t *testing.T, fwd Forwarder, cfg config.Config) (*Device, Handle) {
	t.Helper()
	dev := testDevice(t)
	inst := NewInstance()
	surf := inst.RegisterSurface(headless.NewSurface(dev, 64, 64))
	d := NewDevice(inst, dev, fwd, cfg)
	t.Cleanup(d.Destroy)
	return d, surf
}

func createInfo() wsi.CreateInfo {
	return wsi.CreateInfo{
		Format:     drm.BGRA8Unorm,
		ImageCount: 3,
		Mode:       wsi.FIFO,
	}
}

func TestSurfaceRegistry(t *testing.T) {
	dev := testDevice(t)
	inst := NewInstance()
	h := inst.RegisterSurface(headless.NewSurface(dev, 64, 64))
	if h == 0 {
		t.Fatal("RegisterSurface() vended the zero handle")
	}
	if !inst.OwnsSurface(h) {
		t.Errorf("OwnsSurface(%d)\nhave false\nwant true", h)
	}
	if inst.OwnsSurface(h + 1) {
		t.Errorf("OwnsSurface(%d)\nhave true\nwant false", h+1)
	}
	inst.RemoveSurface(h)
	if inst.OwnsSurface(h) {
		t.Errorf("OwnsSurface(%d) after removal\nhave true\nwant false", h)
	}
}

func TestCreateSwapchainForcesFIFO(t *testing.T) {
	d, surf := testLayer(t, nil, config.Config{})

	info := createInfo()
	info.Mode = wsi.Mailbox
	h, err := d.CreateSwapchain(surf, info)
	if err != nil {
		t.Fatalf("CreateSwapchain()\nhave _, %v\nwant _, nil", err)
	}
	s, ok := d.swapchain(h)
	if !ok {
		t.Fatal("created swapchain not owned by the layer")
	}
	// The mode the application asked for is irrelevant;
	// every swapchain starts in FIFO.
	if m := s.Mode(); m != wsi.FIFO {
		t.Errorf("Mode()\nhave %v\nwant %v", m, wsi.FIFO)
	}
}

func TestCreateSwapchainConfig(t *testing.T) {
	cfg := config.Config{ForcePresentMode: "mailbox", MaxImageCount: 2}
	d, surf := testLayer(t, nil, cfg)

	h, err := d.CreateSwapchain(surf, createInfo())
	if err != nil {
		t.Fatalf("CreateSwapchain()\nhave _, %v\nwant _, nil", err)
	}
	s, ok := d.swapchain(h)
	if !ok {
		t.Fatal("created swapchain not owned by the layer")
	}
	if m := s.Mode(); m != wsi.Mailbox {
		t.Errorf("Mode() with forced override\nhave %v\nwant %v", m, wsi.Mailbox)
	}
	imgs, err := d.SwapchainImages(h)
	if err != nil {
		t.Fatalf("SwapchainImages()\nhave _, %v\nwant _, nil", err)
	}
	if len(imgs) != 2 {
		t.Errorf("image count with configured cap\nhave %d\nwant 2", len(imgs))
	}
}

func TestQueuePresent(t *testing.T) {
	d, surf := testLayer(t, nil, config.Config{})
	dev := d.dev

	h, err := d.CreateSwapchain(surf, createInfo())
	if err != nil {
		t.Fatalf("CreateSwapchain()\nhave _, %v\nwant _, nil", err)
	}
	idx, err := d.AcquireNextImage(h, wsi.Forever, nil, nil)
	if err != nil {
		t.Fatalf("AcquireNextImage()\nhave _, %v\nwant _, nil", err)
	}
	fence, err := dev.NewFence(false)
	if err != nil {
		t.Fatalf("NewFence(false)\nhave %v\nwant nil", err)
	}
	defer fence.Destroy()

	results, err := d.QueuePresent(PresentBatch{
		Entries: []PresentEntry{{
			Swapchain: h,
			Params:    wsi.PresentParams{ImageIndex: idx, Fence: fence},
		}},
	})
	if err != nil {
		t.Fatalf("QueuePresent()\nhave _, %v\nwant _, nil", err)
	}
	if len(results) != 1 || results[0] != nil {
		t.Errorf("QueuePresent() results\nhave %v\nwant [<nil>]", results)
	}
	if err := fence.Wait(time.Second); err != nil {
		t.Fatalf("present fence Wait()\nhave %v\nwant nil", err)
	}
	if err := d.SwapchainStatus(h); err != nil {
		t.Errorf("SwapchainStatus()\nhave %v\nwant nil", err)
	}
}

func TestQueuePresentMultiple(t *testing.T) {
	d, surf := testLayer(t, nil, config.Config{})
	dev := d.dev

	surf2 := d.inst.RegisterSurface(headless.NewSurface(dev, 64, 64))
	var entries [2]PresentEntry
	var fences [2]hal.Fence
	for i, sh := range []Handle{surf, surf2} {
		h, err := d.CreateSwapchain(sh, createInfo())
		if err != nil {
			t.Fatalf("CreateSwapchain()\nhave _, %v\nwant _, nil", err)
		}
		idx, err := d.AcquireNextImage(h, wsi.Forever, nil, nil)
		if err != nil {
			t.Fatalf("AcquireNextImage()\nhave _, %v\nwant _, nil", err)
		}
		f, err := dev.NewFence(false)
		if err != nil {
			t.Fatalf("NewFence(false)\nhave %v\nwant nil", err)
		}
		defer f.Destroy()
		fences[i] = f
		entries[i] = PresentEntry{
			Swapchain: h,
			Params:    wsi.PresentParams{ImageIndex: idx, Fence: f},
		}
	}

	render, err := dev.NewSemaphore()
	if err != nil {
		t.Fatalf("NewSemaphore()\nhave %v\nwant nil", err)
	}
	results, err := d.QueuePresent(PresentBatch{
		Waits:   []hal.Semaphore{render},
		Entries: entries[:],
	})
	if err != nil {
		t.Fatalf("QueuePresent()\nhave _, %v\nwant _, nil", err)
	}
	for i, r := range results {
		if r != nil {
			t.Errorf("QueuePresent() result %d\nhave %v\nwant nil", i, r)
		}
	}
	if err := dev.Queue().Submit(hal.SubmitInfo{Signals: []hal.Semaphore{render}}); err != nil {
		t.Fatalf("Submit()\nhave %v\nwant nil", err)
	}
	for i := range fences {
		if err := fences[i].Wait(time.Second); err != nil {
			t.Errorf("present fence %d Wait()\nhave %v\nwant nil", i, err)
		}
	}
}

// stubForwarder records which entrypoints were dispatched to
// the underlying driver.
type stubForwarder struct {
	created   bool
	destroyed bool
	images    bool
	acquired  bool
	presented bool
	status    bool
	bound     bool
}

func (f *stubForwarder) CreateSwapchain(Handle, wsi.CreateInfo) (Handle, error) {
	f.created = true
	return 1000, nil
}

func (f *stubForwarder) DestroySwapchain(Handle) { f.destroyed = true }

func (f *stubForwarder) SwapchainImages(Handle) ([]hal.Image, error) {
	f.images = true
	return nil, nil
}

func (f *stubForwarder) AcquireNextImage(Handle, time.Duration, hal.Semaphore, hal.Fence) (int, error) {
	f.acquired = true
	return 0, nil
}

func (f *stubForwarder) QueuePresent(PresentBatch) ([]error, error) {
	f.presented = true
	return nil, nil
}

func (f *stubForwarder) SwapchainStatus(Handle) error {
	f.status = true
	return nil
}

func (f *stubForwarder) BindImage(Handle, hal.Image, int) error {
	f.bound = true
	return nil
}

func TestForwarding(t *testing.T) {
	var fwd stubForwarder
	d, _ := testLayer(t, &fwd, config.Config{})

	// A foreign surface handle; the layer never saw it.
	const foreign Handle = 12345
	h, err := d.CreateSwapchain(foreign, createInfo())
	if err != nil || h != 1000 || !fwd.created {
		t.Errorf("CreateSwapchain() of foreign surface\nhave %d, %v, forwarded %t\nwant 1000, nil, forwarded true",
			h, err, fwd.created)
	}
	if d.OwnsSwapchain(h) {
		t.Error("OwnsSwapchain() of forwarded handle\nhave true\nwant false")
	}
	if _, err := d.SwapchainImages(h); err != nil || !fwd.images {
		t.Errorf("SwapchainImages() of foreign handle\nhave %v, forwarded %t\nwant nil, forwarded true", err, fwd.images)
	}
	if _, err := d.AcquireNextImage(h, wsi.DontWait, nil, nil); err != nil || !fwd.acquired {
		t.Errorf("AcquireNextImage() of foreign handle\nhave %v, forwarded %t\nwant nil, forwarded true", err, fwd.acquired)
	}
	if _, err := d.QueuePresent(PresentBatch{Entries: []PresentEntry{{Swapchain: h}}}); err != nil || !fwd.presented {
		t.Errorf("QueuePresent() of foreign handle\nhave %v, forwarded %t\nwant nil, forwarded true", err, fwd.presented)
	}
	if err := d.SwapchainStatus(h); err != nil || !fwd.status {
		t.Errorf("SwapchainStatus() of foreign handle\nhave %v, forwarded %t\nwant nil, forwarded true", err, fwd.status)
	}
	if err := d.BindImages([]BindInfo{{Swapchain: h}}); err != nil || !fwd.bound {
		t.Errorf("BindImages() of foreign handle\nhave %v, forwarded %t\nwant nil, forwarded true", err, fwd.bound)
	}
	d.DestroySwapchain(h)
	if !fwd.destroyed {
		t.Error("DestroySwapchain() of foreign handle not forwarded")
	}
}

func TestForeignHandleNoForwarder(t *testing.T) {
	d, _ := testLayer(t, nil, config.Config{})

	const foreign Handle = 12345
	if _, err := d.CreateSwapchain(foreign, createInfo()); !errors.Is(err, wsi.ErrInvalidUsage) {
		t.Errorf("CreateSwapchain()\nhave _, %v\nwant _, %v", err, wsi.ErrInvalidUsage)
	}
	if _, err := d.SwapchainImages(foreign); !errors.Is(err, wsi.ErrInvalidUsage) {
		t.Errorf("SwapchainImages()\nhave _, %v\nwant _, %v", err, wsi.ErrInvalidUsage)
	}
	if _, err := d.AcquireNextImage(foreign, wsi.DontWait, nil, nil); !errors.Is(err, wsi.ErrInvalidUsage) {
		t.Errorf("AcquireNextImage()\nhave _, %v\nwant _, %v", err, wsi.ErrInvalidUsage)
	}
	if _, err := d.QueuePresent(PresentBatch{Entries: []PresentEntry{{Swapchain: foreign}}}); !errors.Is(err, wsi.ErrInvalidUsage) {
		t.Errorf("QueuePresent()\nhave _, %v\nwant _, %v", err, wsi.ErrInvalidUsage)
	}
	if err := d.SwapchainStatus(foreign); !errors.Is(err, wsi.ErrInvalidUsage) {
		t.Errorf("SwapchainStatus()\nhave %v\nwant %v", err, wsi.ErrInvalidUsage)
	}
}

func TestQueuePresentMixedOwnership(t *testing.T) {
	var fwd stubForwarder
	d, surf := testLayer(t, &fwd, config.Config{})

	h, err := d.CreateSwapchain(surf, createInfo())
	if err != nil {
		t.Fatalf("CreateSwapchain()\nhave _, %v\nwant _, nil", err)
	}
	// A batch mixing a layer-owned and a foreign swapchain
	// cannot be split; the whole batch is forwarded.
	batch := PresentBatch{Entries: []PresentEntry{
		{Swapchain: h},
		{Swapchain: 12345},
	}}
	if _, err := d.QueuePresent(batch); err != nil {
		t.Fatalf("QueuePresent()\nhave _, %v\nwant _, nil", err)
	}
	if !fwd.presented {
		t.Error("mixed-ownership batch not forwarded")
	}
}

func TestBindImages(t *testing.T) {
	d, surf := testLayer(t, nil, config.Config{})

	h, err := d.CreateSwapchain(surf, createInfo())
	if err != nil {
		t.Fatalf("CreateSwapchain()\nhave _, %v\nwant _, nil", err)
	}
	img, err := d.CreateAliasedImage(h)
	if err != nil {
		t.Fatalf("CreateAliasedImage()\nhave _, %v\nwant _, nil", err)
	}
	defer img.Destroy()
	img2, err := d.CreateAliasedImage(h)
	if err != nil {
		t.Fatalf("CreateAliasedImage()\nhave _, %v\nwant _, nil", err)
	}
	defer img2.Destroy()

	idx, err := d.AcquireNextImage(h, wsi.Forever, nil, nil)
	if err != nil {
		t.Fatalf("AcquireNextImage()\nhave _, %v\nwant _, nil", err)
	}
	if !d.IsBindAllowed(h, idx) {
		t.Errorf("IsBindAllowed(%d, %d)\nhave false\nwant true", h, idx)
	}

	// Every bind is attempted even after a failure: the bind
	// onto the unacquired slot fails, the other lands.
	bad := (idx + 1) % 3
	err = d.BindImages([]BindInfo{
		{Swapchain: h, Image: img, Index: bad},
		{Swapchain: h, Image: img2, Index: idx},
	})
	if !errors.Is(err, wsi.ErrInvalidUsage) {
		t.Errorf("BindImages() with one invalid bind\nhave %v\nwant %v", err, wsi.ErrInvalidUsage)
	}
	// The second image is now bound; binding it again is a
	// driver error, proving the attempt was made.
	if err := d.BindImages([]BindInfo{{Swapchain: h, Image: img2, Index: idx}}); err == nil {
		t.Error("BindImages() of an already bound image\nhave nil\nwant non-nil")
	}
}

func TestDeviceDestroy(t *testing.T) {
	d, surf := testLayer(t, nil, config.Config{})

	var hs [3]Handle
	for i := range hs {
		h, err := d.CreateSwapchain(surf, createInfo())
		if err != nil {
			t.Fatalf("CreateSwapchain()\nhave _, %v\nwant _, nil", err)
		}
		hs[i] = h
	}
	d.Destroy()
	for _, h := range hs {
		if d.OwnsSwapchain(h) {
			t.Errorf("OwnsSwapchain(%d) after device teardown\nhave true\nwant false", h)
		}
	}
}

func TestGroupPresent(t *testing.T) {
	d, surf := testLayer(t, nil, config.Config{})

	caps := d.GroupPresentCaps()
	if caps.Modes != GroupPresentLocal {
		t.Errorf("GroupPresentCaps().Modes\nhave %d\nwant %d", caps.Modes, GroupPresentLocal)
	}
	if caps.PresentMask[0] != 1 {
		t.Errorf("GroupPresentCaps().PresentMask[0]\nhave %d\nwant 1", caps.PresentMask[0])
	}
	for i := 1; i < MaxGroupSize; i++ {
		if caps.PresentMask[i] != 0 {
			t.Errorf("GroupPresentCaps().PresentMask[%d]\nhave %d\nwant 0", i, caps.PresentMask[i])
		}
	}

	rects, err := d.PresentRectangles(surf)
	if err != nil {
		t.Fatalf("PresentRectangles()\nhave _, %v\nwant _, nil", err)
	}
	want := []Rect{{Extent: wsi.Extent{Width: 64, Height: 64}}}
	if len(rects) != 1 || rects[0] != want[0] {
		t.Errorf("PresentRectangles()\nhave %v\nwant %v", rects, want)
	}
	if _, err := d.PresentRectangles(12345); !errors.Is(err, wsi.ErrInvalidUsage) {
		t.Errorf("PresentRectangles() of foreign surface\nhave _, %v\nwant _, %v", err, wsi.ErrInvalidUsage)
	}
}
