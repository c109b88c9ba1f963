// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package headless_test

import (
	"errors"
	"testing"
	"time"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/hal/null"
	"github.com/gviegas/wsishim/internal/drm"
	"github.com/gviegas/wsishim/wsi"
	"github.com/gviegas/wsishim/wsi/headless"
)

func testDevice(t *testing.T) hal.Device {
	t.Helper()
	var drv null.Driver
	dev, err := drv.Open()
	if err != nil {
		t.Fatalf("null.Driver.Open() failed\n%v", err)
	}
	t.Cleanup(drv.Close)
	return dev
}

// The headless surface drives a full swapchain round trip
// with no window system at all.
func TestSwapchainRoundTrip(t *testing.T) {
	dev := testDevice(t)
	surf := headless.NewSurface(dev, 256, 256)

	s, err := wsi.New(surf, dev, wsi.CreateInfo{
		Format:     drm.BGRA8Unorm,
		ImageCount: 2,
		Mode:       wsi.FIFO,
	})
	if err != nil {
		t.Fatalf("New()\nhave _, %v\nwant _, nil", err)
	}
	defer s.Destroy()

	for i := 0; i < 4; i++ {
		idx, err := s.AcquireNextImage(wsi.Forever, nil, nil)
		if err != nil {
			t.Fatalf("AcquireNextImage() #%d\nhave _, %v\nwant _, nil", i, err)
		}
		fence, err := dev.NewFence(false)
		if err != nil {
			t.Fatalf("NewFence(false)\nhave %v\nwant nil", err)
		}
		if err := s.Present(wsi.PresentParams{ImageIndex: idx, Fence: fence}); err != nil {
			t.Fatalf("Present() #%d\nhave %v\nwant nil", i, err)
		}
		if err := fence.Wait(time.Second); err != nil {
			t.Fatalf("present fence Wait() #%d\nhave %v\nwant nil", i, err)
		}
		fence.Destroy()
	}
	if err := s.Status(); err != nil {
		t.Errorf("Status()\nhave %v\nwant nil", err)
	}
}

func TestInvalidate(t *testing.T) {
	dev := testDevice(t)
	surf := headless.NewSurface(dev, 256, 256)

	s, err := wsi.New(surf, dev, wsi.CreateInfo{
		Format: drm.BGRA8Unorm,
		Mode:   wsi.FIFO,
	})
	if err != nil {
		t.Fatalf("New()\nhave _, %v\nwant _, nil", err)
	}
	defer s.Destroy()

	surf.Invalidate()
	if !surf.Lost() {
		t.Error("Lost() after Invalidate()\nhave false\nwant true")
	}
	if _, err := s.AcquireNextImage(wsi.Forever, nil, nil); !errors.Is(err, wsi.ErrSurfaceLost) {
		t.Errorf("AcquireNextImage() on lost surface\nhave _, %v\nwant _, %v", err, wsi.ErrSurfaceLost)
	}
	if _, err := surf.Properties().Capabilities(); !errors.Is(err, wsi.ErrSurfaceLost) {
		t.Errorf("Capabilities() on lost surface\nhave _, %v\nwant _, %v", err, wsi.ErrSurfaceLost)
	}
}
