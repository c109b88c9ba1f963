// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package wayland

import (
	"errors"
	"testing"

	"golang.org/x/exp/slices"

	"github.com/gviegas/wsishim/internal/drm"
	"github.com/gviegas/wsishim/wsi"
)

func newTestProps(t *testing.T, w, h int, query drm.SupportQuery) *Properties {
	t.Helper()
	if query == nil {
		query = func(drm.FourCC, drm.Modifier) bool { return true }
	}
	p, err := NewProperties(func() (int, int) { return w, h }, query)
	if err != nil {
		t.Fatalf("NewProperties()\nhave _, %v\nwant _, nil", err)
	}
	return p
}

func TestCapabilities(t *testing.T) {
	p := newTestProps(t, 800, 600, nil)
	caps, err := p.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities()\nhave _, %v\nwant _, nil", err)
	}
	if caps.MinImageCount != MinImageCount {
		t.Errorf("MinImageCount\nhave %d\nwant %d", caps.MinImageCount, MinImageCount)
	}
	if caps.MaxImageCount != wsi.MaxImages {
		t.Errorf("MaxImageCount\nhave %d\nwant %d", caps.MaxImageCount, wsi.MaxImages)
	}
	if caps.CurrentExtent != (wsi.Extent{Width: 800, Height: 600}) {
		t.Errorf("CurrentExtent\nhave %v\nwant {800 600}", caps.CurrentExtent)
	}
}

func TestCapabilitiesZeroSize(t *testing.T) {
	p := newTestProps(t, 0, 600, nil)
	if _, err := p.Capabilities(); !errors.Is(err, wsi.ErrSurfaceLost) {
		t.Errorf("Capabilities() with degenerate size\nhave _, %v\nwant _, %v", err, wsi.ErrSurfaceLost)
	}
}

func TestFormatsFiltered(t *testing.T) {
	// The compositor only accepts XRGB8888.
	spec, ok := drm.SpecFor(drm.BGRA8Unorm)
	if !ok {
		t.Fatal("SpecFor(BGRA8Unorm) not found")
	}
	p := newTestProps(t, 800, 600, func(fc drm.FourCC, mod drm.Modifier) bool {
		return fc == spec.FourCC && mod == drm.ModifierLinear
	})
	fmts := p.Formats()
	if !slices.Contains(fmts, drm.BGRA8Unorm) {
		t.Errorf("Formats()\nhave %v\nwant BGRA8Unorm present", fmts)
	}
	for _, f := range fmts {
		s, _ := drm.SpecFor(f)
		if s.FourCC != spec.FourCC {
			t.Errorf("Formats() includes %v, which the compositor rejected", f)
		}
	}
}

func TestFormatsMemoized(t *testing.T) {
	queried := make(map[drm.FourCC]int)
	p := newTestProps(t, 800, 600, func(fc drm.FourCC, mod drm.Modifier) bool {
		queried[fc]++
		return true
	})
	p.Formats()
	p.Formats()
	for fc, n := range queried {
		if n != 1 {
			t.Errorf("support query for %v ran %d times\nwant 1", fc, n)
		}
	}
}

func TestCompatibleModes(t *testing.T) {
	p := newTestProps(t, 800, 600, nil)
	for _, m := range p.PresentModes() {
		compat := p.CompatibleModes(m)
		if len(compat) != 1 || compat[0] != m {
			t.Errorf("CompatibleModes(%v)\nhave %v\nwant [%v]", m, compat, m)
		}
	}
}
