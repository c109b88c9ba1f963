// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package headless implements a surface with no window system
// behind it. Presents complete immediately. It is used on
// displayless machines and by diagnostic tooling.
package headless

import (
	"sync"
	"sync/atomic"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/internal/drm"
	"github.com/gviegas/wsishim/wsi"
)

// Surface implements wsi.Surface.
type Surface struct {
	dev    hal.Device
	extent wsi.Extent
	lost   atomic.Bool
	props  properties
}

// NewSurface creates a headless surface of the given size.
// Backing memory is allocated from dev.
func NewSurface(dev hal.Device, width, height int) *Surface {
	s := &Surface{
		dev:    dev,
		extent: wsi.Extent{Width: width, Height: height},
	}
	s.props.s = s
	return s
}

// Properties returns the surface's capability-query
// interface.
func (s *Surface) Properties() wsi.SurfaceProperties { return &s.props }

// Backend returns the surface's presentation backend.
func (s *Surface) Backend() wsi.Backend { return s }

// Lost reports whether the surface was invalidated.
func (s *Surface) Lost() bool { return s.lost.Load() }

// Invalidate marks the surface lost.
func (s *Surface) Invalidate() { s.lost.Store(true) }

// AllocBacking allocates native backing for one image slot.
func (s *Surface) AllocBacking(extent wsi.Extent, format drm.Format) (wsi.Backing, error) {
	bpp := 32
	if spec, ok := drm.SpecFor(format); ok {
		bpp = spec.BPP
	}
	mem, err := s.dev.NewMemory(extent.Width * extent.Height * bpp / 8)
	if err != nil {
		return nil, err
	}
	return &backing{mem: mem}, nil
}

// Present completes immediately; there is no compositor to
// hand the buffer to.
func (s *Surface) Present(wsi.Backing) error {
	if s.lost.Load() {
		return wsi.ErrSurfaceLost
	}
	return nil
}

// backing implements wsi.Backing.
type backing struct {
	mem  hal.Memory
	once sync.Once
}

func (b *backing) Memory() hal.Memory { return b.mem }

func (b *backing) Destroy() {
	b.once.Do(b.mem.Destroy)
}

// properties implements wsi.SurfaceProperties.
// A headless surface imposes few constraints: a single image
// suffices and any presentable format works.
type properties struct {
	s *Surface
}

func (p *properties) Capabilities() (wsi.Capabilities, error) {
	if p.s.Lost() {
		return wsi.Capabilities{}, wsi.ErrSurfaceLost
	}
	return wsi.Capabilities{
		MinImageCount: 1,
		MaxImageCount: wsi.MaxImages,
		CurrentExtent: p.s.extent,
		MinExtent:     wsi.Extent{Width: 1, Height: 1},
		MaxExtent:     p.s.extent,
		SupportedAlpha: []wsi.AlphaMode{
			wsi.AlphaOpaque,
			wsi.AlphaInherit,
		},
	}, nil
}

func (p *properties) Formats() []drm.Format {
	return drm.PresentableFormats()
}

func (p *properties) PresentModes() []wsi.PresentMode {
	return []wsi.PresentMode{wsi.FIFO, wsi.Mailbox}
}

func (p *properties) CompatibleModes(m wsi.PresentMode) []wsi.PresentMode {
	return []wsi.PresentMode{m}
}

func (p *properties) ScalingCaps() wsi.ScalingCaps {
	return wsi.ScalingCaps{
		Scaling:         []wsi.Scaling{wsi.ScalingOneToOne},
		GravityX:        []wsi.Gravity{wsi.GravityMin},
		GravityY:        []wsi.Gravity{wsi.GravityMin},
		MinScaledExtent: wsi.Extent{Width: 1, Height: 1},
		MaxScaledExtent: p.s.extent,
	}
}
