// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package x11 implements surface capability queries for X11
// windows. Window construction and the display connection
// live outside the layer.
package x11

import (
	"github.com/gviegas/wsishim/internal/drm"
	"github.com/gviegas/wsishim/wsi"
)

// MinImageCount is the smallest image count an X11 swapchain
// may have. The X server holds on to buffers longer than a
// Wayland compositor does, so more headroom is required to
// keep presentation from stalling.
const MinImageCount = 4

// Properties implements wsi.SurfaceProperties for X11
// windows.
type Properties struct {
	size  func() (width, height int)
	cache *drm.SupportCache
}

// NewProperties creates the capability-query interface for
// one X11 window. size reports the window's current
// geometry; query asks the server whether it can scan out a
// fourcc/modifier pair (results are memoized).
func NewProperties(size func() (width, height int), query drm.SupportQuery) (*Properties, error) {
	cache, err := drm.NewSupportCache(64, query)
	if err != nil {
		return nil, err
	}
	return &Properties{size: size, cache: cache}, nil
}

// Capabilities returns the surface capabilities.
func (p *Properties) Capabilities() (wsi.Capabilities, error) {
	w, h := p.size()
	if w < 1 || h < 1 {
		return wsi.Capabilities{}, wsi.ErrSurfaceLost
	}
	return wsi.Capabilities{
		MinImageCount: MinImageCount,
		MaxImageCount: wsi.MaxImages,
		CurrentExtent: wsi.Extent{Width: w, Height: h},
		MinExtent:     wsi.Extent{Width: 1, Height: 1},
		MaxExtent:     wsi.Extent{Width: w, Height: h},
		SupportedAlpha: []wsi.AlphaMode{
			wsi.AlphaOpaque,
			wsi.AlphaInherit,
		},
	}, nil
}

// Formats returns the presentable formats the server accepts
// with the linear modifier.
func (p *Properties) Formats() []drm.Format {
	var fmts []drm.Format
	for _, f := range drm.PresentableFormats() {
		spec, ok := drm.SpecFor(f)
		if !ok {
			continue
		}
		if p.cache.Supported(spec.FourCC, drm.ModifierLinear) {
			fmts = append(fmts, f)
		}
	}
	return fmts
}

// PresentModes returns the natively supported present modes.
func (p *Properties) PresentModes() []wsi.PresentMode {
	return []wsi.PresentMode{wsi.FIFO, wsi.Mailbox}
}

// CompatibleModes returns the modes compatible with m.
// On X11 each mode is compatible only with itself.
func (p *Properties) CompatibleModes(m wsi.PresentMode) []wsi.PresentMode {
	return []wsi.PresentMode{m}
}

// ScalingCaps returns the scaling and gravity capabilities.
func (p *Properties) ScalingCaps() wsi.ScalingCaps {
	w, h := p.size()
	return wsi.ScalingCaps{
		Scaling:         []wsi.Scaling{wsi.ScalingOneToOne},
		GravityX:        []wsi.Gravity{wsi.GravityMin},
		GravityY:        []wsi.Gravity{wsi.GravityMin},
		MinScaledExtent: wsi.Extent{Width: 1, Height: 1},
		MaxScaledExtent: wsi.Extent{Width: w, Height: h},
	}
}
