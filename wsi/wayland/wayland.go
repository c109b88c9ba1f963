// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package wayland implements surface capability queries for
// Wayland surfaces. Surface construction and the compositor
// protocol itself live outside the layer; this package only
// answers what the layer asks at swapchain creation.
package wayland

import (
	"github.com/gviegas/wsishim/internal/drm"
	"github.com/gviegas/wsishim/wsi"
)

// MinImageCount is the smallest image count a Wayland
// swapchain may have. Double buffering is enough because the
// compositor releases buffers.
const MinImageCount = 2

// Properties implements wsi.SurfaceProperties for Wayland
// surfaces.
type Properties struct {
	size  func() (width, height int)
	cache *drm.SupportCache
}

// NewProperties creates the capability-query interface for
// one Wayland surface. size reports the surface's current
// extent; query asks the compositor whether it can scan out
// a fourcc/modifier pair (results are memoized).
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
			wsi.AlphaPreMultiplied,
		},
	}, nil
}

// Formats returns the presentable formats the compositor
// accepts with the linear modifier.
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
// On Wayland each mode is compatible only with itself.
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
