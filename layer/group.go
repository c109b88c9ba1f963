// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package layer

import (
	"github.com/gviegas/wsishim/wsi"
)

// MaxGroupSize is the largest device group the layer
// acknowledges.
const MaxGroupSize = 32

// GroupPresentMode describes how a device group presents.
type GroupPresentMode int

// GroupPresentLocal is the only mode the layer supports:
// each image is presented by the device that rendered it.
const GroupPresentLocal GroupPresentMode = 1 << 0

// GroupPresentCapabilities describes device-group
// presentation support.
type GroupPresentCapabilities struct {
	// PresentMask has one entry per device in the group; a
	// set bit means the device can present.
	PresentMask [MaxGroupSize]uint32
	Modes       GroupPresentMode
}

// GroupPresentCaps returns the device-group presentation
// capabilities. Only the first device presents, locally.
func (d *Device) GroupPresentCaps() GroupPresentCapabilities {
	var caps GroupPresentCapabilities
	caps.PresentMask[0] = 1
	caps.Modes = GroupPresentLocal
	return caps
}

// Rect is a rectangle within a surface.
type Rect struct {
	X, Y   int
	Extent wsi.Extent
}

// PresentRectangles returns the regions of a layer-owned
// surface that the device may present to: a single rectangle
// covering the current extent.
func (d *Device) PresentRectangles(surface Handle) ([]Rect, error) {
	surf, ok := d.inst.Surface(surface)
	if !ok {
		return nil, wsi.ErrInvalidUsage
	}
	caps, err := surf.Properties().Capabilities()
	if err != nil {
		return nil, err
	}
	return []Rect{{Extent: caps.CurrentExtent}}, nil
}
