// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package wsi implements swapchain image management and
// asynchronous presentation for window systems whose native
// compositors lack the semantics the graphics API requires.
// Each swapchain owns a fixed pool of image slots, a bounded
// queue of pending presents and one background goroutine that
// performs the native present off the application's critical
// path.
package wsi

import (
	"errors"
	"time"

	"github.com/gviegas/wsishim/hal"
	"github.com/gviegas/wsishim/internal/drm"
)

// MaxImages is the largest image count a swapchain may have.
// There is no theoretical maximum; 6 is chosen for
// practicality.
const MaxImages = 6

// ErrOutOfDate means that the surface changed in a way that
// invalidates the swapchain's current parameters. The
// swapchain remains usable, but recreation is advisable.
var ErrOutOfDate = errors.New("wsi: surface out of date")

// ErrSurfaceLost means that the surface can no longer be
// presented to.
var ErrSurfaceLost = errors.New("wsi: surface lost")

// ErrDeviceLost means that the device is in an unrecoverable
// state. Presentation is permanently disabled on the
// swapchain.
var ErrDeviceLost = errors.New("wsi: device lost")

// ErrNotReady means that no image slot was free and the
// caller asked not to wait. It is a status, not a failure.
var ErrNotReady = errors.New("wsi: not ready")

// ErrTimeout means that an acquire wait expired before a
// slot became free. It is a status, not a failure.
var ErrTimeout = errors.New("wsi: timeout")

// ErrInvalidUsage means that the caller violated the
// swapchain contract, such as presenting an image it has
// not acquired.
var ErrInvalidUsage = errors.New("wsi: invalid usage")

// ErrNoMemory means that a queue entry or synchronization
// submission could not be allocated.
var ErrNoMemory = errors.New("wsi: out of memory")

// IsFatal reports whether err permanently disables a
// swapchain.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeviceLost) || errors.Is(err, ErrSurfaceLost)
}

// Timeout values treated specially by acquisition.
const (
	// DontWait requests an immediate answer.
	DontWait time.Duration = 0
	// Forever requests an unbounded wait.
	Forever time.Duration = -1
)

// PresentMode is the pacing policy governing how queued
// images are shown.
type PresentMode int

const (
	// FIFO shows images in strict queue order, one per
	// display refresh.
	FIFO PresentMode = iota
	// Mailbox replaces the waiting image with the latest
	// one.
	Mailbox
)

// String returns the mode's name.
func (m PresentMode) String() string {
	switch m {
	case FIFO:
		return "FIFO"
	case Mailbox:
		return "Mailbox"
	}
	return "<invalid mode>"
}

// Extent is a two-dimensional size in pixels.
type Extent struct {
	Width  int
	Height int
}

// AlphaMode describes how the compositor treats the alpha
// channel of a presented image.
type AlphaMode int

const (
	AlphaOpaque AlphaMode = iota
	AlphaPreMultiplied
	AlphaPostMultiplied
	AlphaInherit
)

// Scaling describes how a presented image is scaled to the
// surface.
type Scaling int

const (
	ScalingOneToOne Scaling = iota
	ScalingStretch
)

// Gravity describes where an unscaled image is placed within
// the surface.
type Gravity int

const (
	GravityMin Gravity = iota
	GravityMax
	GravityCentered
)

// Capabilities holds the surface properties queried once at
// swapchain creation.
type Capabilities struct {
	MinImageCount  int
	MaxImageCount  int
	CurrentExtent  Extent
	MinExtent      Extent
	MaxExtent      Extent
	SupportedAlpha []AlphaMode
}

// ScalingCaps holds the scaling and gravity capabilities of
// a surface.
type ScalingCaps struct {
	Scaling         []Scaling
	GravityX        []Gravity
	GravityY        []Gravity
	MinScaledExtent Extent
	MaxScaledExtent Extent
}

// SurfaceProperties is the capability-query interface that a
// windowing backend implements for its surface type.
type SurfaceProperties interface {
	// Capabilities returns the surface capabilities.
	Capabilities() (Capabilities, error)

	// Formats returns the presentable formats.
	Formats() []drm.Format

	// PresentModes returns the natively supported present
	// modes.
	PresentModes() []PresentMode

	// CompatibleModes returns the modes a swapchain in the
	// given mode may switch to without recreation, the mode
	// itself included. The relation is symmetric.
	CompatibleModes(PresentMode) []PresentMode

	// ScalingCaps returns the scaling and gravity
	// capabilities.
	ScalingCaps() ScalingCaps
}

// Surface represents a window system surface that swapchains
// present to. Construction of concrete surfaces is up to the
// windowing backends.
type Surface interface {
	// Properties returns the surface's capability-query
	// interface.
	Properties() SurfaceProperties

	// Backend returns the surface's presentation backend.
	Backend() Backend

	// Lost reports whether the window system invalidated
	// the surface. The flag is sticky.
	Lost() bool
}

// Backend performs the native buffer and present operations
// for one surface.
type Backend interface {
	// AllocBacking allocates native backing for one image
	// slot.
	AllocBacking(Extent, drm.Format) (Backing, error)

	// Present hands a backing to the window system for
	// display. It may block until the compositor accepts
	// the buffer. It returns nil, ErrOutOfDate,
	// ErrSurfaceLost or ErrDeviceLost.
	Present(Backing) error
}

// Backing is the native buffer behind one image slot.
type Backing interface {
	// Memory returns the image memory to bind API images
	// to.
	Memory() hal.Memory

	Destroy()
}
