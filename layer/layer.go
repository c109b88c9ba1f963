// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package layer is the boundary between intercepted API
// entrypoints and the presentation core. It keeps the
// registries that decide, per call, whether a handle is
// layer-owned or must be forwarded verbatim to the
// underlying driver.
//
// Registries are explicit objects rather than process-wide
// state, so several simulated instances can coexist in one
// binary.
package layer

import (
	"sync"

	"github.com/gviegas/wsishim/wsi"
)

// Handle is an opaque handle vended by the layer's
// registries. The zero Handle is never vended.
type Handle uint64

// Instance holds instance-wide bookkeeping: the registry of
// surfaces the layer owns.
type Instance struct {
	mu       sync.Mutex
	next     uint64
	surfaces map[Handle]wsi.Surface
}

// NewInstance creates an empty instance.
func NewInstance() *Instance {
	return &Instance{surfaces: make(map[Handle]wsi.Surface)}
}

// RegisterSurface adds a layer-owned surface and returns its
// handle.
func (n *Instance) RegisterSurface(s wsi.Surface) Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	h := Handle(n.next)
	n.surfaces[h] = s
	return h
}

// RemoveSurface drops a surface from the registry.
func (n *Instance) RemoveSurface(h Handle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.surfaces, h)
}

// Surface returns the surface behind a layer-owned handle.
func (n *Instance) Surface(h Handle) (wsi.Surface, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.surfaces[h]
	return s, ok
}

// OwnsSurface reports whether the layer owns the handle.
// Every entrypoint honors this before touching layer state.
func (n *Instance) OwnsSurface(h Handle) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.surfaces[h]
	return ok
}
