// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package drm

import (
	lru "github.com/hashicorp/golang-lru"
)

// SupportQuery asks the windowing backend whether it can
// scan out buffers of a given fourcc/modifier pair.
// Backend queries may involve protocol round trips, so the
// results are memoized by SupportCache.
type SupportQuery func(FourCC, Modifier) bool

// SupportCache memoizes SupportQuery results.
type SupportCache struct {
	query SupportQuery
	cache *lru.Cache
}

type supportKey struct {
	fc  FourCC
	mod Modifier
}

// NewSupportCache creates a cache over query holding up to
// size entries.
func NewSupportCache(size int, query SupportQuery) (*SupportCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &SupportCache{query: query, cache: c}, nil
}

// Supported reports whether the fourcc/modifier pair can be
// presented, consulting the backend at most once per pair.
func (s *SupportCache) Supported(fc FourCC, mod Modifier) bool {
	k := supportKey{fc, mod}
	if v, ok := s.cache.Get(k); ok {
		return v.(bool)
	}
	v := s.query(fc, mod)
	s.cache.Add(k, v)
	return v
}

// Len returns the number of memoized pairs.
func (s *SupportCache) Len() int { return s.cache.Len() }
