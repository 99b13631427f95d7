// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/internal/logging"
)

// DescriptorSetCache maps resource identities (usually textures) to
// descriptor sets of one layout.
//
// Sets are never freed back to the driver individually. A released set
// moves to a free list and is reused for the next key. When the active
// pool is exhausted a fresh pool is created; the exhausted pool is kept
// alive until Clear because its sets may still be bound in recorded
// command buffers.
//
// Thread safety: DescriptorSetCache is safe for concurrent use.
type DescriptorSetCache struct {
	mu sync.Mutex

	device  driver.Device
	layout  driver.DescriptorSetLayout
	sizes   []driver.PoolSize
	maxSets uint32
	logger  *slog.Logger

	pool    driver.DescriptorPool
	retired []driver.DescriptorPool
	used    map[any]driver.DescriptorSet
	free    map[driver.DescriptorSet]struct{}
}

// NewDescriptorSetCache creates an empty cache. Pools are created lazily
// with room for maxSets sets; sizes is scaled per set.
func NewDescriptorSetCache(device driver.Device, layout driver.DescriptorSetLayout, maxSets uint32, logger *slog.Logger) *DescriptorSetCache {
	if maxSets == 0 {
		maxSets = 1
	}
	var sizes []driver.PoolSize
	for _, b := range layout.Bindings() {
		sizes = append(sizes, driver.PoolSize{Type: b.Type, Count: maxSets})
	}
	return &DescriptorSetCache{
		device:  device,
		layout:  layout,
		sizes:   sizes,
		maxSets: maxSets,
		logger:  logging.OrNop(logger),
		used:    make(map[any]driver.DescriptorSet),
		free:    make(map[driver.DescriptorSet]struct{}),
	}
}

// Existing returns the set assigned to key. It never allocates.
func (c *DescriptorSetCache) Existing(key any) (driver.DescriptorSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.used[key]
	return set, ok
}

// Create returns the set assigned to key, assigning a free or newly
// allocated set when there is none. Callers write a set's bindings when
// Existing did not find it.
func (c *DescriptorSetCache) Create(key any) (driver.DescriptorSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.used[key]; ok {
		return set, nil
	}
	for set := range c.free {
		delete(c.free, set)
		c.used[key] = set
		return set, nil
	}

	set, err := c.allocateLocked()
	if err != nil {
		return nil, err
	}
	c.used[key] = set
	return set, nil
}

func (c *DescriptorSetCache) allocateLocked() (driver.DescriptorSet, error) {
	if c.pool == nil {
		if err := c.newPoolLocked(); err != nil {
			return nil, err
		}
	}
	set, err := c.pool.Allocate(c.layout)
	if err == nil {
		return set, nil
	}
	if !driver.IsPoolExhausted(err) {
		return nil, fmt.Errorf("render: allocate descriptor set: %w", err)
	}

	c.logger.Debug("render: descriptor pool exhausted, creating a new one",
		"used", len(c.used), "retired", len(c.retired)+1)
	c.retired = append(c.retired, c.pool)
	c.pool = nil
	if err := c.newPoolLocked(); err != nil {
		return nil, err
	}
	set, err = c.pool.Allocate(c.layout)
	if err != nil {
		return nil, fmt.Errorf("render: allocate descriptor set from fresh pool: %w", err)
	}
	return set, nil
}

func (c *DescriptorSetCache) newPoolLocked() error {
	pool, err := c.device.NewDescriptorPool(&driver.DescriptorPoolDescriptor{
		MaxSets: c.maxSets,
		Sizes:   c.sizes,
	})
	if err != nil {
		return fmt.Errorf("render: create descriptor pool: %w", err)
	}
	c.pool = pool
	return nil
}

// Release returns the set assigned to key to the free list. Unknown keys
// are ignored.
func (c *DescriptorSetCache) Release(key any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.used[key]
	if !ok {
		return
	}
	delete(c.used, key)
	c.free[set] = struct{}{}
}

// Clear drops every entry and destroys all pools.
func (c *DescriptorSetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *DescriptorSetCache) clearLocked() {
	clear(c.used)
	clear(c.free)
	for _, p := range c.retired {
		p.Destroy()
	}
	c.retired = nil
	if c.pool != nil {
		c.pool.Destroy()
		c.pool = nil
	}
}

// Len returns the number of assigned and free sets.
func (c *DescriptorSetCache) Len() (used, free int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.used), len(c.free)
}

// Destroy releases the cache's pools. The layout is owned by the caller.
func (c *DescriptorSetCache) Destroy() { c.Clear() }
