// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/driver"
)

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithSurfaceFormats sets the formats the surface accepts, preferred first.
func WithSurfaceFormats(formats ...gputypes.TextureFormat) SurfaceOption {
	return func(s *Surface) { s.formats = formats }
}

// WithExtentLimits sets the minimum and maximum swapchain extent.
func WithExtentLimits(minExtent, maxExtent driver.Extent2D) SurfaceOption {
	return func(s *Surface) {
		s.caps.MinExtent = minExtent
		s.caps.MaxExtent = maxExtent
	}
}

// WithPresentFamilies restricts presentation to the given queue families.
func WithPresentFamilies(families ...int) SurfaceOption {
	return func(s *Surface) {
		s.families = make(map[int]bool, len(families))
		for _, f := range families {
			s.families[f] = true
		}
	}
}

// Surface is an in-memory presentation target.
type Surface struct {
	mu          sync.Mutex
	caps        driver.SurfaceCapabilities
	formats     []gputypes.TextureFormat
	families    map[int]bool
	generation  int
	acquireErrs []error
	presentErrs []error
}

var _ driver.Surface = (*Surface)(nil)

// NewSurface creates a surface whose current extent is width x height.
func NewSurface(width, height uint32, opts ...SurfaceOption) *Surface {
	s := &Surface{
		caps: driver.SurfaceCapabilities{
			MinImageCount: 2,
			MaxImageCount: 3,
			MinExtent:     driver.Extent2D{Width: 1, Height: 1},
			MaxExtent:     driver.Extent2D{Width: 16384, Height: 16384},
			CurrentExtent: driver.Extent2D{Width: width, Height: height},
		},
		formats: []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatRGBA8Unorm},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capabilities implements driver.Surface.
func (s *Surface) Capabilities() (driver.SurfaceCapabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps, nil
}

// Formats implements driver.Surface.
func (s *Surface) Formats() []gputypes.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gputypes.TextureFormat(nil), s.formats...)
}

// SetFormats replaces the accepted formats.
func (s *Surface) SetFormats(formats ...gputypes.TextureFormat) {
	s.mu.Lock()
	s.formats = formats
	s.mu.Unlock()
}

// Resize changes the current extent. Swapchains created before the resize
// report ErrOutOfDate on their next acquire.
func (s *Surface) Resize(width, height uint32) {
	s.mu.Lock()
	s.caps.CurrentExtent = driver.Extent2D{Width: width, Height: height}
	s.generation++
	s.mu.Unlock()
}

// FailAcquire queues errors returned by the next acquires, one per call.
func (s *Surface) FailAcquire(errs ...error) {
	s.mu.Lock()
	s.acquireErrs = append(s.acquireErrs, errs...)
	s.mu.Unlock()
}

// FailPresent queues errors returned by the next presents, one per call.
func (s *Surface) FailPresent(errs ...error) {
	s.mu.Lock()
	s.presentErrs = append(s.presentErrs, errs...)
	s.mu.Unlock()
}

func (s *Surface) presentableOn(family int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.families == nil || s.families[family]
}

func (s *Surface) takeAcquireError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.acquireErrs) == 0 {
		return nil
	}
	err := s.acquireErrs[0]
	s.acquireErrs = s.acquireErrs[1:]
	return err
}

func (s *Surface) takePresentError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.presentErrs) == 0 {
		return nil
	}
	err := s.presentErrs[0]
	s.presentErrs = s.presentErrs[1:]
	return err
}

func (s *Surface) currentGeneration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Swapchain is a ring of headless textures.
type Swapchain struct {
	hub        *syncHub
	surface    *Surface
	generation int
	extent     driver.Extent2D
	format     gputypes.TextureFormat
	textures   []driver.Texture

	mu        sync.Mutex
	next      uint32
	retired   bool
	destroyed bool
	acquired  int
}

var _ driver.Swapchain = (*Swapchain)(nil)

func newSwapchain(hub *syncHub, s *Surface, desc *driver.SwapchainDescriptor) (*Swapchain, error) {
	if desc.Extent.Empty() {
		return nil, errors.New("headless: swapchain extent is empty")
	}
	caps, _ := s.Capabilities()
	if desc.Extent.Width > caps.MaxExtent.Width || desc.Extent.Height > caps.MaxExtent.Height ||
		desc.Extent.Width < caps.MinExtent.Width || desc.Extent.Height < caps.MinExtent.Height {
		return nil, fmt.Errorf("headless: extent %dx%d outside surface limits", desc.Extent.Width, desc.Extent.Height)
	}
	count := desc.ImageCount
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount != 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if old, ok := desc.OldSwapchain.(*Swapchain); ok {
		old.mu.Lock()
		old.retired = true
		old.mu.Unlock()
	}
	sc := &Swapchain{
		hub:        hub,
		surface:    s,
		generation: s.currentGeneration(),
		extent:     desc.Extent,
		format:     desc.Format,
		textures:   make([]driver.Texture, count),
	}
	for i := range sc.textures {
		sc.textures[i] = newTexture(fmt.Sprintf("swapchain image %d", i), desc.Extent.Width, desc.Extent.Height, desc.Format)
	}
	return sc, nil
}

// Extent implements driver.Swapchain.
func (sc *Swapchain) Extent() driver.Extent2D { return sc.extent }

// Format implements driver.Swapchain.
func (sc *Swapchain) Format() gputypes.TextureFormat { return sc.format }

// Textures implements driver.Swapchain.
func (sc *Swapchain) Textures() []driver.Texture { return sc.textures }

// Acquired returns how many images were acquired successfully.
func (sc *Swapchain) Acquired() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.acquired
}

// Destroyed reports whether Destroy was called.
func (sc *Swapchain) Destroyed() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.destroyed
}

// AcquireNextImage implements driver.Swapchain. Images are handed out
// round-robin and are ready immediately.
func (sc *Swapchain) AcquireNextImage(signal driver.Semaphore, _ time.Duration) (uint32, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return 0, driver.ErrDestroyed
	}
	if err := sc.surface.takeAcquireError(); err != nil {
		return 0, err
	}
	if sc.retired || sc.generation != sc.surface.currentGeneration() {
		return 0, fmt.Errorf("headless: acquire: %w", driver.ErrOutOfDate)
	}
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.textures))
	sc.acquired++

	if s, ok := signal.(*Semaphore); ok {
		sc.hub.mu.Lock()
		s.signaled = true
		sc.hub.changedLocked()
		sc.hub.mu.Unlock()
	}
	return idx, nil
}

// Destroy releases the swapchain images.
func (sc *Swapchain) Destroy() {
	sc.mu.Lock()
	if sc.destroyed {
		sc.mu.Unlock()
		return
	}
	sc.destroyed = true
	sc.mu.Unlock()
	for _, t := range sc.textures {
		t.Destroy()
	}
}
