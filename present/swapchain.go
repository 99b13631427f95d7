// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/render"
	"github.com/gogpu/compositor/renderstack"
)

// RecordedFrame is one window's contribution to a batched submission.
type RecordedFrame struct {
	WindowNumber  int
	CommandBuffer driver.CommandBuffer
	ImageIndex    uint32
	Texture       driver.Texture

	// ImageReady is waited on at the color-attachment-output stage.
	ImageReady driver.Semaphore

	// RenderDone is signaled by the submission and waited on by present.
	RenderDone driver.Semaphore

	Swapchain    driver.Swapchain
	PresentQueue driver.Queue

	// UploadWait is set when the vertex data was copied on the GPU and the
	// draw must wait for it at the vertex-input stage.
	UploadWait *driver.SemaphoreWait
}

// SwapchainRenderer owns a window's swapchain and drives its frame state
// machine.
//
// Request and Reset are called by the scheduler; RecordFrame runs on the
// task that owns the window for one tick. Invalidate may be called from
// any goroutine.
type SwapchainRenderer struct {
	stack        *renderstack.Stack
	logger       *slog.Logger
	surface      driver.Surface
	presentQueue driver.Queue

	pool       driver.CommandPool
	imageReady driver.Semaphore
	renderDone driver.Semaphore
	renderer   *render.Renderer

	swapchain  driver.Swapchain
	images     []driver.Texture
	opsValid   bool
	imageIndex uint32

	mu           sync.Mutex
	window       Window
	inflight     Window
	state        State
	needsRebuild bool
	// held is set while an acquired image has not been handed to a
	// submission that consumed imageReady.
	held bool
}

// NewSwapchainRenderer creates the per-window objects and the initial
// swapchain.
func NewSwapchainRenderer(stack *renderstack.Stack, window Window, surface driver.Surface, presentQueue driver.Queue) (_ *SwapchainRenderer, err error) {
	format, ok := chooseFormat(surface.Formats())
	if !ok {
		return nil, ErrNoSurfaceFormat
	}
	device := stack.Device()
	r := &SwapchainRenderer{
		stack:        stack,
		logger:       stack.Logger().With("window", window.Number()),
		surface:      surface,
		presentQueue: presentQueue,
		window:       window,
	}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()

	if r.imageReady, err = device.NewSemaphore(); err != nil {
		return nil, fmt.Errorf("present: create image-ready semaphore: %w", err)
	}
	if r.renderDone, err = device.NewSemaphore(); err != nil {
		return nil, fmt.Errorf("present: create render-done semaphore: %w", err)
	}
	if r.pool, err = device.NewCommandPool(stack.GraphicsQueue()); err != nil {
		return nil, fmt.Errorf("present: create command pool: %w", err)
	}
	if r.renderer, err = render.NewRenderer(stack, r.pool, format); err != nil {
		return nil, err
	}
	if err = r.RebuildSwapchain(); err != nil {
		return nil, err
	}
	return r, nil
}

// chooseFormat prefers 8-bit BGRA, then 8-bit RGBA, then whatever the
// surface lists first.
func chooseFormat(formats []gputypes.TextureFormat) (gputypes.TextureFormat, bool) {
	if len(formats) == 0 {
		return 0, false
	}
	for _, want := range []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatRGBA8Unorm} {
		for _, f := range formats {
			if f == want {
				return f, true
			}
		}
	}
	return formats[0], true
}

// State returns the current state.
func (r *SwapchainRenderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Window returns the window, or nil once invalidated.
func (r *SwapchainRenderer) Window() Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateInvalidated {
		return nil
	}
	return r.window
}

// PresentQueue returns the queue frames are presented on.
func (r *SwapchainRenderer) PresentQueue() driver.Queue { return r.presentQueue }

// Swapchain returns the current swapchain.
func (r *SwapchainRenderer) Swapchain() driver.Swapchain { return r.swapchain }

// Renderer returns the layer renderer.
func (r *SwapchainRenderer) Renderer() *render.Renderer { return r.renderer }

// Request starts a frame. From idle it moves to requestSent and asks for
// both steps; a failed renderer stays failed and only re-records. Other
// states refuse.
func (r *SwapchainRenderer) Request() (RecordSteps, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateIdle:
		r.state = StateRequestSent
		return StepOperations | StepCommandBuffer, true
	case StateSwapchainFailed:
		return StepCommandBuffer, true
	}
	return 0, false
}

// transition moves from one of from to to. It reports false when the
// renderer is in another state, including invalidated.
func (r *SwapchainRenderer) transition(to State, from ...State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range from {
		if r.state == f {
			r.state = to
			return true
		}
	}
	return false
}

func (r *SwapchainRenderer) invalidated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateInvalidated
}

// RecordFrame acquires an image and performs steps for it. It returns nil
// without error when the renderer was invalidated or the window closed
// during the frame.
func (r *SwapchainRenderer) RecordFrame(ctx context.Context, steps RecordSteps) (*RecordedFrame, error) {
	r.mu.Lock()
	switch r.state {
	case StateInvalidated:
		r.mu.Unlock()
		return nil, nil
	case StateRequestSent, StateSwapchainFailed:
	default:
		s := r.state
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: record frame in %s", ErrInvalidState, s)
	}
	window := r.window
	r.inflight = window
	rebuild := r.needsRebuild
	r.mu.Unlock()

	if window == nil || window.Closed() {
		r.Invalidate()
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if rebuild || r.swapchain == nil {
		if err := r.RebuildSwapchain(); err != nil {
			return nil, err
		}
	}
	idx, err := r.acquire()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.held = true
	r.mu.Unlock()
	if r.invalidated() {
		return nil, nil
	}
	r.imageIndex = idx
	tex := r.images[idx]
	if err := r.renderer.SetDestination(tex); err != nil {
		return nil, err
	}

	if steps.Has(StepOperations) {
		if err := r.BuildOperations(); err != nil {
			return nil, err
		}
	} else if !r.opsValid {
		// The failed frame never got as far as traversal.
		if r.transition(StateBuildingRenderOperations, StateSwapchainFailed) {
			if err := r.build(); err != nil {
				return nil, err
			}
		}
	}
	if err := r.RecordCommandBuffer(); err != nil {
		return nil, err
	}
	if r.State() != StateCommandBufferReady {
		return nil, nil
	}

	frame := &RecordedFrame{
		WindowNumber:  window.Number(),
		CommandBuffer: r.renderer.CommandBuffer(),
		ImageIndex:    idx,
		Texture:       tex,
		ImageReady:    r.imageReady,
		RenderDone:    r.renderDone,
		Swapchain:     r.swapchain,
		PresentQueue:  r.presentQueue,
	}
	if w, ok := r.renderer.Context().UploadWait(); ok {
		frame.UploadWait = &w
	}
	return frame, nil
}

// acquire gets the next image, rebuilding the swapchain once when the
// surface no longer matches.
func (r *SwapchainRenderer) acquire() (uint32, error) {
	timeout := r.stack.Config().AcquireTimeout
	idx, err := r.swapchain.AcquireNextImage(r.imageReady, timeout)
	if err == nil {
		return idx, nil
	}
	if !driver.IsSurfaceLost(err) {
		return 0, fmt.Errorf("present: acquire image: %w", err)
	}
	r.logger.Debug("present: swapchain out of date, rebuilding", "err", err)
	if err := r.RebuildSwapchain(); err != nil {
		return 0, err
	}
	idx, err = r.swapchain.AcquireNextImage(r.imageReady, timeout)
	if err != nil {
		return 0, fmt.Errorf("present: acquire image after rebuild: %w", err)
	}
	return idx, nil
}

// BuildOperations traverses the window's layer tree. It does nothing
// unless a frame was requested.
func (r *SwapchainRenderer) BuildOperations() error {
	if !r.transition(StateBuildingRenderOperations, StateRequestSent) {
		return nil
	}
	return r.build()
}

func (r *SwapchainRenderer) build() error {
	r.opsValid = false
	window := r.Window()
	if window == nil {
		return nil
	}
	r.renderer.SetScale(window.DisplayScale())
	if err := r.renderer.BuildOperations(window.RootLayer()); err != nil {
		return err
	}
	r.opsValid = true
	r.transition(StateRenderOperationsReady, StateBuildingRenderOperations)
	return nil
}

// RecordCommandBuffer replays the operations into the command buffer. It
// does nothing unless operations are ready or the renderer is retrying a
// failed frame.
func (r *SwapchainRenderer) RecordCommandBuffer() error {
	if !r.transition(StateRecordingCommandBuffer, StateRenderOperationsReady, StateSwapchainFailed) {
		return nil
	}
	if err := r.renderer.PerformOperations(); err != nil {
		return err
	}
	r.transition(StateCommandBufferReady, StateRecordingCommandBuffer)
	return nil
}

// RebuildSwapchain replaces the swapchain with one sized to the window's
// current backing size. The old swapchain is handed to the new one and
// destroyed after it was created.
func (r *SwapchainRenderer) RebuildSwapchain() error {
	window := r.Window()
	if window == nil {
		return nil
	}
	caps, err := r.surface.Capabilities()
	if err != nil {
		return fmt.Errorf("present: surface capabilities: %w", err)
	}
	format, ok := chooseFormat(r.surface.Formats())
	if !ok {
		return ErrNoSurfaceFormat
	}

	cfg := r.stack.Config()
	extent := backingExtent(window)
	if extent.Empty() {
		extent = caps.CurrentExtent
	}
	if cfg.ClampExtent {
		extent = extent.Clamp(caps.MinExtent, caps.MaxExtent)
	}
	images := cfg.ImageCount
	if images < caps.MinImageCount {
		images = caps.MinImageCount
	}
	if caps.MaxImageCount != 0 && images > caps.MaxImageCount {
		images = caps.MaxImageCount
	}

	r.images = nil
	r.renderer.TargetCache().Clear()

	old := r.swapchain
	sc, err := r.stack.Device().NewSwapchain(&driver.SwapchainDescriptor{
		Surface:      r.surface,
		Extent:       extent,
		Format:       format,
		ImageCount:   images,
		Usage:        gputypes.TextureUsageRenderAttachment,
		PresentMode:  cfg.PresentMode,
		OldSwapchain: old,
	})
	if err != nil {
		r.mu.Lock()
		r.needsRebuild = true
		r.mu.Unlock()
		return fmt.Errorf("present: create swapchain %dx%d: %w", extent.Width, extent.Height, err)
	}
	r.swapchain = sc
	r.images = sc.Textures()
	if old != nil {
		old.Destroy()
	}

	r.mu.Lock()
	held := r.held
	r.mu.Unlock()
	if held {
		// imageReady may still carry the signal of an image that was
		// never submitted.
		sem, err := r.stack.Device().NewSemaphore()
		if err != nil {
			r.mu.Lock()
			r.needsRebuild = true
			r.mu.Unlock()
			return fmt.Errorf("present: recreate image-ready semaphore: %w", err)
		}
		r.imageReady.Destroy()
		r.imageReady = sem
	}

	r.mu.Lock()
	r.needsRebuild = false
	r.held = false
	r.mu.Unlock()
	r.logger.Debug("present: swapchain created",
		"width", extent.Width, "height", extent.Height, "images", len(r.images), "format", format)
	return nil
}

func backingExtent(w Window) driver.Extent2D {
	b := w.Bounds()
	s := w.DisplayScale()
	if s <= 0 {
		s = 1
	}
	return driver.Extent2D{
		Width:  uint32(math.Max(0, math.Ceil(b.Width()*s))),
		Height: uint32(math.Max(0, math.Ceil(b.Height()*s))),
	}
}

// Reset ends the frame, returning to idle or, after a submission-time
// surface loss, to swapchainFailed with a rebuild scheduled. The window
// reference held for the frame is dropped.
//
// Resetting to idle asserts that any acquired image was submitted. A frame
// abandoned after acquire must reset to swapchainFailed so the rebuild
// releases the image and its semaphore.
func (r *SwapchainRenderer) Reset(to State) error {
	if to != StateIdle && to != StateSwapchainFailed {
		return fmt.Errorf("%w: reset to %s", ErrInvalidState, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateInvalidated {
		return nil
	}
	r.state = to
	r.inflight = nil
	if to == StateSwapchainFailed {
		r.needsRebuild = true
	} else {
		r.held = false
	}
	r.renderer.EndFrame()
	return nil
}

// SetNeedsRebuild schedules a swapchain rebuild before the next frame.
func (r *SwapchainRenderer) SetNeedsRebuild() {
	r.mu.Lock()
	r.needsRebuild = true
	r.mu.Unlock()
}

// NeedsRebuild reports whether a rebuild is scheduled.
func (r *SwapchainRenderer) NeedsRebuild() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.needsRebuild
}

// Invalidate moves the renderer to its terminal state.
func (r *SwapchainRenderer) Invalidate() {
	r.mu.Lock()
	r.state = StateInvalidated
	r.inflight = nil
	r.mu.Unlock()
}

// Destroy invalidates the renderer and releases its GPU objects. The
// caller must ensure no submitted frame still uses them.
func (r *SwapchainRenderer) Destroy() {
	r.Invalidate()
	if r.renderer != nil {
		r.renderer.Destroy()
		r.renderer = nil
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
		r.images = nil
	}
	for _, d := range []driver.Destroyer{r.pool, r.imageReady, r.renderDone} {
		if d != nil {
			d.Destroy()
		}
	}
	r.pool, r.imageReady, r.renderDone = nil, nil, nil
}
