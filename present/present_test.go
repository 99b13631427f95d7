// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/headless"
	"github.com/gogpu/compositor/internal/shaders"
	"github.com/gogpu/compositor/layer"
	"github.com/gogpu/compositor/renderstack"
)

func TestMain(m *testing.M) {
	// The headless device only checks the module header.
	for _, p := range shaders.Programs {
		if _, err := shaders.SPIRV(p); err != nil {
			shaders.Preload(p, []uint32{0x07230203, 0x00010000, 0, 1, 0})
		}
	}
	os.Exit(m.Run())
}

// resizable is a WindowProvider whose size can change between frames.
type resizable struct {
	mu    sync.Mutex
	w, h  int
	scale float64
}

func (p *resizable) Size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w, p.h
}

func (p *resizable) ScaleFactor() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scale
}

func (p *resizable) RequestRedraw() {}

func (p *resizable) resize(w, h int) {
	p.mu.Lock()
	p.w, p.h = w, h
	p.mu.Unlock()
}

var _ gpucontext.WindowProvider = (*resizable)(nil)

type fixture struct {
	device   *headless.Device
	surface  *headless.Surface
	window   *HostWindow
	provider *resizable
	renderer *SwapchainRenderer
}

func newFixture(t *testing.T, surfaceOpts ...headless.SurfaceOption) *fixture {
	t.Helper()
	d := headless.New(headless.WithUnifiedMemory(true))
	stack, err := renderstack.New(d, renderstack.WithRunLoopInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("renderstack.New: %v", err)
	}
	provider := &resizable{w: 64, h: 32, scale: 2}
	root := layer.New()
	root.Bounds = layer.R(0, 0, 64, 32)
	root.Position = layer.Pt(32, 16)
	root.BackgroundColor = layer.White
	window := NewHostWindow(7, provider, root)
	surface := headless.NewSurface(128, 64, surfaceOpts...)
	q, ok := stack.PresentQueue(surface)
	if !ok {
		t.Fatal("no presentation queue")
	}
	r, err := NewSwapchainRenderer(stack, window, surface, q)
	if err != nil {
		t.Fatalf("NewSwapchainRenderer: %v", err)
	}
	t.Cleanup(func() {
		r.Destroy()
		stack.Close()
		d.Destroy()
	})
	return &fixture{device: d, surface: surface, window: window, provider: provider, renderer: r}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateRequestSent, "requestSent"},
		{StateBuildingRenderOperations, "buildingRenderOperations"},
		{StateRenderOperationsReady, "renderOperationsReady"},
		{StateRecordingCommandBuffer, "recordingCommandBuffer"},
		{StateCommandBufferReady, "commandBufferReady"},
		{StateSwapchainFailed, "swapchainFailed"},
		{StateInvalidated, "invalidated"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestInitialSwapchain(t *testing.T) {
	f := newFixture(t)
	sc := f.renderer.Swapchain()
	if got := sc.Extent(); got != (driver.Extent2D{Width: 128, Height: 64}) {
		t.Errorf("extent = %v, want 128x64 (bounds x scale)", got)
	}
	if sc.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("format = %v, want BGRA8Unorm", sc.Format())
	}
	if f.renderer.State() != StateIdle {
		t.Errorf("state = %s, want idle", f.renderer.State())
	}
}

func TestRequest(t *testing.T) {
	f := newFixture(t)
	steps, ok := f.renderer.Request()
	if !ok || steps != StepOperations|StepCommandBuffer {
		t.Fatalf("Request from idle = %v, %v", steps, ok)
	}
	if f.renderer.State() != StateRequestSent {
		t.Fatalf("state = %s, want requestSent", f.renderer.State())
	}
	if _, ok := f.renderer.Request(); ok {
		t.Error("Request while a frame is in flight should refuse")
	}

	if err := f.renderer.Reset(StateSwapchainFailed); err != nil {
		t.Fatal(err)
	}
	steps, ok = f.renderer.Request()
	if !ok || steps != StepCommandBuffer {
		t.Errorf("Request from swapchainFailed = %v, %v; want command buffer only", steps, ok)
	}
	if f.renderer.State() != StateSwapchainFailed {
		t.Errorf("state = %s, want swapchainFailed", f.renderer.State())
	}
	if !f.renderer.NeedsRebuild() {
		t.Error("reset to swapchainFailed should schedule a rebuild")
	}
	if err := f.renderer.Reset(StateCommandBufferReady); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Reset(commandBufferReady) = %v, want ErrInvalidState", err)
	}
}

func TestRecordFrame(t *testing.T) {
	f := newFixture(t)
	steps, _ := f.renderer.Request()
	frame, err := f.renderer.RecordFrame(context.Background(), steps)
	if err != nil {
		t.Fatalf("RecordFrame: %v", err)
	}
	if frame == nil {
		t.Fatal("RecordFrame returned no frame")
	}
	if f.renderer.State() != StateCommandBufferReady {
		t.Errorf("state = %s, want commandBufferReady", f.renderer.State())
	}
	if frame.WindowNumber != 7 || frame.ImageIndex != 0 {
		t.Errorf("frame = window %d image %d", frame.WindowNumber, frame.ImageIndex)
	}
	if frame.CommandBuffer != f.renderer.Renderer().CommandBuffer() {
		t.Error("frame carries a foreign command buffer")
	}
	if frame.Texture != f.renderer.Swapchain().Textures()[0] {
		t.Error("frame texture is not the acquired image")
	}
	if frame.UploadWait != nil {
		t.Error("unified memory should need no upload wait")
	}
	if f.renderer.inflight == nil {
		t.Error("window should be kept alive during the frame")
	}
	cb := frame.CommandBuffer.(*headless.CommandBuffer)
	if cb.Count(headless.CmdDraw) != 1 {
		t.Errorf("draws = %d, want 1 (root background)", cb.Count(headless.CmdDraw))
	}

	if err := f.renderer.Reset(StateIdle); err != nil {
		t.Fatal(err)
	}
	if f.renderer.State() != StateIdle || f.renderer.inflight != nil {
		t.Error("Reset should return to idle and drop the window reference")
	}

	steps, _ = f.renderer.Request()
	frame, _ = f.renderer.RecordFrame(context.Background(), steps)
	if frame.ImageIndex != 1 {
		t.Errorf("second frame image = %d, want 1", frame.ImageIndex)
	}
}

func TestAbandonedFrameReplacesImageReady(t *testing.T) {
	f := newFixture(t)
	steps, _ := f.renderer.Request()
	frame, err := f.renderer.RecordFrame(context.Background(), steps)
	if err != nil || frame == nil {
		t.Fatalf("RecordFrame = %v, %v", frame, err)
	}
	stale := frame.ImageReady.(*headless.Semaphore)
	if !stale.Signaled() {
		t.Fatal("acquire should signal image-ready")
	}

	// The frame is dropped without a submission.
	if err := f.renderer.Reset(StateSwapchainFailed); err != nil {
		t.Fatal(err)
	}
	steps, _ = f.renderer.Request()
	frame, err = f.renderer.RecordFrame(context.Background(), steps)
	if err != nil || frame == nil {
		t.Fatalf("retry RecordFrame = %v, %v", frame, err)
	}
	if frame.ImageReady == driver.Semaphore(stale) {
		t.Error("retry should acquire with a fresh image-ready semaphore")
	}
	if !frame.ImageReady.(*headless.Semaphore).Signaled() {
		t.Error("fresh semaphore should be signaled by the acquire")
	}
	_ = f.renderer.Reset(StateIdle)

	// A frame reset to idle was submitted; no replacement is needed.
	before := f.device.Journal().Stats().Semaphores
	f.renderer.SetNeedsRebuild()
	steps, _ = f.renderer.Request()
	if _, err := f.renderer.RecordFrame(context.Background(), steps); err != nil {
		t.Fatal(err)
	}
	if got := f.device.Journal().Stats().Semaphores; got != before {
		t.Errorf("semaphores = %d, want %d", got, before)
	}
}

func TestStepsAreNoOpsOutOfOrder(t *testing.T) {
	f := newFixture(t)
	if err := f.renderer.BuildOperations(); err != nil {
		t.Fatal(err)
	}
	if err := f.renderer.RecordCommandBuffer(); err != nil {
		t.Fatal(err)
	}
	if f.renderer.State() != StateIdle {
		t.Errorf("state = %s, want idle", f.renderer.State())
	}
	if n := len(f.renderer.Renderer().Context().Operations()); n != 0 {
		t.Errorf("%d operations built outside a frame", n)
	}
	if _, err := f.renderer.RecordFrame(context.Background(), StepCommandBuffer); !errors.Is(err, ErrInvalidState) {
		t.Errorf("RecordFrame in idle = %v, want ErrInvalidState", err)
	}

	f.renderer.Request()
	if err := f.renderer.RecordCommandBuffer(); err != nil {
		t.Fatal(err)
	}
	if f.renderer.State() != StateRequestSent {
		t.Errorf("RecordCommandBuffer before operations changed state to %s", f.renderer.State())
	}
}

func TestInvalidatedIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.renderer.Invalidate()
	if _, ok := f.renderer.Request(); ok {
		t.Error("Request after Invalidate")
	}
	frame, err := f.renderer.RecordFrame(context.Background(), StepOperations|StepCommandBuffer)
	if frame != nil || err != nil {
		t.Errorf("RecordFrame = %v, %v; want nil, nil", frame, err)
	}
	_ = f.renderer.BuildOperations()
	_ = f.renderer.RecordCommandBuffer()
	_ = f.renderer.Reset(StateIdle)
	if f.renderer.State() != StateInvalidated {
		t.Errorf("state = %s, want invalidated", f.renderer.State())
	}
	if f.renderer.Window() != nil {
		t.Error("Window should be nil once invalidated")
	}
}

func TestClosedWindowYieldsNoFrame(t *testing.T) {
	f := newFixture(t)
	steps, _ := f.renderer.Request()
	f.window.Close()
	frame, err := f.renderer.RecordFrame(context.Background(), steps)
	if frame != nil || err != nil {
		t.Errorf("RecordFrame = %v, %v; want nil, nil", frame, err)
	}
	if f.renderer.State() != StateInvalidated {
		t.Errorf("state = %s, want invalidated", f.renderer.State())
	}
}

func TestAcquireRebuildsOnce(t *testing.T) {
	f := newFixture(t)
	first := f.renderer.Swapchain().(*headless.Swapchain)
	f.surface.FailAcquire(driver.ErrOutOfDate)

	steps, _ := f.renderer.Request()
	frame, err := f.renderer.RecordFrame(context.Background(), steps)
	if err != nil || frame == nil {
		t.Fatalf("RecordFrame = %v, %v; want a frame after one rebuild", frame, err)
	}
	if frame.Swapchain == driver.Swapchain(first) {
		t.Error("swapchain was not rebuilt")
	}
	if !first.Destroyed() {
		t.Error("old swapchain should be destroyed after the rebuild")
	}
	if got := f.device.Journal().Stats().Swapchains; got != 2 {
		t.Errorf("swapchains = %d, want 2", got)
	}
}

func TestAcquireFailsTwice(t *testing.T) {
	f := newFixture(t)
	f.surface.FailAcquire(driver.ErrOutOfDate, driver.ErrSuboptimal)
	steps, _ := f.renderer.Request()
	frame, err := f.renderer.RecordFrame(context.Background(), steps)
	if frame != nil || !driver.IsSurfaceLost(err) {
		t.Fatalf("RecordFrame = %v, %v; want surface-lost error", frame, err)
	}

	// The scheduler marks the window failed; the next tick retries.
	_ = f.renderer.Reset(StateSwapchainFailed)
	steps, ok := f.renderer.Request()
	if !ok {
		t.Fatal("failed renderer should accept a request")
	}
	frame, err = f.renderer.RecordFrame(context.Background(), steps)
	if err != nil || frame == nil {
		t.Fatalf("retry = %v, %v", frame, err)
	}
	if n := len(f.renderer.Renderer().Context().Operations()); n == 0 {
		t.Error("retry should build operations the failed frame never built")
	}
	if f.renderer.NeedsRebuild() {
		t.Error("rebuild flag should be cleared by the retry")
	}
}

func TestResizeRebuildsWithNewExtent(t *testing.T) {
	f := newFixture(t)
	f.provider.resize(100, 50)
	f.surface.Resize(200, 100)

	steps, _ := f.renderer.Request()
	if _, err := f.renderer.RecordFrame(context.Background(), steps); err != nil {
		t.Fatal(err)
	}
	if got := f.renderer.Swapchain().Extent(); got != (driver.Extent2D{Width: 200, Height: 100}) {
		t.Errorf("extent = %v, want 200x100", got)
	}
}

func TestExtentClampedToSurface(t *testing.T) {
	f := newFixture(t, headless.WithExtentLimits(
		driver.Extent2D{Width: 16, Height: 16},
		driver.Extent2D{Width: 100, Height: 100},
	))
	if got := f.renderer.Swapchain().Extent(); got != (driver.Extent2D{Width: 100, Height: 64}) {
		t.Errorf("extent = %v, want 100x64", got)
	}

	f.provider.resize(2, 2)
	f.renderer.SetNeedsRebuild()
	steps, _ := f.renderer.Request()
	if _, err := f.renderer.RecordFrame(context.Background(), steps); err != nil {
		t.Fatal(err)
	}
	if got := f.renderer.Swapchain().Extent(); got != (driver.Extent2D{Width: 16, Height: 16}) {
		t.Errorf("extent = %v, want clamped up to 16x16", got)
	}
}

func TestRecordFrameHonorsContext(t *testing.T) {
	f := newFixture(t)
	steps, _ := f.renderer.Request()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.renderer.RecordFrame(ctx, steps); !errors.Is(err, context.Canceled) {
		t.Errorf("RecordFrame = %v, want context.Canceled", err)
	}
}

func TestNoSurfaceFormat(t *testing.T) {
	d := headless.New()
	defer d.Destroy()
	stack, err := renderstack.New(d)
	if err != nil {
		t.Fatal(err)
	}
	defer stack.Close()
	surface := headless.NewSurface(10, 10, headless.WithSurfaceFormats())
	_, err = NewSwapchainRenderer(stack, NewHostWindow(1, nil, layer.New()), surface, stack.GraphicsQueue())
	if !errors.Is(err, ErrNoSurfaceFormat) {
		t.Errorf("err = %v, want ErrNoSurfaceFormat", err)
	}
}

func TestChooseFormat(t *testing.T) {
	tests := []struct {
		in   []gputypes.TextureFormat
		want gputypes.TextureFormat
		ok   bool
	}{
		{nil, 0, false},
		{[]gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm}, gputypes.TextureFormatBGRA8Unorm, true},
		{[]gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm}, gputypes.TextureFormatRGBA8Unorm, true},
		{[]gputypes.TextureFormat{gputypes.TextureFormatRGBA16Float}, gputypes.TextureFormatRGBA16Float, true},
	}
	for _, tt := range tests {
		got, ok := chooseFormat(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("chooseFormat(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHostWindow(t *testing.T) {
	w := NewHostWindow(3, gpucontext.NullWindowProvider{W: 640, H: 480, SF: 1.5}, nil)
	if w.Bounds() != layer.R(0, 0, 640, 480) || w.DisplayScale() != 1.5 {
		t.Errorf("geometry = %v @ %v", w.Bounds(), w.DisplayScale())
	}
	if !w.Mapped() || w.Closed() || w.PendingResize() {
		t.Error("new window should be mapped, open and not resizing")
	}
	w.SetMapped(false)
	w.SetPendingResize(true)
	w.Close()
	if w.Mapped() || !w.Closed() || !w.PendingResize() {
		t.Error("flags not applied")
	}
	if NewHostWindow(1, nil, nil).Bounds().Width() != 800 {
		t.Error("nil provider should default to 800x600")
	}
}
