// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/headless"
	"github.com/gogpu/compositor/internal/shaders"
	"github.com/gogpu/compositor/layer"
	"github.com/gogpu/compositor/renderstack"
)

func TestMain(m *testing.M) {
	// Pipeline creation only needs a valid module header on the headless
	// device; fall back to one when the compiler cannot handle a program.
	for _, p := range shaders.Programs {
		if _, err := shaders.SPIRV(p); err != nil {
			compileProgram = func(shaders.Program) ([]uint32, error) {
				return []uint32{0x07230203, 0x00010000, 0, 1, 0}, nil
			}
			break
		}
	}
	os.Exit(m.Run())
}

type fixture struct {
	device   *headless.Device
	stack    *renderstack.Stack
	renderer *Renderer
	dest     driver.Texture
}

func newFixture(t *testing.T, opts ...headless.Option) *fixture {
	t.Helper()
	d := headless.New(opts...)
	stack, err := renderstack.New(d, renderstack.WithRunLoopInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("renderstack.New: %v", err)
	}
	pool, err := d.NewCommandPool(stack.GraphicsQueue())
	if err != nil {
		t.Fatalf("NewCommandPool: %v", err)
	}
	r, err := NewRenderer(stack, pool, gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	dest, err := d.NewTexture(&driver.TextureDescriptor{
		Label: "dest", Width: 200, Height: 100, Format: gputypes.TextureFormatBGRA8Unorm,
	})
	if err != nil {
		t.Fatalf("NewTexture: %v", err)
	}
	t.Cleanup(func() {
		r.Destroy()
		stack.Close()
		d.Destroy()
	})
	return &fixture{device: d, stack: stack, renderer: r, dest: dest}
}

// frame builds and records one frame for root.
func (f *fixture) frame(t *testing.T, root *layer.Layer) {
	t.Helper()
	if err := f.renderer.SetDestination(f.dest); err != nil {
		t.Fatalf("SetDestination: %v", err)
	}
	if err := f.renderer.BuildOperations(root); err != nil {
		t.Fatalf("BuildOperations: %v", err)
	}
	if err := f.renderer.PerformOperations(); err != nil {
		t.Fatalf("PerformOperations: %v", err)
	}
}

func rootLayer(w, h float64) *layer.Layer {
	root := layer.New()
	root.Bounds = layer.R(0, 0, w, h)
	root.Position = layer.Pt(w/2, h/2)
	return root
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func readFloat(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestDescriptorLayout(t *testing.T) {
	l := layer.New()
	l.Bounds = layer.R(1, 2, 3, 4)
	l.Position = layer.Pt(5, 6)
	l.BackgroundColor = layer.RGBA(0.1, 0.2, 0.3, 0.4)
	l.BorderColor = layer.RGB(1, 0, 0)
	l.BorderWidth = 2
	l.CornerRadius = 7
	l.MasksToBounds = true
	l.ShadowRadius = 3
	l.ShadowOffset = layer.Pt(8, 9)
	l.ShadowOpacity = 0.5
	l.Opacity = 0.75
	l.ShadowColor = layer.RGB(0, 0, 1)

	d := NewDescriptor(l, layer.Translation(11, 12, 0))
	b := d.AppendBytes(nil)
	if len(b) != DescriptorStride {
		t.Fatalf("encoded %d bytes, want %d", len(b), DescriptorStride)
	}

	tests := []struct {
		name string
		off  int
		want float32
	}{
		{"transform[0]", 0, 1},
		{"transform tx", 48, 11},
		{"transform ty", 52, 12},
		{"contents transform[0]", 64, 1},
		{"position.x", 128, 5},
		{"anchor.x", 136, 0.5},
		{"bounds.w", 152, 3},
		{"background.a", 172, 0.4},
		{"border.r", 176, 1},
		{"border width", 192, 2},
		{"corner radius", 196, 7},
		{"shadow radius", 204, 3},
		{"shadow offset.y", 212, 9},
		{"shadow opacity", 216, 0.5},
		{"opacity", 220, 0.75},
		{"shadow color.b", 232, 1},
	}
	for _, tt := range tests {
		if got := readFloat(b, tt.off); got != tt.want {
			t.Errorf("%s at %d = %v, want %v", tt.name, tt.off, got, tt.want)
		}
	}
	if got := binary.LittleEndian.Uint32(b[200:]); got != 1 {
		t.Errorf("masks to bounds = %d, want 1", got)
	}
	for i := 240; i < DescriptorStride; i++ {
		if b[i] != 0 {
			t.Fatalf("padding byte %d = %d", i, b[i])
		}
	}
}

func TestTraverseOrder(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	root.BackgroundColor = layer.White

	framed := layer.New()
	framed.Bounds = layer.R(0, 0, 20, 20)
	framed.BackgroundColor = layer.Black
	framed.BorderColor = layer.RGB(1, 0, 0)
	framed.BorderWidth = 1
	root.AddSublayer(framed)

	hidden := layer.New()
	hidden.Hidden = true
	hidden.BackgroundColor = layer.Black
	root.AddSublayer(hidden)

	faint := layer.New()
	faint.Opacity = 0.005
	faint.BackgroundColor = layer.Black
	root.AddSublayer(faint)

	picture := layer.New()
	picture.Bounds = layer.R(0, 0, 4, 4)
	picture.SetContents(solidImage(4, 4, color.RGBA{R: 255, A: 255}))
	root.AddSublayer(picture)

	f.frame(t, root)

	ctx := f.renderer.Context()
	if got := ctx.DescriptorCount(); got != 3 {
		t.Fatalf("DescriptorCount = %d, want 3", got)
	}
	tex := picture.Texture()
	if tex == nil {
		t.Fatal("picture has no texture")
	}
	want := []string{
		"UpdateUniforms", "BeginScene",
		"BindVertexBuffer(0)", "Background",
		"BindVertexBuffer(1)", "Background",
		"BindVertexBuffer(1)", "Border",
		"BindVertexBuffer(2)", "Contents(" + tex.ID() + ")",
		"EndScene",
	}
	ops := ctx.Operations()
	if len(ops) != len(want) {
		t.Fatalf("got %d operations %v, want %d", len(ops), ops, len(want))
	}
	for i, op := range ops {
		if op.String() != want[i] {
			t.Errorf("op %d = %s, want %s", i, op, want[i])
		}
	}

	cmd := f.renderer.CommandBuffer().(*headless.CommandBuffer)
	if got := cmd.Count(headless.CmdDraw); got != 4 {
		t.Errorf("draws = %d, want 4", got)
	}
	if got := cmd.Count(headless.CmdBeginRenderPass); got != 1 {
		t.Errorf("render passes = %d, want 1", got)
	}
	if got := cmd.Count(headless.CmdBindPipeline); got != 3 {
		t.Errorf("pipeline binds = %d, want 3", got)
	}
}

func TestTraverseTransforms(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(100, 50)
	child := layer.New()
	child.Bounds = layer.R(0, 0, 10, 10)
	child.Position = layer.Pt(20, 30)
	root.AddSublayer(child)

	f.renderer.SetScale(2)
	f.frame(t, root)

	ds := f.renderer.Context().Descriptors()
	if len(ds) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(ds))
	}
	tests := []struct {
		name string
		got  float32
		want float32
	}{
		{"root sx", ds[0].Transform[0], 200},
		{"root sy", ds[0].Transform[5], 100},
		{"root tx", ds[0].Transform[12], 0},
		{"child sx", ds[1].Transform[0], 20},
		{"child tx", ds[1].Transform[12], 30},
		{"child ty", ds[1].Transform[13], 50},
	}
	for _, tt := range tests {
		if math.Abs(float64(tt.got-tt.want)) > 1e-4 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestVertexBufferReusedForSameSize(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	root.BackgroundColor = layer.White
	root.AddSublayer(layer.New())

	f.frame(t, root)
	first := f.renderer.Context().VertexBuffer()
	before := f.device.Journal().Stats().Buffers
	waitUpload(t, f)

	f.frame(t, root)
	if f.renderer.Context().VertexBuffer() != first {
		t.Error("vertex buffer was reallocated for an unchanged frame")
	}
	if got := f.device.Journal().Stats().Buffers; got != before {
		t.Errorf("buffers = %d, want %d", got, before)
	}
	waitUpload(t, f)

	root.AddSublayer(layer.New())
	f.frame(t, root)
	if f.renderer.Context().VertexBuffer() == first {
		t.Error("vertex buffer should be reallocated when the descriptor count changes")
	}
}

func waitUpload(t *testing.T, f *fixture) {
	t.Helper()
	w, ok := f.renderer.Context().UploadWait()
	if !ok {
		return
	}
	sem := w.Semaphore.(driver.TimelineSemaphore)
	if ok, err := sem.Wait(w.Value, time.Second); err != nil || !ok {
		t.Fatalf("upload did not complete: %v", err)
	}
}

func TestStagedDescriptorUpload(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	root.BackgroundColor = layer.White
	f.frame(t, root)

	w, ok := f.renderer.Context().UploadWait()
	if !ok {
		t.Fatal("expected an upload wait without unified memory")
	}
	if w.Value != 1 || w.Stages != driver.StageVertexInput {
		t.Errorf("upload wait = %+v, want value 1 at vertex input", w)
	}
	transfer := f.stack.TransferQueue().Family()
	if got := len(f.device.Journal().SubmitsOn(transfer)); got != 1 {
		t.Fatalf("transfer submits = %d, want 1", got)
	}
	waitUpload(t, f)

	ctx := f.renderer.Context()
	want := ctx.Descriptors()[0].AppendBytes(nil)
	got := ctx.VertexBuffer().(*headless.Buffer).Bytes()
	if string(got) != string(want) {
		t.Error("vertex buffer does not hold the encoded descriptor")
	}
	if ctx.VertexBuffer().HostVisible() {
		t.Error("vertex buffer should be device local")
	}
}

// heldQueue accepts submissions without executing them.
type heldQueue struct {
	driver.Queue
	submits int
}

func (q *heldQueue) Submit([]driver.SubmitInfo, driver.Fence) error {
	q.submits++
	return nil
}

func TestReplayAwaitsPendingUpload(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	root.BackgroundColor = layer.White

	ctx := f.renderer.Context()
	held := &heldQueue{Queue: ctx.transfer}
	ctx.transfer = held
	ctx.config.UploadTimeout = 20 * time.Millisecond

	f.frame(t, root)
	if held.submits != 1 {
		t.Fatalf("transfer submits = %d, want 1", held.submits)
	}
	upload := ctx.uploadCommands.(*headless.CommandBuffer)

	// The draw that waited on the copy was dropped; replaying must not
	// reuse the upload commands while the copy is pending.
	if err := f.renderer.PerformOperations(); !errors.Is(err, driver.ErrTimeout) {
		t.Fatalf("replay = %v, want ErrTimeout", err)
	}
	if held.submits != 1 {
		t.Errorf("transfer submits = %d, want 1", held.submits)
	}
	if got := upload.Count(headless.CmdCopyBuffer); got != 1 {
		t.Errorf("pending upload commands were reset: %d copies recorded", got)
	}

	if err := ctx.uploadTimeline.Signal(ctx.uploadCount); err != nil {
		t.Fatal(err)
	}
	if err := f.renderer.PerformOperations(); err != nil {
		t.Fatalf("replay after completion: %v", err)
	}
	if held.submits != 2 || ctx.uploadCount != 2 {
		t.Errorf("submits = %d, upload count = %d; want 2, 2", held.submits, ctx.uploadCount)
	}
}

func TestUnifiedMemoryWritesInPlace(t *testing.T) {
	f := newFixture(t, headless.WithUnifiedMemory(true))
	root := rootLayer(200, 100)
	root.BackgroundColor = layer.White
	f.frame(t, root)

	if _, ok := f.renderer.Context().UploadWait(); ok {
		t.Error("unified memory should not need an upload wait")
	}
	for _, s := range f.device.Journal().Submits() {
		for _, cb := range s.CommandBuffers {
			if cb.Count(headless.CmdCopyBuffer) > 0 {
				t.Error("unexpected staging copy on unified memory")
			}
		}
	}
	ctx := f.renderer.Context()
	want := ctx.Descriptors()[0].AppendBytes(nil)
	if got := ctx.VertexBuffer().(*headless.Buffer).Bytes(); string(got) != string(want) {
		t.Error("vertex buffer does not hold the encoded descriptor")
	}
}

func TestUploadTimelineRenewedEachFrame(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	root.BackgroundColor = layer.White

	f.frame(t, root)
	first, _ := f.renderer.Context().UploadWait()
	waitUpload(t, f)
	f.frame(t, root)
	second, _ := f.renderer.Context().UploadWait()
	if first.Semaphore == second.Semaphore {
		t.Error("each frame should use a fresh upload timeline")
	}
	if second.Value != 1 {
		t.Errorf("upload value = %d, want 1 after Clear", second.Value)
	}
	if _, err := first.Semaphore.(driver.TimelineSemaphore).Value(); !errors.Is(err, driver.ErrDestroyed) {
		t.Errorf("previous timeline Value err = %v, want ErrDestroyed", err)
	}
}

func TestContentsScaledAndUploaded(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	pic := layer.New()
	pic.Bounds = layer.R(0, 0, 4, 4)
	pic.SetContents(solidImage(2, 2, color.RGBA{R: 255, A: 255}))
	root.AddSublayer(pic)

	f.renderer.SetScale(2)
	f.frame(t, root)

	tex, ok := pic.Texture().(*headless.Texture)
	if !ok {
		t.Fatalf("texture = %T", pic.Texture())
	}
	if tex.Width() != 8 || tex.Height() != 8 {
		t.Fatalf("texture %dx%d, want 8x8", tex.Width(), tex.Height())
	}
	px := tex.Pixels()
	if len(px) != 8*8*4 {
		t.Fatalf("uploaded %d bytes, want %d", len(px), 8*8*4)
	}
	if px[0] != 255 || px[1] != 0 || px[3] != 255 {
		t.Errorf("first pixel = %v, want opaque red", px[:4])
	}
	if pic.NeedsDisplay() {
		t.Error("display flag should be cleared")
	}

	// Same size: the texture is reused.
	pic.SetNeedsDisplay()
	f.frame(t, root)
	if pic.Texture() != driver.Texture(tex) {
		t.Error("texture should be reused when the size is unchanged")
	}
}

func TestDelegateDisplaysBackingStore(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	l := layer.New()
	l.Bounds = layer.R(0, 0, 2, 2)
	l.SetBackingStore(layer.NewBackingStore(2, 2))
	calls := 0
	l.Delegate = layer.DelegateFunc(func(l *layer.Layer, scale float64) {
		calls++
		b := l.BackingStore()
		b.Back().Set(0, 0, color.RGBA{G: 255, A: 255})
		b.Swap()
	})
	root.AddSublayer(l)

	f.frame(t, root)
	f.frame(t, root)
	if calls != 1 {
		t.Errorf("delegate called %d times, want 1", calls)
	}
	px := l.Texture().(*headless.Texture).Pixels()
	if px[1] != 255 {
		t.Errorf("first pixel = %v, want green", px[:4])
	}
}

func TestTextureDropReleasesDescriptorSet(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	a := layer.New()
	a.Bounds = layer.R(0, 0, 2, 2)
	a.SetContents(solidImage(2, 2, color.RGBA{B: 255, A: 255}))
	root.AddSublayer(a)
	f.frame(t, root)

	cache := f.renderer.Context().ContentsCache()
	if used, free := cache.Len(); used != 1 || free != 0 {
		t.Fatalf("cache = %d used, %d free; want 1, 0", used, free)
	}
	sets := f.device.Journal().Stats().DescriptorSets

	a.RemoveFromSuperlayer()
	a.Release()
	if used, free := cache.Len(); used != 0 || free != 1 {
		t.Fatalf("after drop cache = %d used, %d free; want 0, 1", used, free)
	}

	b := layer.New()
	b.Bounds = layer.R(0, 0, 2, 2)
	b.SetContents(solidImage(2, 2, color.RGBA{R: 255, A: 255}))
	root.AddSublayer(b)
	waitUpload(t, f)
	f.frame(t, root)
	if got := f.device.Journal().Stats().DescriptorSets; got != sets {
		t.Errorf("descriptor sets = %d, want %d (free set reused)", got, sets)
	}
}

func TestDescriptorSetCache(t *testing.T) {
	d := headless.New()
	defer d.Destroy()
	layouts, err := NewLayouts(d)
	if err != nil {
		t.Fatal(err)
	}
	defer layouts.Destroy()
	c := NewDescriptorSetCache(d, layouts.Contents, 2, nil)

	if _, ok := c.Existing("a"); ok {
		t.Fatal("Existing should not allocate")
	}
	if got := d.Journal().Stats().DescriptorPools; got != 0 {
		t.Fatalf("pools = %d before first Create, want 0", got)
	}

	a, err := c.Create("a")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := c.Create("a")
	if again != a {
		t.Error("Create for an existing key must return the same set")
	}
	if _, err := c.Create("b"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Create("c"); err != nil {
		t.Fatalf("Create after exhaustion: %v", err)
	}
	if got := d.Journal().Stats().DescriptorPools; got != 2 {
		t.Errorf("pools = %d, want 2 after exhaustion", got)
	}

	c.Release("a")
	c.Release("unknown")
	if used, free := c.Len(); used != 2 || free != 1 {
		t.Errorf("Len = %d, %d; want 2, 1", used, free)
	}
	reused, _ := c.Create("d")
	if reused != a {
		t.Error("a released set should be reused")
	}
	if got, ok := c.Existing("d"); !ok || got != a {
		t.Error("Existing(d) should return the reused set")
	}

	c.Clear()
	if used, free := c.Len(); used != 0 || free != 0 {
		t.Errorf("Len after Clear = %d, %d", used, free)
	}
}

type failingPool struct{ driver.DescriptorPool }

func (failingPool) Allocate(driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	return nil, driver.ErrDeviceLost
}

type failingPoolDevice struct{ *headless.Device }

func (failingPoolDevice) NewDescriptorPool(*driver.DescriptorPoolDescriptor) (driver.DescriptorPool, error) {
	return failingPool{}, nil
}

func TestDescriptorSetCachePropagatesOtherErrors(t *testing.T) {
	d := headless.New()
	defer d.Destroy()
	layouts, _ := NewLayouts(d)
	c := NewDescriptorSetCache(failingPoolDevice{d}, layouts.Contents, 4, nil)
	if _, err := c.Create("a"); !errors.Is(err, driver.ErrDeviceLost) {
		t.Errorf("Create = %v, want ErrDeviceLost", err)
	}
	if used, _ := c.Len(); used != 0 {
		t.Error("failed Create must not assign a set")
	}
}

func TestRenderTargetCache(t *testing.T) {
	f := newFixture(t)
	c := f.renderer.TargetCache()
	if err := f.renderer.SetDestination(f.dest); err != nil {
		t.Fatal(err)
	}
	t1, ok := c.Existing(f.dest)
	if !ok {
		t.Fatal("destination has no target")
	}
	if err := f.renderer.SetDestination(f.dest); err != nil {
		t.Fatal(err)
	}
	t2, _ := c.Existing(f.dest)
	if t1 != t2 || c.Len() != 1 {
		t.Error("target should be cached per texture")
	}
	if vp := t1.Viewport(); vp.Width != 200 || vp.Height != 100 || vp.MaxDepth != 1 {
		t.Errorf("viewport = %+v", vp)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Error("Clear left targets")
	}
}

func TestSetDestinationFormatChange(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	pic := layer.New()
	pic.Bounds = layer.R(0, 0, 2, 2)
	pic.SetContents(solidImage(2, 2, color.RGBA{A: 255}))
	root.AddSublayer(pic)
	f.frame(t, root)

	before := f.device.Journal().Stats().Pipelines
	rgba, _ := f.device.NewTexture(&driver.TextureDescriptor{
		Width: 200, Height: 100, Format: gputypes.TextureFormatRGBA8Unorm,
	})
	if err := f.renderer.SetDestination(rgba); err != nil {
		t.Fatalf("SetDestination: %v", err)
	}
	if f.renderer.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format = %v, want RGBA8Unorm", f.renderer.Format())
	}
	if got := f.device.Journal().Stats().Pipelines - before; got != len(shaders.Programs) {
		t.Errorf("rebuilt %d pipelines, want %d", got, len(shaders.Programs))
	}
	if used, free := f.renderer.Context().ContentsCache().Len(); used != 0 || free != 0 {
		t.Error("contents cache should be cleared on format change")
	}
	if _, ok := f.renderer.TargetCache().Existing(f.dest); ok {
		t.Error("target cache should be cleared on format change")
	}
}

func TestRendererErrors(t *testing.T) {
	f := newFixture(t)
	if err := f.renderer.BuildOperations(nil); !errors.Is(err, ErrNoLayer) {
		t.Errorf("BuildOperations(nil) = %v, want ErrNoLayer", err)
	}
	if err := f.renderer.SetDestination(nil); !errors.Is(err, ErrNoRenderTarget) {
		t.Errorf("SetDestination(nil) = %v, want ErrNoRenderTarget", err)
	}
	if err := f.renderer.BuildOperations(rootLayer(10, 10)); err != nil {
		t.Fatal(err)
	}
	if err := f.renderer.PerformOperations(); !errors.Is(err, ErrNoRenderTarget) {
		t.Errorf("PerformOperations without destination = %v, want ErrNoRenderTarget", err)
	}
	f.renderer.EndFrame()
	if err := f.renderer.Context().PerformOperations(); !errors.Is(err, ErrNoCommandBuffer) {
		t.Errorf("Context.PerformOperations without command buffer = %v", err)
	}
}

func TestOpKindString(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{UpdateUniforms(layer.Identity()), "UpdateUniforms"},
		{BeginScene(), "BeginScene"},
		{EndScene(), "EndScene"},
		{PushRenderTarget(nil), "PushRenderTarget"},
		{PopRenderTarget(), "PopRenderTarget"},
		{BindVertexBuffer(3), "BindVertexBuffer(3)"},
		{Background(), "Background"},
		{Border(), "Border"},
		{Contents(nil), "Contents"},
		{Operation{Kind: 99}, "OpKind(99)"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestOffscreenTargetPushPop(t *testing.T) {
	f := newFixture(t)
	root := rootLayer(200, 100)
	root.BackgroundColor = layer.White
	if err := f.renderer.SetDestination(f.dest); err != nil {
		t.Fatal(err)
	}
	if err := f.renderer.BuildOperations(root); err != nil {
		t.Fatal(err)
	}

	off, _ := f.device.NewTexture(&driver.TextureDescriptor{
		Width: 16, Height: 16, Format: gputypes.TextureFormatBGRA8Unorm,
	})
	ctx := f.renderer.Context()
	target, err := f.renderer.TargetCache().Create(off, f.renderer.pipelines.OffscreenPass(), driver.ClearValue{})
	if err != nil {
		t.Fatal(err)
	}
	ops := ctx.Operations()
	end := ops[len(ops)-1]
	ctx.operations = append(ops[:len(ops)-1], PushRenderTarget(target), BindVertexBuffer(0), Background(), PopRenderTarget(), end)

	if err := f.renderer.PerformOperations(); err != nil {
		t.Fatalf("PerformOperations: %v", err)
	}
	cmd := f.renderer.CommandBuffer().(*headless.CommandBuffer)
	if got := cmd.Count(headless.CmdBeginRenderPass); got != 3 {
		t.Errorf("render passes = %d, want 3 (scene, offscreen, resumed scene)", got)
	}
	if got := cmd.Count(headless.CmdEndRenderPass); got != 3 {
		t.Errorf("end render passes = %d, want 3", got)
	}
}
