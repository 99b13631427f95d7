// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/layer"
)

func appendFloat32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

// uploadDescriptors writes the encoded descriptors into the vertex
// buffer. On devices without unified memory the data goes through a
// staging buffer and a copy on the transfer queue, which signals the
// upload timeline.
func (c *Context) uploadDescriptors() error {
	c.encoded = c.encoded[:0]
	for i := range c.descriptors {
		c.encoded = c.descriptors[i].AppendBytes(c.encoded)
	}
	size := uint64(len(c.encoded))
	if size == 0 {
		return nil
	}

	if c.vertexBuffer == nil || c.vertexBuffer.Size() != size {
		if c.vertexBuffer != nil {
			c.vertexBuffer.Destroy()
			c.vertexBuffer = nil
		}
		buf, err := c.device.NewBuffer(&driver.BufferDescriptor{
			Label:       "layer descriptors",
			Size:        size,
			Usage:       gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
			HostVisible: c.device.Info().UnifiedMemory,
		})
		if err != nil {
			return fmt.Errorf("render: create vertex buffer: %w", err)
		}
		c.vertexBuffer = buf
	}

	if c.vertexBuffer.HostVisible() {
		return c.vertexBuffer.Write(0, c.encoded)
	}

	if c.stagingBuffer == nil || c.stagingBuffer.Size() != size {
		if c.stagingBuffer != nil {
			c.stagingBuffer.Destroy()
			c.stagingBuffer = nil
		}
		buf, err := c.device.NewBuffer(&driver.BufferDescriptor{
			Label:       "layer descriptors staging",
			Size:        size,
			Usage:       gputypes.BufferUsageCopySrc | gputypes.BufferUsageMapWrite,
			HostVisible: true,
		})
		if err != nil {
			return fmt.Errorf("render: create staging buffer: %w", err)
		}
		c.stagingBuffer = buf
	}
	if err := c.stagingBuffer.Write(0, c.encoded); err != nil {
		return err
	}

	if err := c.awaitUpload(); err != nil {
		return err
	}
	cmd := c.uploadCommands
	if err := cmd.Reset(); err != nil {
		return err
	}
	if err := cmd.Begin(); err != nil {
		return err
	}
	cmd.CopyBuffer(c.stagingBuffer, c.vertexBuffer, []driver.BufferCopy{{Size: size}})
	if err := cmd.End(); err != nil {
		return err
	}

	c.uploadCount++
	err := c.transfer.Submit([]driver.SubmitInfo{{
		CommandBuffers: []driver.CommandBuffer{cmd},
		Signals:        []driver.SemaphoreSignal{{Semaphore: c.uploadTimeline, Value: c.uploadCount}},
	}}, nil)
	if err != nil {
		return fmt.Errorf("render: submit descriptor upload: %w", err)
	}
	c.uploaded = true
	return nil
}

// awaitUpload blocks until the last descriptor copy has completed. A draw
// normally waits on it first, so this returns at once unless that draw was
// never submitted.
func (c *Context) awaitUpload() error {
	if c.uploadTimeline == nil || c.uploadCount == 0 {
		return nil
	}
	ok, err := c.uploadTimeline.Wait(c.uploadCount, c.config.UploadTimeout)
	if err != nil {
		return fmt.Errorf("render: wait for descriptor upload %d: %w", c.uploadCount, err)
	}
	if !ok {
		return fmt.Errorf("render: descriptor upload %d: %w", c.uploadCount, driver.ErrTimeout)
	}
	return nil
}

// UploadWait returns the wait the draw submission must include when the
// descriptors were copied on the GPU this frame.
func (c *Context) UploadWait() (driver.SemaphoreWait, bool) {
	if !c.uploaded {
		return driver.SemaphoreWait{}, false
	}
	return driver.SemaphoreWait{
		Semaphore: c.uploadTimeline,
		Value:     c.uploadCount,
		Stages:    driver.StageVertexInput,
	}, true
}

// updateContents regenerates l's texture from its contents image. The
// texture is reused when its size still fits.
func (c *Context) updateContents(l *layer.Layer) error {
	img := l.Contents()
	if img == nil {
		l.ReplaceTexture(nil)
		return nil
	}

	w := int(math.Ceil(l.Bounds.Width() * c.scale))
	h := int(math.Ceil(l.Bounds.Height() * c.scale))
	if w <= 0 || h <= 0 {
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	}
	if w <= 0 || h <= 0 {
		l.ReplaceTexture(nil)
		return nil
	}
	pixels := rgbaPixels(img, w, h)

	tex := l.Texture()
	if tex == nil || int(tex.Width()) != w || int(tex.Height()) != h {
		created, err := c.device.NewTexture(&driver.TextureDescriptor{
			Label:  "layer " + l.ID(),
			Width:  uint32(w),
			Height: uint32(h),
			Format: gputypes.TextureFormatRGBA8Unorm,
			Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("render: create texture for layer %s: %w", l.ID(), err)
		}
		cache := c.contents
		created.OnDestroy(func() { cache.Release(created) })
		l.ReplaceTexture(created)
		tex = created
	}
	return c.uploadTexture(tex, pixels, uint32(w*4))
}

// rgbaPixels returns img as tightly packed RGBA rows of size w x h.
func rgbaPixels(img image.Image, w, h int) []byte {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Dx() == w && rgba.Rect.Dy() == h && rgba.Stride == w*4 {
		return rgba.Pix[rgba.PixOffset(rgba.Rect.Min.X, rgba.Rect.Min.Y):][:w*h*4]
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		xdraw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	}
	return dst.Pix
}

// uploadTexture copies pixels into tex with a one-shot submission and
// waits for it.
func (c *Context) uploadTexture(tex driver.Texture, pixels []byte, bytesPerRow uint32) error {
	staging, err := c.device.NewBuffer(&driver.BufferDescriptor{
		Label:       "texture staging",
		Size:        uint64(len(pixels)),
		Usage:       gputypes.BufferUsageCopySrc | gputypes.BufferUsageMapWrite,
		HostVisible: true,
	})
	if err != nil {
		return fmt.Errorf("render: create texture staging buffer: %w", err)
	}
	defer staging.Destroy()
	if err := staging.Write(0, pixels); err != nil {
		return err
	}

	cmd, err := c.uploadPool.NewCommandBuffer()
	if err != nil {
		return fmt.Errorf("render: create texture upload commands: %w", err)
	}
	defer cmd.Destroy()
	if err := cmd.Begin(); err != nil {
		return err
	}
	cmd.CopyBufferToTexture(staging, tex, bytesPerRow)
	if err := cmd.End(); err != nil {
		return err
	}

	fence, err := c.device.NewFence(false)
	if err != nil {
		return fmt.Errorf("render: create upload fence: %w", err)
	}
	defer fence.Destroy()
	if err := c.transfer.Submit([]driver.SubmitInfo{{CommandBuffers: []driver.CommandBuffer{cmd}}}, fence); err != nil {
		return fmt.Errorf("render: submit texture upload: %w", err)
	}
	ok, err := fence.Wait(c.config.UploadTimeout)
	if err != nil {
		return fmt.Errorf("render: wait for texture upload: %w", err)
	}
	if !ok {
		return fmt.Errorf("render: texture upload for %s: %w", tex.ID(), driver.ErrTimeout)
	}
	return nil
}
