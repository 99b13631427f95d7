// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/compositor/driver"
)

// CommandPool allocates CommandBuffers for one queue.
type CommandPool struct {
	object
	device *Device
	queue  *Queue
}

var _ driver.CommandPool = (*CommandPool)(nil)

// Queue implements driver.CommandPool.
func (p *CommandPool) Queue() driver.Queue { return p.queue }

// NewCommandBuffer implements driver.CommandPool.
func (p *CommandPool) NewCommandBuffer() (driver.CommandBuffer, error) {
	return &CommandBuffer{pool: p}, nil
}

// CommandKind identifies a recorded command.
type CommandKind uint8

// Recorded command kinds.
const (
	CmdBeginRenderPass CommandKind = iota
	CmdEndRenderPass
	CmdSetViewport
	CmdSetScissor
	CmdBindPipeline
	CmdBindDescriptorSets
	CmdBindVertexBuffer
	CmdDraw
	CmdCopyBuffer
	CmdCopyBufferToTexture
)

var commandNames = [...]string{
	CmdBeginRenderPass:     "BeginRenderPass",
	CmdEndRenderPass:       "EndRenderPass",
	CmdSetViewport:         "SetViewport",
	CmdSetScissor:          "SetScissor",
	CmdBindPipeline:        "BindPipeline",
	CmdBindDescriptorSets:  "BindDescriptorSets",
	CmdBindVertexBuffer:    "BindVertexBuffer",
	CmdDraw:                "Draw",
	CmdCopyBuffer:          "CopyBuffer",
	CmdCopyBufferToTexture: "CopyBufferToTexture",
}

// String returns the command name.
func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return fmt.Sprintf("CommandKind(%d)", k)
}

// Command is one recorded command.
type Command struct {
	Kind CommandKind

	Pipeline    driver.Pipeline
	Framebuffer driver.Framebuffer
	Sets        []driver.DescriptorSet
	Buffer      driver.Buffer
	Offset      uint64

	// Src and Dst are set for copies.
	Src     driver.Buffer
	Dst     driver.Buffer
	Texture driver.Texture
	Regions []driver.BufferCopy

	VertexCount   int
	InstanceCount int
	FirstInstance int
}

// CommandBuffer records commands in memory.
type CommandBuffer struct {
	pool *CommandPool

	mu        sync.Mutex
	recording bool
	ended     bool
	commands  []Command
	destroyed bool
}

var _ driver.CommandBuffer = (*CommandBuffer)(nil)

// Begin implements driver.CommandBuffer.
func (cb *CommandBuffer) Begin() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.destroyed {
		return driver.ErrDestroyed
	}
	if cb.recording {
		return errors.New("headless: command buffer already recording")
	}
	cb.recording = true
	cb.ended = false
	cb.commands = cb.commands[:0]
	return nil
}

// End implements driver.CommandBuffer.
func (cb *CommandBuffer) End() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.recording {
		return errors.New("headless: command buffer not recording")
	}
	cb.recording = false
	cb.ended = true
	return nil
}

// Reset implements driver.CommandBuffer.
func (cb *CommandBuffer) Reset() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.recording = false
	cb.ended = false
	cb.commands = nil
	return nil
}

// Destroy implements driver.Destroyer.
func (cb *CommandBuffer) Destroy() {
	cb.mu.Lock()
	cb.destroyed = true
	cb.mu.Unlock()
}

// Commands returns a copy of the recorded commands.
func (cb *CommandBuffer) Commands() []Command {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return append([]Command(nil), cb.commands...)
}

// Count returns how many commands of kind were recorded.
func (cb *CommandBuffer) Count(kind CommandKind) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	n := 0
	for _, c := range cb.commands {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func (cb *CommandBuffer) record(c Command) {
	cb.mu.Lock()
	if cb.recording {
		cb.commands = append(cb.commands, c)
	}
	cb.mu.Unlock()
}

// BeginRenderPass implements driver.CommandBuffer.
func (cb *CommandBuffer) BeginRenderPass(_ driver.RenderPass, fb driver.Framebuffer, _ driver.Rect2D, _ []driver.ClearValue) {
	cb.record(Command{Kind: CmdBeginRenderPass, Framebuffer: fb})
}

// EndRenderPass implements driver.CommandBuffer.
func (cb *CommandBuffer) EndRenderPass() { cb.record(Command{Kind: CmdEndRenderPass}) }

// SetViewport implements driver.CommandBuffer.
func (cb *CommandBuffer) SetViewport(driver.Viewport) { cb.record(Command{Kind: CmdSetViewport}) }

// SetScissor implements driver.CommandBuffer.
func (cb *CommandBuffer) SetScissor(driver.Rect2D) { cb.record(Command{Kind: CmdSetScissor}) }

// BindPipeline implements driver.CommandBuffer.
func (cb *CommandBuffer) BindPipeline(p driver.Pipeline) {
	cb.record(Command{Kind: CmdBindPipeline, Pipeline: p})
}

// BindDescriptorSets implements driver.CommandBuffer.
func (cb *CommandBuffer) BindDescriptorSets(p driver.Pipeline, _ int, sets []driver.DescriptorSet) {
	cb.record(Command{Kind: CmdBindDescriptorSets, Pipeline: p, Sets: append([]driver.DescriptorSet(nil), sets...)})
}

// BindVertexBuffer implements driver.CommandBuffer.
func (cb *CommandBuffer) BindVertexBuffer(_ int, buf driver.Buffer, offset uint64) {
	cb.record(Command{Kind: CmdBindVertexBuffer, Buffer: buf, Offset: offset})
}

// Draw implements driver.CommandBuffer.
func (cb *CommandBuffer) Draw(vertexCount, instanceCount, _, firstInstance int) {
	cb.record(Command{Kind: CmdDraw, VertexCount: vertexCount, InstanceCount: instanceCount, FirstInstance: firstInstance})
}

// CopyBuffer implements driver.CommandBuffer.
func (cb *CommandBuffer) CopyBuffer(src, dst driver.Buffer, regions []driver.BufferCopy) {
	cb.record(Command{Kind: CmdCopyBuffer, Src: src, Dst: dst, Regions: append([]driver.BufferCopy(nil), regions...)})
}

// CopyBufferToTexture implements driver.CommandBuffer.
func (cb *CommandBuffer) CopyBufferToTexture(src driver.Buffer, dst driver.Texture, _ uint32) {
	cb.record(Command{Kind: CmdCopyBufferToTexture, Src: src, Texture: dst})
}

// execute performs the copies recorded in cb. Called by the owning queue.
func (cb *CommandBuffer) execute() error {
	for _, c := range cb.Commands() {
		switch c.Kind {
		case CmdCopyBuffer:
			src, ok1 := c.Src.(*Buffer)
			dst, ok2 := c.Dst.(*Buffer)
			if !ok1 || !ok2 {
				return errors.New("headless: copy between foreign buffers")
			}
			data := src.Bytes()
			for _, r := range c.Regions {
				if r.SrcOffset+r.Size > uint64(len(data)) {
					return fmt.Errorf("headless: copy source range %d+%d out of bounds", r.SrcOffset, r.Size)
				}
				if err := dst.write(r.DstOffset, data[r.SrcOffset:r.SrcOffset+r.Size]); err != nil {
					return err
				}
			}
		case CmdCopyBufferToTexture:
			src, ok1 := c.Src.(*Buffer)
			dst, ok2 := c.Texture.(*Texture)
			if !ok1 || !ok2 {
				return errors.New("headless: copy between foreign objects")
			}
			dst.upload(src.Bytes())
		}
	}
	return nil
}
