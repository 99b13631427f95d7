// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/internal/parallel"
	"github.com/gogpu/compositor/present"
)

type participant struct {
	renderer *present.SwapchainRenderer
	steps    present.RecordSteps
	frame    *present.RecordedFrame
}

// Tick runs one scheduling pass. Windows that lost their surface are
// retried on a later tick and do not make Tick fail. Any other error halts
// the scheduler and is returned; later calls return ErrHalted.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.pass.Lock()
	defer s.pass.Unlock()

	if err := s.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrHalted, err)
	}

	eligible := s.eligible()
	if len(eligible) == 0 {
		return nil
	}

	frames, err := s.record(ctx, eligible)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return nil
	}
	return s.submit(ctx, frames)
}

// eligible requests a frame from every window that can take one.
func (s *Scheduler) eligible() []*participant {
	s.mu.Lock()
	renderers := make([]*present.SwapchainRenderer, 0, len(s.windows))
	for _, n := range sortedKeys(s.windows) {
		renderers = append(renderers, s.windows[n])
	}
	s.mu.Unlock()

	var out []*participant
	for _, r := range renderers {
		w := r.Window()
		if w == nil || w.Closed() || !w.Mapped() || w.PendingResize() {
			continue
		}
		if !r.State().Schedulable() {
			continue
		}
		steps, ok := r.Request()
		if !ok {
			continue
		}
		out = append(out, &participant{renderer: r, steps: steps})
	}
	return out
}

// record fans frame recording out to the pool and collects the frames.
func (s *Scheduler) record(ctx context.Context, eligible []*participant) ([]*participant, error) {
	tasks := make([]func(context.Context) (*present.RecordedFrame, error), len(eligible))
	for i, p := range eligible {
		tasks[i] = func(ctx context.Context) (*present.RecordedFrame, error) {
			return p.renderer.RecordFrame(ctx, p.steps)
		}
	}
	results := parallel.Map(ctx, s.pool, tasks)

	var (
		frames []*participant
		fatal  error
	)
	for i, res := range results {
		p := eligible[i]
		switch {
		case res.Err == nil && res.Value == nil:
			// The window went away during the frame.
			_ = p.renderer.Reset(present.StateIdle)
		case res.Err == nil:
			p.frame = res.Value
			frames = append(frames, p)
		case driver.IsSurfaceLost(res.Err):
			s.logger.Warn("scheduler: window surface lost, retrying next tick",
				"window", windowNumber(p), "err", res.Err)
			_ = p.renderer.Reset(present.StateSwapchainFailed)
		case errors.Is(res.Err, context.Canceled), errors.Is(res.Err, context.DeadlineExceeded):
			_ = p.renderer.Reset(present.StateIdle)
		default:
			if fatal == nil {
				fatal = fmt.Errorf("scheduler: record window %d: %w", windowNumber(p), res.Err)
			}
		}
	}
	if fatal != nil {
		return nil, s.halt(fatal)
	}
	if err := ctx.Err(); err != nil {
		// These frames hold acquired images that will not be presented.
		// The rebuild on their next record releases them.
		s.reset(frames, present.StateSwapchainFailed)
		return nil, err
	}
	return frames, nil
}

// submit issues the batched submission and presents, then waits for the
// pass to complete and resets the participants.
func (s *Scheduler) submit(ctx context.Context, frames []*participant) error {
	s.mu.Lock()
	value := s.submitted + 1
	s.mu.Unlock()
	logger := s.logger.With("pass", uuid.NewString())

	info := driver.SubmitInfo{}
	for _, p := range frames {
		f := p.frame
		info.CommandBuffers = append(info.CommandBuffers, f.CommandBuffer)
		info.Waits = append(info.Waits, driver.SemaphoreWait{
			Semaphore: f.ImageReady,
			Stages:    driver.StageColorAttachmentOutput,
		})
		if f.UploadWait != nil {
			info.Waits = append(info.Waits, *f.UploadWait)
		}
		info.Signals = append(info.Signals, driver.SemaphoreSignal{Semaphore: f.RenderDone})
	}
	info.Signals = append(info.Signals, driver.SemaphoreSignal{Semaphore: s.timeline, Value: value})

	if err := s.stack.GraphicsQueue().Submit([]driver.SubmitInfo{info}, nil); err != nil {
		if driver.IsSurfaceLost(err) {
			logger.Warn("scheduler: surface lost at submit", "windows", len(frames), "err", err)
			s.reset(frames, present.StateSwapchainFailed)
			return nil
		}
		return s.halt(fmt.Errorf("scheduler: submit: %w", err))
	}
	s.mu.Lock()
	s.submitted = value
	s.mu.Unlock()

	lost, err := s.present(logger, frames)
	if err != nil {
		return s.halt(err)
	}

	// A submitted pass is always awaited; cancellation only stops passes
	// that have not been submitted yet.
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.waitTimeout)
	defer cancel()
	if err := s.stack.RunLoop().Wait(waitCtx, s.timeline, value); err != nil {
		return s.halt(fmt.Errorf("scheduler: wait for pass %d: %w", value, err))
	}

	if lost {
		s.reset(frames, present.StateSwapchainFailed)
	} else {
		s.reset(frames, present.StateIdle)
	}
	logger.Debug("scheduler: pass complete", "value", value, "windows", len(frames), "surface_lost", lost)
	return nil
}

// present calls Present once per presentation queue, in the order the
// queues first appear. It reports whether a surface was lost.
func (s *Scheduler) present(logger *slog.Logger, frames []*participant) (lost bool, err error) {
	var (
		queues []driver.Queue
		infos  = make(map[driver.Queue]*driver.PresentInfo)
	)
	for _, p := range frames {
		f := p.frame
		info, ok := infos[f.PresentQueue]
		if !ok {
			info = &driver.PresentInfo{}
			infos[f.PresentQueue] = info
			queues = append(queues, f.PresentQueue)
		}
		info.Waits = append(info.Waits, f.RenderDone)
		info.Swapchains = append(info.Swapchains, f.Swapchain)
		info.ImageIndices = append(info.ImageIndices, f.ImageIndex)
	}

	for _, q := range queues {
		perr := q.Present(infos[q])
		switch {
		case perr == nil:
		case driver.IsSurfaceLost(perr):
			logger.Warn("scheduler: surface lost at present", "family", q.Family(), "err", perr)
			lost = true
		default:
			return lost, fmt.Errorf("scheduler: present on family %d: %w", q.Family(), perr)
		}
	}
	return lost, nil
}

func (s *Scheduler) reset(frames []*participant, to present.State) {
	for _, p := range frames {
		_ = p.renderer.Reset(to)
	}
}

func windowNumber(p *participant) int {
	if w := p.renderer.Window(); w != nil {
		return w.Number()
	}
	return -1
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
