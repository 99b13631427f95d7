// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/gogpu/gpucontext"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/halgpu"
	"github.com/gogpu/compositor/driver/headless"
	"github.com/gogpu/compositor/layer"
	"github.com/gogpu/compositor/renderstack"
)

// devices lists the device backends the demo can render on.
var devices = newDeviceRegistry()

func newDeviceRegistry() *gpucontext.Registry[driver.Device] {
	r := gpucontext.NewRegistry[driver.Device](gpucontext.WithPriority("headless", "headless-unified"))
	r.Register("headless", func() driver.Device {
		return headless.New(headless.WithName("headless (staged)"))
	})
	r.Register("headless-unified", func() driver.Device {
		return headless.New(headless.WithName("headless (unified)"), headless.WithUnifiedMemory(true))
	})
	return r
}

func newRunCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render the demo windows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			sum, err := run(ctx, v, cfg, cmd.ErrOrStderr())
			sum.print(cmd.OutOrStdout())
			return err
		},
	}
	addRenderFlags(cmd.Flags())
	return cmd
}

// summary reports what a run rendered.
type summary struct {
	Backend  string
	Stats    compositor.Stats
	Submits  int
	Presents int
	Elapsed  time.Duration
}

func (s summary) print(w io.Writer) {
	label := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %s\n", label("backend: "), s.Backend)
	fmt.Fprintf(w, "%s %d\n", label("windows: "), s.Stats.Windows)
	fmt.Fprintf(w, "%s %d in %s", label("passes:  "), s.Stats.Passes, s.Elapsed.Round(time.Millisecond))
	if secs := s.Elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, " (%.1f/s)", float64(s.Stats.Passes)/secs)
	}
	fmt.Fprintln(w)
	if s.Submits > 0 || s.Presents > 0 {
		fmt.Fprintf(w, "%s %d submits, %d presents\n", label("queue:   "), s.Submits, s.Presents)
	}
	if s.Stats.Failed > 0 {
		fmt.Fprintln(w, color.YellowString("%d windows waiting for a swapchain rebuild", s.Stats.Failed))
	}
}

// run renders cfg.Windows windows until cfg.Frames passes were submitted
// or ctx ends. Changes to tick_interval in the config file apply while
// running.
func run(ctx context.Context, v *viper.Viper, cfg Config, logOut io.Writer) (summary, error) {
	sum := summary{Backend: cfg.Backend}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return sum, err
	}
	logger := newLogger(logOut, level)
	compositor.SetLogger(logger)

	device := devices.Get(cfg.Backend)
	if device == nil {
		return sum, fmt.Errorf("unknown backend %q (available: %v)", cfg.Backend, devices.Available())
	}
	defer device.Destroy()

	bg := layer.Hex(cfg.ClearColor).Vec4()
	stackOpts := []renderstack.Option{
		renderstack.WithClearColor(driver.ClearValue{R: bg[0], G: bg[1], B: bg[2], A: bg[3]}),
		renderstack.WithDescriptorPoolSize(uint32(cfg.PoolSize)),
	}
	if cfg.WaitStrategy == waitPoll {
		stackOpts = append(stackOpts, renderstack.WithWaiter(halgpu.NewPoller()))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var scenes []*scene
	engine, err := compositor.New(device,
		compositor.WithTickInterval(cfg.TickInterval),
		compositor.WithWorkers(cfg.Workers),
		compositor.WithWaitTimeout(cfg.WaitTimeout),
		compositor.WithStackOptions(stackOpts...),
		compositor.WithTickHook(func(pass uint64) {
			if cfg.Frames > 0 && pass >= uint64(cfg.Frames) {
				cancel()
				return
			}
			for _, s := range scenes {
				s.animate(pass)
			}
		}))
	if err != nil {
		return sum, err
	}
	defer engine.Close()

	width, height := float64(cfg.Width), float64(cfg.Height)
	for i := range cfg.Windows {
		number := i + 1
		s := newScene(number, width, height)
		provider := gpucontext.NullWindowProvider{W: cfg.Width, H: cfg.Height, SF: cfg.Scale}
		surface := headless.NewSurface(
			uint32(math.Ceil(width*cfg.Scale)),
			uint32(math.Ceil(height*cfg.Scale)))
		if _, err := engine.AddWindow(number, provider, s.root, surface); err != nil {
			return sum, err
		}
		scenes = append(scenes, s)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return engine.Run(gctx)
	})
	g.Go(func() error {
		return watchConfig(gctx, v, engine, logger)
	})
	err = g.Wait()

	sum.Elapsed = time.Since(start)
	sum.Stats = engine.Stats()
	if hd, ok := device.(*headless.Device); ok {
		sum.Submits = len(hd.Journal().SubmitsOn(engine.Stack().GraphicsQueue().Family()))
		sum.Presents = len(hd.Journal().Presents())
	}
	return sum, err
}

// watchConfig applies tick_interval changes from the config file until
// ctx ends. It returns immediately when no config file is in use.
func watchConfig(ctx context.Context, v *viper.Viper, engine *compositor.Engine, logger *slog.Logger) error {
	if v == nil || v.ConfigFileUsed() == "" {
		return nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		d := v.GetDuration("tick_interval")
		if d <= 0 {
			logger.Warn("framedemo: ignoring invalid tick_interval", "value", v.GetString("tick_interval"))
			return
		}
		engine.SetTickInterval(d)
		logger.Info("framedemo: config reloaded", "file", e.Name, "tick_interval", d)
	})
	v.WatchConfig()
	<-ctx.Done()
	return nil
}
