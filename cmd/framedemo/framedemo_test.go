// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/compositor/internal/shaders"
	"github.com/gogpu/compositor/layer"
)

func TestMain(m *testing.M) {
	for _, p := range shaders.Programs {
		if _, err := shaders.SPIRV(p); err != nil {
			shaders.Preload(p, []uint32{0x07230203, 0x00010000, 0, 1, 0})
		}
	}
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigDefaults(t *testing.T) {
	v, err := newViper("")
	if err != nil {
		t.Fatalf("newViper: %v", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Windows != 2 || cfg.Width != 320 || cfg.Height != 200 {
		t.Errorf("windows = %d at %dx%d, want 2 at 320x200", cfg.Windows, cfg.Width, cfg.Height)
	}
	if cfg.TickInterval != 16*time.Millisecond || cfg.WaitTimeout != 5*time.Second {
		t.Errorf("intervals = %s, %s", cfg.TickInterval, cfg.WaitTimeout)
	}
	if cfg.Backend != "headless" || cfg.WaitStrategy != waitDevice {
		t.Errorf("backend = %q, wait = %q", cfg.Backend, cfg.WaitStrategy)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Windows: 1, Width: 10, Height: 10, Scale: 1, TickInterval: time.Millisecond,
			PoolSize: 1, WaitStrategy: waitDevice, LogLevel: "info",
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no windows", func(c *Config) { c.Windows = 0 }, "windows"},
		{"zero width", func(c *Config) { c.Width = 0 }, "window size"},
		{"negative scale", func(c *Config) { c.Scale = -1 }, "scale"},
		{"negative frames", func(c *Config) { c.Frames = -1 }, "frames"},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, "tick_interval"},
		{"zero pool", func(c *Config) { c.PoolSize = 0 }, "pool_size"},
		{"bad wait", func(c *Config) { c.WaitStrategy = "spin" }, "wait_strategy"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"poll wait", func(c *Config) { c.WaitStrategy = waitPoll }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.validate()
			switch {
			case tt.want == "" && err != nil:
				t.Errorf("validate: %v", err)
			case tt.want != "" && (err == nil || !strings.Contains(err.Error(), tt.want)):
				t.Errorf("validate = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestConfigCommandLayers(t *testing.T) {
	file := filepath.Join(t.TempDir(), "framedemo.yaml")
	data := "windows: 4\ntick_interval: 5ms\nclear_color: \"#000000\"\n"
	if err := os.WriteFile(file, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FRAMEDEMO_WIDTH", "640")

	out, err := execute(t, "config", "--config", file, "--height", "480")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{
		"windows: 4",
		"tick_interval: 5ms",
		"width: 640",
		"height: 480",
		"#000000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommandRejectsInvalid(t *testing.T) {
	if _, err := execute(t, "config", "--windows", "0"); err == nil {
		t.Error("expected an error for zero windows")
	}
	if _, err := execute(t, "config", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"staged", nil},
		{"unified", []string{"--backend", "headless-unified"}},
		{"poll", []string{"--wait-strategy", "poll"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{
				"run", "--frames", "3", "--tick-interval", "1ms",
				"--windows", "2", "--width", "64", "--height", "48", "--scale", "1",
			}, tt.args...)
			out, err := execute(t, args...)
			if err != nil {
				t.Fatalf("run: %v\n%s", err, out)
			}
			for _, want := range []string{"windows:  2", "passes:   3", "submits"} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestRunUnknownBackend(t *testing.T) {
	_, err := execute(t, "run", "--backend", "metal", "--frames", "1")
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("run = %v, want unknown backend", err)
	}
}

func TestDeviceRegistry(t *testing.T) {
	r := newDeviceRegistry()
	got := r.Available()
	slices.Sort(got)
	if !slices.Equal(got, []string{"headless", "headless-unified"}) {
		t.Errorf("Available = %v", got)
	}
	if r.Get("headless-unified") == nil {
		t.Error("headless-unified not registered")
	}
}

func TestProbeCommand(t *testing.T) {
	out, err := execute(t, "probe")
	if err != nil {
		t.Fatalf("probe: %v\n%s", err, out)
	}
	for _, want := range []string{"registered:", "Empty", "adapter:", "timeline:", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := execute(t, "probe", "--hal", "bogus"); err == nil {
		t.Error("expected an error for an unknown HAL backend")
	}
}

func TestLabelDrawsText(t *testing.T) {
	l := layer.New()
	l.Bounds = layer.R(0, 0, 120, 24)
	l.SetBackingStore(layer.NewBackingStore(1, 1))
	text := &label{color: color.White}
	text.SetText("hello")

	text.DisplayLayer(l, 2)
	if w, h := l.BackingStore().Size(); w != 240 || h != 48 {
		t.Fatalf("backing store = %dx%d, want 240x48", w, h)
	}
	front := l.BackingStore().Front()
	painted := 0
	for i := 3; i < len(front.Pix); i += 4 {
		if front.Pix[i] != 0 {
			painted++
		}
	}
	if painted == 0 {
		t.Error("label drew nothing")
	}

	first := text.face
	text.DisplayLayer(l, 2)
	if text.face != first {
		t.Error("face should be reused at the same scale")
	}
	text.DisplayLayer(l, 1)
	if text.face == first {
		t.Error("face should be recreated for a new scale")
	}
}

func TestSceneAnimate(t *testing.T) {
	s := newScene(1, 320, 200)
	if s.root.Name() != "window-1" || len(s.root.Sublayers()) != 2 {
		t.Fatalf("root = %q with %d sublayers", s.root.Name(), len(s.root.Sublayers()))
	}

	s.animate(0)
	if s.badge.Position.X != 30 {
		t.Errorf("pass 0 badge x = %g, want 30", s.badge.Position.X)
	}
	if !s.label.NeedsDisplay() {
		t.Error("pass 0 should request a label redraw")
	}

	s.animate(60)
	want := 30 + s.panel.Bounds.Width() - 60
	if diff := s.badge.Position.X - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("pass 60 badge x = %g, want %g", s.badge.Position.X, want)
	}

	s.animate(30)
	if got := s.text.Text(); got != "window 1  pass 30" {
		t.Errorf("label text = %q", got)
	}
}
