// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/noop"
	"github.com/spf13/cobra"

	"github.com/gogpu/compositor/driver/halgpu"
)

var backendNames = map[string]gputypes.Backend{
	"noop":   gputypes.BackendEmpty,
	"vulkan": gputypes.BackendVulkan,
	"metal":  gputypes.BackendMetal,
	"dx12":   gputypes.BackendDX12,
	"gl":     gputypes.BackendGL,
}

func newProbeCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Open a HAL backend and check its timeline fences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return probe(cmd, backend)
		},
	}
	cmd.Flags().StringVar(&backend, "hal", "noop", "HAL backend (noop, vulkan, metal, dx12, gl)")
	return cmd
}

func probe(cmd *cobra.Command, name string) error {
	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen).SprintFunc()
	label := color.New(color.FgCyan, color.Bold).SprintFunc()

	variant, known := backendNames[strings.ToLower(name)]
	if !known {
		return fmt.Errorf("unknown HAL backend %q", name)
	}
	registered := hal.AvailableBackends()
	slices.Sort(registered)
	names := make([]string, len(registered))
	for i, b := range registered {
		names[i] = b.String()
	}
	fmt.Fprintf(out, "%s %s\n", label("registered:"), strings.Join(names, ", "))

	backend, found := hal.GetBackend(variant)
	if !found {
		return fmt.Errorf("HAL backend %s is not compiled in", variant)
	}
	dev, err := halgpu.Open(backend)
	if err != nil {
		return err
	}
	defer dev.Close()
	fmt.Fprintf(out, "%s %s (%v)\n", label("adapter:   "), dev.Adapter.Name, dev.Adapter.Type)
	fmt.Fprintf(out, "%s %s\n", label("format:    "), dev.Format)

	tl, err := dev.NewTimeline()
	if err != nil {
		return err
	}
	defer tl.Destroy()
	if err := tl.Signal(1); err != nil {
		return fmt.Errorf("timeline signal: %w", err)
	}
	reached, err := tl.Wait(1, time.Second)
	if err != nil {
		return fmt.Errorf("timeline wait: %w", err)
	}
	if !reached {
		return errors.New("timeline did not reach 1")
	}
	fmt.Fprintf(out, "%s %s\n", label("timeline:  "), ok("ok"))
	return nil
}
