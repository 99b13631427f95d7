// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command framedemo drives the compositor on the headless driver: several
// windows with animated layers and text labels, rendered by one frame
// scheduler.
//
// Usage:
//
//	framedemo run --windows 3 --frames 120
//	framedemo config --config framedemo.yaml
//	framedemo probe
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("framedemo:"), err)
		os.Exit(1)
	}
}
