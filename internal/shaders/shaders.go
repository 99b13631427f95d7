// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shaders holds the WGSL programs for the layer pipelines and
// compiles them to SPIR-V with naga.
package shaders

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
)

//go:embed wgsl/common.wgsl
var commonSource string

//go:embed wgsl/background.wgsl
var backgroundSource string

//go:embed wgsl/border.wgsl
var borderSource string

//go:embed wgsl/contents.wgsl
var contentsSource string

// Program identifies one layer pipeline.
type Program uint8

// Layer programs.
const (
	Background Program = iota
	Border
	Contents
)

// Programs lists every program in pipeline creation order.
var Programs = [...]Program{Background, Border, Contents}

// String returns the program name, used as the pipeline label.
func (p Program) String() string {
	switch p {
	case Background:
		return "background"
	case Border:
		return "border"
	case Contents:
		return "contents"
	}
	return fmt.Sprintf("Program(%d)", p)
}

// Entry points shared by every program.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// Source returns the complete WGSL module for p: the shared vertex stage
// followed by the program's fragment stage.
func Source(p Program) string {
	switch p {
	case Background:
		return commonSource + "\n" + backgroundSource
	case Border:
		return commonSource + "\n" + borderSource
	case Contents:
		return commonSource + "\n" + contentsSource
	}
	return ""
}

var (
	cacheMu sync.Mutex
	cache   = map[Program][]uint32{}
)

// SPIRV returns the compiled module for p. Results are cached for the
// lifetime of the process.
func SPIRV(p Program) ([]uint32, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if code, ok := cache[p]; ok {
		return code, nil
	}
	src := Source(p)
	if src == "" {
		return nil, fmt.Errorf("shaders: unknown program %d", p)
	}
	code, err := Compile(src)
	if err != nil {
		return nil, fmt.Errorf("shaders: %s: %w", p, err)
	}
	cache[p] = code
	return code, nil
}

// Preload stores precompiled code for p. Later SPIRV calls return it
// without invoking the compiler.
func Preload(p Program, code []uint32) {
	cacheMu.Lock()
	cache[p] = code
	cacheMu.Unlock()
}

// Compile compiles WGSL source to SPIR-V words.
func Compile(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("spir-v length %d is not a multiple of 4", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
