// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"windows":       "windows",
	"width":         "width",
	"height":        "height",
	"scale":         "scale",
	"frames":        "frames",
	"tick-interval": "tick_interval",
	"workers":       "workers",
	"wait-timeout":  "wait_timeout",
	"backend":       "backend",
	"wait-strategy": "wait_strategy",
	"pool-size":     "pool_size",
	"clear-color":   "clear_color",
	"log-level":     "log_level",
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "framedemo",
		Short:         "Render animated layer trees into several headless windows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	load := func(cmd *cobra.Command) (*viper.Viper, Config, error) {
		v, err := newViper(cfgFile)
		if err != nil {
			return nil, Config{}, err
		}
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return nil, Config{}, err
		}
		cfg, err := loadConfig(v)
		return v, cfg, err
	}

	root.AddCommand(newRunCmd(load), newConfigCmd(load), newProbeCmd())
	return root
}

// bindFlags binds every known flag of fs to its configuration key, so
// flags set on the command line override the file and environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

type loader func(cmd *cobra.Command) (*viper.Viper, Config, error)

func newConfigCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := load(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	addRenderFlags(cmd.Flags())
	return cmd
}

func addRenderFlags(fs *pflag.FlagSet) {
	fs.Int("windows", 2, "number of windows")
	fs.Int("width", 320, "window width in points")
	fs.Int("height", 200, "window height in points")
	fs.Float64("scale", 2, "display scale factor")
	fs.Int("frames", 120, "passes to render before exiting (0 runs until interrupted)")
	fs.Duration("tick-interval", 0, "pause between passes")
	fs.Int("workers", 0, "frame recording goroutines (0 uses GOMAXPROCS)")
	fs.Duration("wait-timeout", 0, "bound on waiting for each pass")
	fs.String("backend", "headless", "device backend ("+fmt.Sprint(devices.Available())+")")
	fs.String("wait-strategy", waitDevice, "run loop wait: device or poll")
	fs.Int("pool-size", 64, "descriptor sets per pool")
	fs.String("clear-color", "#202028", "window clear color")
}

// newLogger returns a text logger at level writing to w.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
