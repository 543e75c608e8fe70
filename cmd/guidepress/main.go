// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the GuidePress editor API. The root
// command runs the server; "migrate" manages the database schema.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"guidepress/internal/config"
)

// cfg is loaded once before any command runs.
var cfg *config.Config

var rootCommand = &cobra.Command{
	Use:           "guidepress",
	Short:         "Collaborative editing API for guides and news",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded := config.LoadDotEnv(".")

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		slog.SetDefault(newLogger(cfg))
		slog.Info("configuration loaded",
			"env", cfg.Env,
			"addr", cfg.Addr(),
			"lock_backend", cfg.LockBackend,
			"dotenv", loaded,
		)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand.RunE(cmd, args)
	},
}

func init() {
	rootCommand.AddCommand(serveCommand, migrateCommand)
}

// newLogger outputs text with debug logs in development and JSON otherwise.
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
