// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"guidepress/internal/cache"
	"guidepress/internal/config"
	"guidepress/internal/database"
)

var (
	seedAfterMigrate bool
	keepItemCache    bool
)

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(db *sql.DB) error {
			if err := database.Migrate(db); err != nil {
				return err
			}
			if !keepItemCache {
				clearItemCache(cmd.Context(), cfg)
			}
			if seedAfterMigrate {
				return database.Seed(db)
			}
			return nil
		})
	},
}

var migrateStatusCommand = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations have been applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, database.MigrationStatus)
	},
}

func init() {
	migrateCommand.Flags().BoolVar(&seedAfterMigrate, "seed", false, "insert development users when the users table is empty")
	migrateCommand.Flags().BoolVar(&keepItemCache, "keep-cache", false, "leave cached public items in Valkey untouched")
	migrateCommand.AddCommand(migrateStatusCommand)
}

func withDB(cmd *cobra.Command, fn func(db *sql.DB) error) error {
	db, err := database.ConnectWithRetry(cmd.Context(), cfg.DSN(), connectAttempts)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := fn(db); err != nil {
		return err
	}
	slog.Info("migrate done", "command", cmd.Name())
	return nil
}

// clearItemCache drops every cached public item so none encoded against the
// previous schema is served. A Valkey outage is logged and tolerated; stale
// entries then expire with the cache TTL.
func clearItemCache(ctx context.Context, cfg *config.Config) {
	if cfg.LockBackend == config.LockBackendMemory {
		return
	}
	vk, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Warn("item cache not cleared", "error", err)
		return
	}
	defer vk.Close()

	n := cache.NewItemCache(vk, 0).InvalidateAll(ctx)
	slog.Info("item cache cleared after migrate", "deleted", n)
}
