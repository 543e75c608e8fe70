// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"guidepress/internal/cache"
	"guidepress/internal/config"
	"guidepress/internal/database"
	"guidepress/internal/editor"
	"guidepress/internal/handlers"
	"guidepress/internal/lock"
	"guidepress/internal/middleware"
	"guidepress/internal/router"
	"guidepress/internal/session"
	"guidepress/internal/store"
	"guidepress/internal/versioning"
)

const (
	// connectAttempts bounds the startup wait for PostgreSQL.
	connectAttempts = 10

	// lockRequestsPerMinute allows an editor several open tabs polling and
	// heartbeating at the default intervals.
	lockRequestsPerMinute = 120

	shutdownTimeout = 30 * time.Second
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Run the editor API server and the lock sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

// backends are the storage implementations chosen by LOCK_BACKEND.
type backends struct {
	locks    lock.Store
	clock    *lock.Clock
	repo     versioning.Repository
	sessions *session.Store
	users    handlers.UserUpserter
	opts     []editor.Option
	health   map[string]handlers.Pinger
	closers  []func() error
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// openBackends connects to PostgreSQL and Valkey, unless the memory backend
// was requested, in which case nothing outlives the process.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if cfg.LockBackend == config.LockBackendMemory {
		slog.Warn("running with in-memory storage, all data is lost on restart")
		return &backends{
			locks:    lock.NewMemoryStore(),
			repo:     versioning.NewMemoryRepository(),
			sessions: session.NewMemoryStore(cfg.SecureCookies),
		}, nil
	}

	b := &backends{}

	db, err := database.ConnectWithRetry(ctx, cfg.DSN(), connectAttempts)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	b.closers = append(b.closers, db.Close)

	if err := database.Migrate(db); err != nil {
		b.close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			b.close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	vk, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("connect valkey: %w", err)
	}
	b.closers = append(b.closers, vk.Close)

	contentStore := store.NewContentStore(db)
	b.repo = contentStore
	b.users = store.NewUserStore(db)
	b.sessions = session.NewStore(vk, cfg.SecureCookies)
	b.opts = []editor.Option{
		editor.WithItemCache(cache.NewItemCache(vk, cache.DefaultItemTTL)),
		editor.WithViewCounter(contentStore),
	}
	b.locks = newLockStore(cfg.LockBackend, db, vk)
	b.clock = newLockClock(cfg.LockBackend, db, vk)
	b.health = map[string]handlers.Pinger{
		"postgres": db,
		"valkey":   handlers.PingFunc(func(ctx context.Context) error { return vk.Ping(ctx).Err() }),
	}
	return b, nil
}

func newLockStore(backend string, db *sql.DB, vk *redis.Client) lock.Store {
	if backend == config.LockBackendValkey {
		return cache.NewLockStore(vk, 0)
	}
	return store.NewLockStore(db)
}

// newLockClock follows the clock of the server holding the lock table.
func newLockClock(backend string, db *sql.DB, vk *redis.Client) *lock.Clock {
	if backend == config.LockBackendValkey {
		return lock.NewClock(cache.ServerTime(vk))
	}
	return lock.NewClock(database.ServerTime(db))
}

// serve runs the HTTP server and the lock sweeper until ctx is cancelled or
// either of them fails.
func serve(ctx context.Context, cfg *config.Config) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	lockOpts := []lock.Option{lock.WithLease(cfg.LockLease)}
	if b.clock != nil {
		if err := b.clock.Sync(ctx); err != nil {
			return err
		}
		slog.Info("lock clock synced", "backend", cfg.LockBackend, "offset", b.clock.Offset().String())
		lockOpts = append(lockOpts, lock.WithClock(b.clock.Now))
	}
	locks := lock.NewManager(b.locks, lockOpts...)
	co := editor.New(locks, versioning.NewEngine(b.repo), b.opts...)

	limiter := middleware.NewRateLimiter(lockRequestsPerMinute, time.Minute)
	defer limiter.Stop()

	r := router.New(router.Deps{
		Sessions: b.sessions,
		Auth:     handlers.NewAuth(b.sessions, b.users),
		Locks:    handlers.NewLocks(co),
		Content:  handlers.NewContent(co),
		EditorConfig: handlers.EditorConfig{
			HeartbeatInterval: cfg.HeartbeatInterval,
			LockPollInterval:  cfg.LockPollInterval,
			LockLease:         cfg.LockLease,
		},
		Health:        handlers.NewHealth(b.health),
		LockLimiter:   limiter,
		SecureCookies: cfg.SecureCookies,
		DevLogin:      cfg.IsDev(),
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return locks.RunSweeper(gctx, cfg.LockSweepInterval)
	})

	if b.clock != nil {
		g.Go(func() error {
			return b.clock.Run(gctx, lock.DefaultClockSyncInterval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		// Give active requests time to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}
