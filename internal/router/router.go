// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// GuidePress editor API. Public reads and the health check are open; every
// other /api route requires a session.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"guidepress/internal/handlers"
	"guidepress/internal/middleware"
	"guidepress/internal/session"
)

// Deps carries everything the routes are wired to.
type Deps struct {
	Sessions      *session.Store
	Auth          *handlers.Auth
	Locks         *handlers.Locks
	Content       *handlers.Content
	EditorConfig  handlers.EditorConfig
	Health        http.Handler
	LockLimiter   *middleware.RateLimiter // optional
	SecureCookies bool
	DevLogin      bool
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware. The session is loaded before Logger so request
	// logs carry the editor's user ID.
	r.Use(middleware.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(middleware.LoadSession(d.Sessions))
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	// Health check, no CSRF.
	r.Method(http.MethodGet, "/health", d.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRF(d.SecureCookies))

		r.Route("/auth", func(r chi.Router) {
			if d.DevLogin {
				r.Post("/dev-login", d.Auth.DevLogin)
			}
			r.Post("/logout", d.Auth.Logout)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/public/{type}/{slug}", d.Content.Public)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)

				r.Get("/me", d.Auth.Me)
				r.Get("/editor/config", d.EditorConfig.Config)

				// Edit locks, polled by every open editor.
				r.Route("/locks", func(r chi.Router) {
					if d.LockLimiter != nil {
						r.Use(d.LockLimiter.Middleware)
					}
					r.Get("/", d.Locks.List)
					r.Post("/{type}/{id}/acquire", d.Locks.Acquire)
					r.Post("/{type}/{id}/heartbeat", d.Locks.Heartbeat)
					r.Post("/{type}/{id}/release", d.Locks.Release)
				})

				// Guides and news
				r.Get("/{type}", d.Content.List)
				r.Post("/{type}/create", d.Content.Create)
				r.Get("/{type}/{id}", d.Content.Get)
				r.Put("/{type}/{id}", d.Content.Save)
				r.Delete("/{type}/{id}", d.Content.Delete)
			})
		})
	})

	return r
}
