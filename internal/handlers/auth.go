// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"guidepress/internal/middleware"
	"guidepress/internal/models"
	"guidepress/internal/session"
)

// UserUpserter records editors as they sign in. store.UserStore satisfies it.
type UserUpserter interface {
	Upsert(ctx context.Context, id, username, avatar string) (*models.User, error)
}

// Auth groups the session endpoints. Production sign-in goes through the
// external OAuth flow; DevLogin stands in for it locally.
type Auth struct {
	sessions *session.Store
	users    UserUpserter
}

// NewAuth creates the auth handler group. users may be nil when the server
// runs without a database, in which case every dev login is an editor.
func NewAuth(sessions *session.Store, users UserUpserter) *Auth {
	return &Auth{sessions: sessions, users: users}
}

type devLoginBody struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// DevLogin creates a session for an arbitrary identity. Only routed in
// development.
func (a *Auth) DevLogin(w http.ResponseWriter, r *http.Request) {
	var body devLoginBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if msg := validateIdentity(body.UserID, body.Username, body.Avatar); msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_input", msg)
		return
	}

	role := string(models.RoleEditor)
	if a.users != nil {
		user, err := a.users.Upsert(r.Context(), body.UserID, body.Username, body.Avatar)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		role = string(user.Role)
	}

	data := &session.Data{
		UserID:   body.UserID,
		Username: body.Username,
		Avatar:   body.Avatar,
		Role:     role,
	}
	if _, err := a.sessions.Create(r.Context(), w, data); err != nil {
		slog.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error.")
		return
	}

	slog.Info("dev login", "user_id", data.UserID, "username", data.Username, "role", data.Role)
	writeJSON(w, http.StatusOK, map[string]any{"user": data})
}

// Me returns the signed-in editor.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": middleware.SessionFromCtx(r.Context())})
}

// Logout destroys the session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Error("session destroy failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
