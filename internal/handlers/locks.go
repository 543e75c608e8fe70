// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guidepress/internal/editor"
	"guidepress/internal/models"
)

// Locks serves the edit-lock endpoints polled by the editor.
type Locks struct {
	co *editor.Coordinator
}

// NewLocks creates the lock handler group.
func NewLocks(co *editor.Coordinator) *Locks {
	return &Locks{co: co}
}

// lockResponse is the body of acquire and heartbeat calls. A failed acquire
// reports the current holder in LockedBy.
type lockResponse struct {
	Success  bool         `json:"success"`
	Lock     *models.Lock `json:"lock,omitempty"`
	LockedBy *models.Lock `json:"locked_by,omitempty"`
}

// Acquire claims the lock. A conflict is not an error: the response says
// who is editing so the UI can open read-only.
func (h *Locks) Acquire(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	l, err := h.co.AcquireLock(r.Context(), ct, chi.URLParam(r, "id"), currentEditor(r))
	var conflict *editor.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusOK, lockResponse{Success: false, LockedBy: &conflict.Holder})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lockResponse{Success: true, Lock: &l})
}

// Heartbeat extends the caller's lease, or answers 409 lock_lost.
func (h *Locks) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	l, err := h.co.Heartbeat(r.Context(), ct, chi.URLParam(r, "id"), currentEditor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lockResponse{Success: true, Lock: &l})
}

// Release drops the caller's lock. It always succeeds for a valid type,
// and also accepts the form-encoded beacon sent when the editor tab closes.
func (h *Locks) Release(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.co.ReleaseLock(r.Context(), ct, chi.URLParam(r, "id"), currentEditor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// List returns every live lock so listings can badge items being edited.
func (h *Locks) List(w http.ResponseWriter, r *http.Request) {
	locks, err := h.co.ListLocks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if locks == nil {
		locks = []models.Lock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"locks": locks})
}
