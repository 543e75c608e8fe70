// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"guidepress/internal/editor"
	"guidepress/internal/lock"
	"guidepress/internal/middleware"
	"guidepress/internal/models"
	"guidepress/internal/versioning"
)

// maxBodyBytes caps JSON request bodies. Content bodies are limited to
// 500,000 characters, which is at most 2 MB of UTF-8.
const maxBodyBytes = 4 << 20

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeServiceError maps coordinator errors onto HTTP responses. Anything
// unrecognised is a storage failure and is logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *editor.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "lock_conflict",
			"message":   fmt.Sprintf("%s is currently editing this item.", conflict.Holder.Username),
			"locked_by": conflict.Holder,
		})
	case errors.Is(err, lock.ErrLockLost):
		writeError(w, http.StatusConflict, "lock_lost", "Your editing lock expired or was taken over. Re-acquire it before saving.")
	case errors.Is(err, editor.ErrLockNotHeld):
		writeError(w, http.StatusLocked, "lock_not_held", "You must hold the editing lock to change this item.")
	case errors.Is(err, versioning.ErrNoDraftToDiscard):
		writeError(w, http.StatusBadRequest, "no_draft_to_discard", "There are no draft changes to discard.")
	case errors.Is(err, versioning.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Content not found.")
	case errors.Is(err, versioning.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", inputMessage(err))
	case errors.Is(err, versioning.ErrSlugTaken):
		writeError(w, http.StatusConflict, "slug_taken", "Another item already uses this slug.")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error.")
	}
}

// inputMessage extracts the human-readable part of a validation error.
func inputMessage(err error) string {
	if _, msg, ok := strings.Cut(err.Error(), versioning.ErrInvalidInput.Error()+": "); ok {
		return msg
	}
	return "Invalid input."
}

// decodeJSON reads a size-limited JSON body into dst. An empty body leaves
// dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: Request body is not valid JSON.", versioning.ErrInvalidInput)
	}
	return nil
}

// contentType parses the {type} URL segment. Unknown types are reported
// as not found.
func contentType(r *http.Request) (models.ContentType, error) {
	ct, err := models.ParseContentType(chi.URLParam(r, "type"))
	if err != nil {
		return "", versioning.ErrNotFound
	}
	return ct, nil
}

// contentID parses the {id} URL segment of content routes.
func contentID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, versioning.ErrNotFound
	}
	return id, nil
}

// currentEditor returns the identity of the signed-in editor. Routes using
// it sit behind RequireAuth.
func currentEditor(r *http.Request) models.Editor {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		return models.Editor{}
	}
	return sess.Editor()
}
