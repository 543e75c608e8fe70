// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"guidepress/internal/editor"
	"guidepress/internal/models"
)

// Content serves the guide and news endpoints used by the editor, plus the
// public read of published items.
type Content struct {
	co *editor.Coordinator
}

// NewContent creates the content handler group.
func NewContent(co *editor.Coordinator) *Content {
	return &Content{co: co}
}

// saveBody is the PUT payload: the changed fields plus the target status.
type saveBody struct {
	models.ContentFields
	Status       models.ContentStatus `json:"status"`
	DiscardDraft bool                 `json:"discard_draft,omitempty"`
}

// saveResponse flattens the saved item next to the save outcome.
type saveResponse struct {
	*models.ContentItem
	ActionMessage string `json:"action_message"`
	IsContributor bool   `json:"is_contributor"`
}

// List returns every item of a type, drafts included.
func (h *Content) List(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items, err := h.co.List(r.Context(), ct)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.ContentItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Get returns an item with its draft and current lock.
func (h *Content) Get(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	id, err := contentID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	view, err := h.co.Get(r.Context(), ct, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": view.Item, "lock": view.Lock})
}

// Create adds a new draft authored by the caller.
func (h *Content) Create(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var f models.ContentFields
	if err := decodeJSON(w, r, &f); err != nil {
		writeServiceError(w, r, err)
		return
	}

	item, err := h.co.Create(r.Context(), ct, f, currentEditor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

// Save stores a draft, publishes, or discards the draft depending on the
// requested status. The caller must hold the lock.
func (h *Content) Save(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	id, err := contentID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var body saveBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.co.Save(r.Context(), ct, id, editor.SaveRequest{
		Fields:       body.ContentFields,
		Status:       body.Status,
		DiscardDraft: body.DiscardDraft,
	}, currentEditor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, saveResponse{
		ContentItem:   res.Item,
		ActionMessage: res.ActionMessage,
		IsContributor: res.IsContributor,
	})
}

// Delete removes an item held by the caller.
func (h *Content) Delete(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	id, err := contentID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.co.Delete(r.Context(), ct, id, currentEditor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Public returns the published version of an item by slug. Draft changes
// are never included.
func (h *Content) Public(w http.ResponseWriter, r *http.Request) {
	ct, err := contentType(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	item, err := h.co.GetPublished(r.Context(), ct, chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}
