package versioning

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"guidepress/internal/models"
)

var (
	author = models.Editor{UserID: "author-1", Username: "author"}
	editor = models.Editor{UserID: "editor-2", Username: "editor"}
)

func str(s string) *string { return &s }

func newTestEngine() *Engine {
	return NewEngine(NewMemoryRepository())
}

func createGuide(t *testing.T, e *Engine, title, body string) *models.ContentItem {
	t.Helper()
	item, err := e.Create(context.Background(), models.ContentTypeGuide,
		models.ContentFields{Title: str(title), Body: str(body)}, author)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return item
}

func publishGuide(t *testing.T, e *Engine, id uuid.UUID, body string) *models.ContentItem {
	t.Helper()
	res, err := e.Publish(context.Background(), models.ContentTypeGuide, id,
		models.ContentFields{Body: str(body)}, author)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return res.Item
}

func TestCreateDefaults(t *testing.T) {
	e := newTestEngine()
	item := createGuide(t, e, "  Raid Guide  ", "v1")

	if item.Status != models.ContentStatusDraft {
		t.Errorf("Status = %q, want draft", item.Status)
	}
	if item.AuthorID != author.UserID || item.AuthorName != author.Username {
		t.Errorf("author = %s/%s, want %s/%s", item.AuthorID, item.AuthorName, author.UserID, author.Username)
	}
	if len(item.Contributors) != 0 {
		t.Errorf("Contributors = %v, want empty", item.Contributors)
	}
	if item.DraftBody != nil {
		t.Error("new item must not carry a draft shadow")
	}
	if item.Title != "Raid Guide" || item.Slug != "raid-guide" {
		t.Errorf("title/slug = %q/%q, want Raid Guide/raid-guide", item.Title, item.Slug)
	}
	if item.Visibility != models.VisibilityPublic {
		t.Errorf("Visibility = %q, want public", item.Visibility)
	}
}

func TestCreateValidation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	tests := []struct {
		name   string
		fields models.ContentFields
	}{
		{name: "missing title", fields: models.ContentFields{Body: str("x")}},
		{name: "blank title", fields: models.ContentFields{Title: str("   ")}},
		{name: "symbol-only title", fields: models.ContentFields{Title: str("???")}},
		{name: "bad slug", fields: models.ContentFields{Title: str("ok"), Slug: str("Not A Slug")}},
		{name: "long title", fields: models.ContentFields{Title: str(strings.Repeat("x", 301))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Create(ctx, models.ContentTypeGuide, tt.fields, author)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateSlugTaken(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	createGuide(t, e, "Same Title", "")

	if _, err := e.Create(ctx, models.ContentTypeGuide, models.ContentFields{Title: str("Same Title")}, author); !errors.Is(err, ErrSlugTaken) {
		t.Errorf("duplicate slug: err = %v, want ErrSlugTaken", err)
	}
	// Slugs are unique per type only.
	if _, err := e.Create(ctx, models.ContentTypeNews, models.ContentFields{Title: str("Same Title")}, author); err != nil {
		t.Errorf("same slug on another type: %v", err)
	}
}

// Author creates v1 then publishes v2.
func TestScenarioCreateThenPublish(t *testing.T) {
	e := newTestEngine()
	item := createGuide(t, e, "Launch Guide", "v1")

	published := publishGuide(t, e, item.ID, "v2")

	if published.Status != models.ContentStatusPublished {
		t.Errorf("Status = %q, want published", published.Status)
	}
	if published.Body != "v2" {
		t.Errorf("Body = %q, want v2", published.Body)
	}
	if published.DraftBody != nil {
		t.Errorf("DraftBody = %q, want nil", *published.DraftBody)
	}
}

func TestSaveDraftOnPublishedKeepsPublicBody(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Shadow", "v1")
	publishGuide(t, e, item.ID, "P")

	res, err := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("X")}, author)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if res.Item.Body != "P" {
		t.Errorf("Body = %q, want P", res.Item.Body)
	}
	if res.Item.DraftBody == nil || *res.Item.DraftBody != "X" {
		t.Errorf("DraftBody = %v, want X", res.Item.DraftBody)
	}

	pub, err := e.GetPublished(ctx, models.ContentTypeGuide, item.Slug)
	if err != nil {
		t.Fatalf("GetPublished: %v", err)
	}
	if pub.Body != "P" || pub.DraftBody != nil {
		t.Errorf("public view = body %q draft %v, want P and nil", pub.Body, pub.DraftBody)
	}
}

func TestSaveDraftMatchingPublishedBodyClearsShadow(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Same Body", "v1")
	publishGuide(t, e, item.ID, "P")

	res, err := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("P")}, author)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if res.Item.HasDraft() {
		t.Errorf("DraftBody = %q, want nil when body matches published", *res.Item.DraftBody)
	}

	// Typing back to the published text drops an existing shadow too.
	e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("X")}, author)
	res, err = e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("P")}, author)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if res.Item.HasDraft() || res.Item.Body != "P" {
		t.Errorf("body=%q draft=%v, want P and no draft", res.Item.Body, res.Item.DraftBody)
	}
}

func TestSaveDraftOnPublishedRejectsMetadataChanges(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Live Title", "v1")
	publishGuide(t, e, item.ID, "P")

	visibility := models.VisibilityUnlisted
	tests := []struct {
		name   string
		fields models.ContentFields
	}{
		{name: "title", fields: models.ContentFields{Title: str("Draft Title"), Body: str("X")}},
		{name: "slug", fields: models.ContentFields{Slug: str("moved-guide"), Body: str("X")}},
		{name: "description", fields: models.ContentFields{Description: str("new"), Body: str("X")}},
		{name: "thumbnail", fields: models.ContentFields{Thumbnail: str("https://cdn.example/t.png"), Body: str("X")}},
		{name: "visibility", fields: models.ContentFields{Visibility: &visibility, Body: str("X")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, tt.fields, author); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	pub, err := e.GetPublished(ctx, models.ContentTypeGuide, item.Slug)
	if err != nil {
		t.Fatalf("GetPublished: %v", err)
	}
	if pub.Title != "Live Title" || pub.Body != "P" {
		t.Errorf("public item = %q/%q, want Live Title/P", pub.Title, pub.Body)
	}
	got, _ := e.Get(ctx, models.ContentTypeGuide, item.ID)
	if got.HasDraft() {
		t.Error("rejected save left a draft behind")
	}

	// Unchanged metadata sent alongside the body is accepted.
	res, err := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID,
		models.ContentFields{Title: str("Live Title"), Slug: str(item.Slug), Body: str("X")}, author)
	if err != nil {
		t.Fatalf("SaveDraft with unchanged metadata: %v", err)
	}
	if !res.Item.HasDraft() {
		t.Error("draft not stored")
	}
}

func TestSaveDraftOnDraftItemEditsMetadata(t *testing.T) {
	e := newTestEngine()
	item := createGuide(t, e, "Working Title", "v1")

	res, err := e.SaveDraft(context.Background(), models.ContentTypeGuide, item.ID,
		models.ContentFields{Title: str("Final Title"), Slug: str("final-title"), Body: str("v2")}, author)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if res.Item.Title != "Final Title" || res.Item.Slug != "final-title" || res.Item.Body != "v2" {
		t.Errorf("item = %q/%q/%q", res.Item.Title, res.Item.Slug, res.Item.Body)
	}
	if res.Item.HasDraft() {
		t.Error("draft item grew a shadow body")
	}
}

func TestEmptyContributorsEncodeAsArray(t *testing.T) {
	e := newTestEngine()
	item := createGuide(t, e, "No Contributors", "v1")

	got, err := e.Get(context.Background(), models.ContentTypeGuide, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"contributors":[]`) {
		t.Errorf("json = %s, want empty contributors array", raw)
	}

	pub := got.PublicView()
	if pub.Contributors == nil {
		t.Error("PublicView contributors = nil, want empty slice")
	}
}

func TestPublishAbsorbsDraft(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Absorb", "v1")
	publishGuide(t, e, item.ID, "P")

	e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("X")}, author)
	final := publishGuide(t, e, item.ID, "Y")

	if final.Body != "Y" {
		t.Errorf("Body = %q, want Y (not the draft X)", final.Body)
	}
	if final.DraftBody != nil {
		t.Error("draft survived publish")
	}
}

func TestDiscardDraftIsPureRollback(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Rollback", "v1")
	publishGuide(t, e, item.ID, "P")
	e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("X")}, author)

	got, err := e.DiscardDraft(ctx, models.ContentTypeGuide, item.ID)
	if err != nil {
		t.Fatalf("DiscardDraft: %v", err)
	}
	if got.Body != "P" || got.DraftBody != nil {
		t.Errorf("after discard body=%q draft=%v, want P and nil", got.Body, got.DraftBody)
	}

	if _, err := e.DiscardDraft(ctx, models.ContentTypeGuide, item.ID); !errors.Is(err, ErrNoDraftToDiscard) {
		t.Errorf("second discard: err = %v, want ErrNoDraftToDiscard", err)
	}
}

func TestDiscardDraftOnUnpublishedItem(t *testing.T) {
	e := newTestEngine()
	item := createGuide(t, e, "Unpublished", "v1")

	if _, err := e.DiscardDraft(context.Background(), models.ContentTypeGuide, item.ID); !errors.Is(err, ErrNoDraftToDiscard) {
		t.Errorf("err = %v, want ErrNoDraftToDiscard", err)
	}
}

// A non-author saving a draft on a published guide is attributed once.
func TestContributorAttributedOnce(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Crafting Guide", "v1")
	publishGuide(t, e, item.ID, "v2")

	first, err := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("v2-draft")}, editor)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if !first.IsContributor {
		t.Error("first non-author save must report is_contributor")
	}
	if !strings.Contains(first.ActionMessage, "contributor") {
		t.Errorf("ActionMessage = %q, want contributor notice", first.ActionMessage)
	}

	for i := 0; i < 3; i++ {
		again, err := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("more")}, editor)
		if err != nil {
			t.Fatalf("save %d: %v", i+2, err)
		}
		if again.IsContributor {
			t.Errorf("save %d reported is_contributor again", i+2)
		}
	}

	res, _ := e.Publish(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("final")}, editor)
	if res.IsContributor {
		t.Error("publish by an existing contributor reported is_contributor")
	}

	got, _ := e.Get(ctx, models.ContentTypeGuide, item.ID)
	if len(got.Contributors) != 1 || got.Contributors[0].UserID != editor.UserID {
		t.Errorf("Contributors = %+v, want exactly %s", got.Contributors, editor.UserID)
	}
}

func TestAuthorIsNeverContributor(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Own", "v1")

	res, err := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("v2")}, author)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if res.IsContributor || len(res.Item.Contributors) != 0 {
		t.Errorf("author attributed as contributor: %+v", res.Item.Contributors)
	}
	if res.ActionMessage != MsgDraftSaved {
		t.Errorf("ActionMessage = %q, want %q", res.ActionMessage, MsgDraftSaved)
	}
}

func TestPublishedNeverRevertsToDraft(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Sticky", "v1")
	publishGuide(t, e, item.ID, "P")

	res, _ := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("X")}, editor)
	if res.Item.Status != models.ContentStatusPublished {
		t.Errorf("Status = %q after draft save, want published", res.Item.Status)
	}
}

func TestUpdatedAtRefreshedCreatedAtImmutable(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Times", "v1")

	res, _ := e.SaveDraft(ctx, models.ContentTypeGuide, item.ID, models.ContentFields{Body: str("v2")}, author)
	if !res.Item.CreatedAt.Equal(item.CreatedAt) {
		t.Error("CreatedAt changed on save")
	}
	if res.Item.UpdatedAt.Before(item.UpdatedAt) {
		t.Error("UpdatedAt went backwards")
	}
}

func TestNotFound(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	missing := uuid.New()

	if _, err := e.Get(ctx, models.ContentTypeGuide, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: err = %v, want ErrNotFound", err)
	}
	if _, err := e.SaveDraft(ctx, models.ContentTypeGuide, missing, models.ContentFields{}, author); !errors.Is(err, ErrNotFound) {
		t.Errorf("SaveDraft: err = %v, want ErrNotFound", err)
	}
	if err := e.Delete(ctx, models.ContentTypeGuide, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: err = %v, want ErrNotFound", err)
	}

	// An item is not reachable through the wrong type.
	item := createGuide(t, e, "Typed", "v1")
	if _, err := e.Get(ctx, models.ContentTypeNews, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get wrong type: err = %v, want ErrNotFound", err)
	}
}

func TestGetPublishedHidesDrafts(t *testing.T) {
	e := newTestEngine()
	item := createGuide(t, e, "Hidden", "v1")

	if _, err := e.GetPublished(context.Background(), models.ContentTypeGuide, item.Slug); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPublished on draft: err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	item := createGuide(t, e, "Gone", "v1")

	if err := e.Delete(ctx, models.ContentTypeGuide, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	items, _ := e.List(ctx, models.ContentTypeGuide)
	if len(items) != 0 {
		t.Errorf("List after delete = %d items, want 0", len(items))
	}
}
