// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Most tests run against the in-memory lock store and repository; the
// PostgreSQL-backed tests are skipped when the database is unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"guidepress/internal/database"
	"guidepress/internal/editor"
	"guidepress/internal/lock"
	"guidepress/internal/middleware"
	"guidepress/internal/models"
	"guidepress/internal/session"
	"guidepress/internal/versioning"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "guidepress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "guidepress")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testEnv holds the handler groups wired over in-memory backends.
type testEnv struct {
	Sessions    *session.Store
	Locks       *lock.Manager
	Coordinator *editor.Coordinator
	LockAPI     *Locks
	ContentAPI  *Content
	Auth        *Auth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, lock.NewMemoryStore(), versioning.NewMemoryRepository())
}

func newTestEnvWith(t *testing.T, locks lock.Store, repo versioning.Repository) *testEnv {
	t.Helper()

	sessions := session.NewMemoryStore(false)
	mgr := lock.NewManager(locks)
	co := editor.New(mgr, versioning.NewEngine(repo))

	return &testEnv{
		Sessions:    sessions,
		Locks:       mgr,
		Coordinator: co,
		LockAPI:     NewLocks(co),
		ContentAPI:  NewContent(co),
		Auth:        NewAuth(sessions, nil),
	}
}

var (
	alice = testSession("100", "alice", "admin")
	bob   = testSession("200", "bob", "editor")
)

// testSession creates a session.Data for testing.
func testSession(userID, username, role string) *session.Data {
	return &session.Data{
		UserID:   userID,
		Username: username,
		Role:     role,
	}
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return middleware.WithSession(ctx, data)
}

// newRequest builds a request with chi URL params, an optional JSON body and
// an optional session. params alternate key, value.
func newRequest(t *testing.T, method, target string, body any, sess *session.Data, params ...string) *http.Request {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			raw = string(b)
		}
		rdr = bytes.NewBufferString(raw)
	}

	r := httptest.NewRequest(method, target, rdr)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	if sess != nil {
		ctx = ctxWithSession(ctx, sess)
	}
	return r.WithContext(ctx)
}

// serve runs h and returns the recorder.
func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

// decodeBody decodes a JSON response into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// expectError asserts the status and error code of an API error response.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if got := decodeBody(t, rec)["error"]; got != code {
		t.Errorf("error code = %v, want %q", got, code)
	}
}

// createItem creates a guide through the API as sess and returns it.
func (env *testEnv) createItem(t *testing.T, sess *session.Data, title, body string) *models.ContentItem {
	t.Helper()

	req := newRequest(t, http.MethodPost, "/api/guide/create",
		map[string]string{"title": title, "content": body}, sess, "type", "guide")
	rec := serve(env.ContentAPI.Create, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Item models.ContentItem `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	return &out.Item
}

// acquire takes the lock on a guide as sess, failing the test on conflict.
func (env *testEnv) acquire(t *testing.T, sess *session.Data, id string) {
	t.Helper()
	req := newRequest(t, http.MethodPost, "/api/locks/guide/"+id+"/acquire", nil, sess, "type", "guide", "id", id)
	rec := serve(env.LockAPI.Acquire, req)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["success"] != true {
		t.Fatalf("acquire as %s failed: %d", sess.Username, rec.Code)
	}
}

// save sends a PUT for a guide as sess.
func (env *testEnv) save(t *testing.T, sess *session.Data, id string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(t, http.MethodPut, "/api/guide/"+id, body, sess, "type", "guide", "id", id)
	return serve(env.ContentAPI.Save, req)
}
