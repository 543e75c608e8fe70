package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// testValkeyClient returns a Redis client connected to the test Valkey.
// Skips the test if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests to isolate from dev data.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		// Clean up test keys.
		keys, _ := client.Keys(ctx, "session:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// eachBackend runs fn against the memory store and, when reachable, the
// Valkey store.
func eachBackend(t *testing.T, secure bool, fn func(t *testing.T, store *Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(secure))
	})
	t.Run("valkey", func(t *testing.T) {
		fn(t, NewStore(testValkeyClient(t), secure))
	})
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("expected session cookie to be set")
	return nil
}

func TestSessionCreateAndGet(t *testing.T) {
	eachBackend(t, false, func(t *testing.T, store *Store) {
		w := httptest.NewRecorder()
		ctx := context.Background()

		data := &Data{UserID: "100000000000000042", Username: "tester", Role: "admin"}

		sessionID, err := store.Create(ctx, w, data)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if sessionID == "" {
			t.Error("expected non-empty session ID")
		}

		cookie := sessionCookie(t, w)
		if !cookie.HttpOnly {
			t.Error("expected HttpOnly cookie")
		}
		if cookie.Secure {
			t.Error("expected Secure=false for non-secure store")
		}

		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(cookie)

		retrieved, err := store.Get(ctx, req)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected session data, got nil")
		}
		if retrieved.UserID != data.UserID || retrieved.Username != "tester" {
			t.Errorf("identity: got %s/%s, want %s/tester", retrieved.UserID, retrieved.Username, data.UserID)
		}
		if retrieved.Role != "admin" {
			t.Errorf("role: got %q, want admin", retrieved.Role)
		}
		if e := retrieved.Editor(); e.UserID != data.UserID || e.Username != "tester" {
			t.Errorf("Editor() = %+v", e)
		}
	})
}

func TestSessionGetNoCookie(t *testing.T) {
	eachBackend(t, false, func(t *testing.T, store *Store) {
		req := httptest.NewRequest("GET", "/", nil)
		data, err := store.Get(context.Background(), req)
		if err != nil {
			t.Fatalf("Get (no cookie): %v", err)
		}
		if data != nil {
			t.Error("expected nil for request without session cookie")
		}
	})
}

func TestSessionGetUnknown(t *testing.T) {
	eachBackend(t, false, func(t *testing.T, store *Store) {
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "nonexistent-session-id"})

		data, err := store.Get(context.Background(), req)
		if err != nil {
			t.Fatalf("Get (unknown): %v", err)
		}
		if data != nil {
			t.Error("expected nil for expired/nonexistent session")
		}
	})
}

func TestSessionUpdate(t *testing.T) {
	eachBackend(t, false, func(t *testing.T, store *Store) {
		w := httptest.NewRecorder()
		ctx := context.Background()

		data := &Data{UserID: "u-update", Username: "before", Role: "editor"}
		store.Create(ctx, w, data)

		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(sessionCookie(t, w))

		data.Username = "after"
		if err := store.Update(ctx, req, data); err != nil {
			t.Fatalf("Update: %v", err)
		}

		retrieved, _ := store.Get(ctx, req)
		if retrieved == nil {
			t.Fatal("expected session after update")
		}
		if retrieved.Username != "after" {
			t.Errorf("username: got %q, want after", retrieved.Username)
		}
	})
}

func TestSessionUpdateNoCookie(t *testing.T) {
	store := NewMemoryStore(false)

	req := httptest.NewRequest("GET", "/", nil)
	if err := store.Update(context.Background(), req, &Data{}); err == nil {
		t.Error("expected error when updating without cookie")
	}
}

func TestSessionDestroy(t *testing.T) {
	eachBackend(t, false, func(t *testing.T, store *Store) {
		w := httptest.NewRecorder()
		ctx := context.Background()

		store.Create(ctx, w, &Data{UserID: "u-destroy", Username: "gone", Role: "admin"})

		w2 := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(sessionCookie(t, w))

		if err := store.Destroy(ctx, w2, req); err != nil {
			t.Fatalf("Destroy: %v", err)
		}

		for _, c := range w2.Result().Cookies() {
			if c.Name == CookieName && c.MaxAge != -1 {
				t.Error("expected MaxAge=-1 on destroyed cookie")
			}
		}

		if retrieved, _ := store.Get(ctx, req); retrieved != nil {
			t.Error("expected nil after destroy")
		}
	})
}

func TestSessionDestroyNoCookie(t *testing.T) {
	store := NewMemoryStore(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)

	// Should not error even without a cookie.
	if err := store.Destroy(context.Background(), w, req); err != nil {
		t.Errorf("Destroy (no cookie): %v", err)
	}
}

func TestSessionSecureCookie(t *testing.T) {
	eachBackend(t, true, func(t *testing.T, store *Store) {
		w := httptest.NewRecorder()
		store.Create(context.Background(), w, &Data{UserID: "u-secure", Username: "secure", Role: "admin"})

		if !sessionCookie(t, w).Secure {
			t.Error("expected Secure=true for secure store")
		}
	})
}
