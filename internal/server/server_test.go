package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/habrpipe/internal/article"
	"github.com/TobiSchelling/habrpipe/internal/database"
	"github.com/TobiSchelling/habrpipe/internal/store"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *database.DB, articles ...article.Canonical) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i := range articles {
		if _, _, err := tx.Upsert(ctx, &articles[i], time.Now()); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRouteEmpty(t *testing.T) {
	srv, err := New(openTestDB(t))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := get(t, srv, "/")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No articles stored yet.") {
		t.Error("expected empty-state message in response body")
	}
}

func TestIndexRouteReport(t *testing.T) {
	db := openTestDB(t)
	seed(t, db,
		article.Canonical{Title: "Go in production", URL: "https://habr.com/1/", Author: "gopher", Views: 4100, Rating: 15},
		article.Canonical{Title: "SQL tricks", URL: "https://habr.com/2/", Author: "gopher", Views: 900, Rating: 40},
	)
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := get(t, srv, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<table>", "gopher", "Go in production", "4,100", `href="/static/style.css"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html content type, got %q", ct)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, err := New(openTestDB(t))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := get(t, srv, "/nonexistent")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStatsAPI(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, article.Canonical{Title: "Only", URL: "https://habr.com/only/", Author: "alice", Hubs: "Go"})
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := get(t, srv, "/api/stats")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st store.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if st.TotalArticles != 1 {
		t.Errorf("expected 1 article, got %d", st.TotalArticles)
	}
	if len(st.TopAuthors) != 1 || st.TopAuthors[0].Label != "alice" {
		t.Errorf("unexpected top authors: %+v", st.TopAuthors)
	}
}

func TestStatsAPIRejectsPost(t *testing.T) {
	srv, err := New(openTestDB(t))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	srv, err := New(openTestDB(t))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := get(t, srv, "/static/style.css")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
