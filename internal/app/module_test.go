package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/nexushq/nexus/internal/api"
	"github.com/nexushq/nexus/internal/auth"
	"github.com/nexushq/nexus/internal/bus"
	"github.com/nexushq/nexus/internal/lock"
	"github.com/nexushq/nexus/internal/state"
	"github.com/nexushq/nexus/internal/store"
)

// TestClientLifecycle wires the full component graph by hand the way
// the fx module does and exercises a sign-in plus a draft load against
// a fake backend.
func TestClientLifecycle(t *testing.T) {
	sessionDir := t.TempDir()

	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(filepath.Join(sessionDir, "nexus.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, api.VerifyResult{Token: "tok", User: api.AuthUser{ID: "uid-1"}})
	})
	mux.HandleFunc("GET /v1/user/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "profile not found"})
	})
	mux.HandleFunc("GET /v1/content/drafts", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []api.Draft{{ID: 1, Content: "hello", Status: api.DraftPending}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := zap.NewNop()
	b := bus.New()
	client := api.New(api.Config{BaseURL: srv.URL}, logger)
	machine := auth.NewMachine(b)
	manager := auth.NewManager(machine, &staticProvider{}, client, db, b, logger)
	st := state.New(client, db, b, logger)
	defer st.Close()

	if err := st.Hydrate(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := manager.SignIn(ctx, "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if manager.Status() != auth.SignedIn {
		t.Fatalf("status = %s", manager.Status())
	}

	if err := st.LoadDrafts(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if got := st.Drafts(); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("drafts = %+v", got)
	}

	// The draft load wrote through to the cache.
	cached, err := db.ListDrafts()
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 1 {
		t.Errorf("cache has %d drafts, want 1", len(cached))
	}

	// The profile synthesized on first sign-in was cached by user id.
	profile, err := db.GetProfile("uid-1")
	if err != nil {
		t.Fatal(err)
	}
	if profile == nil {
		t.Error("profile not cached")
	}
}

type staticProvider struct{}

func (staticProvider) SignIn(_ context.Context, email, _ string) (*auth.Credentials, error) {
	return &auth.Credentials{UID: "uid-1", Email: email, IDToken: "id-token"}, nil
}

func (p staticProvider) SignUp(ctx context.Context, email, password, _ string) (*auth.Credentials, error) {
	return p.SignIn(ctx, email, password)
}

func (staticProvider) Refresh(_ context.Context, _ string) (*auth.Credentials, error) {
	return &auth.Credentials{UID: "uid-1", IDToken: "id-token"}, nil
}

func (staticProvider) Revoke(_ context.Context, _ string) error { return nil }

func writeData(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}
