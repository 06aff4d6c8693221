package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/flux-framework/flux-cron-go/internal/reactor"
	"github.com/flux-framework/flux-cron-go/pkg/eventbus"
	"github.com/flux-framework/flux-cron-go/pkg/executor"
	"github.com/flux-framework/flux-cron-go/pkg/manager"
)

func newTestGateway(t *testing.T) (*Gateway, http.Handler) {
	t.Helper()
	r := reactor.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.Run(ctx)
	mgr := manager.New(r, executor.NewLocal(executor.DefaultConfig()), eventbus.New(), os.TempDir())
	g := New(mgr, Config{}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/api/entries", g.handleEntries)
	mux.HandleFunc("/api/entries/", g.handleEntryByID)
	mux.HandleFunc("/api/sync", g.handleSync)
	return g, g.securityHeadersMiddleware(g.corsMiddleware(g.authMiddleware(mux)))
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newTestGateway(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateThenListEntry(t *testing.T) {
	_, handler := newTestGateway(t)

	body, _ := json.Marshal(createEntryBody{
		Name:    "nightly",
		Command: "true",
		Type:    "interval",
		Args:    map[string]any{"interval": float64(10)},
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listResp struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listResp.Entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(listResp.Entries))
	}
}

func TestCreateRejectsUnknownTriggerType(t *testing.T) {
	_, handler := newTestGateway(t)
	body, _ := json.Marshal(createEntryBody{Command: "true", Type: "bogus"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501: %s", rec.Code, rec.Body.String())
	}
}

func TestStartStopAndDeleteByID(t *testing.T) {
	_, handler := newTestGateway(t)

	body, _ := json.Marshal(createEntryBody{Command: "true", Type: "interval", Args: map[string]any{"interval": float64(10)}})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewReader(body)))
	var created map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	id := int64(created["id"].(float64))

	idStr := strconv.FormatInt(id, 10)
	for _, action := range []string{"stop", "start"} {
		rec = httptest.NewRecorder()
		path := "/api/entries/" + idStr + "/" + action
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200: %s", action, rec.Code, rec.Body.String())
		}
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/entries/"+idStr, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownEntryIDReturnsNotFound(t *testing.T) {
	_, handler := newTestGateway(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/entries/999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	r := reactor.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)
	mgr := manager.New(r, executor.NewLocal(executor.DefaultConfig()), eventbus.New(), os.TempDir())
	g := New(mgr, Config{AuthToken: "secret"}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/entries", g.handleEntries)
	handler := g.authMiddleware(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("Authorization", "Bearer secret")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCompareTokensConstantTime(t *testing.T) {
	if !compareTokens("abc", "abc") {
		t.Fatal("expected equal tokens to compare equal")
	}
	if compareTokens("abc", "abd") {
		t.Fatal("expected different tokens to compare unequal")
	}
}

