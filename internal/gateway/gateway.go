// Package gateway is the HTTP JSON API fronting the cron manager,
// grounded on the teacher's pkg/devclaw/gateway: the same mux-routing
// plus middleware-chain shape (security headers, CORS, bearer auth),
// generalized from chat/session routes to the five cron.* RPC surfaces.
package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flux-framework/flux-cron-go/pkg/cronerr"
	"github.com/flux-framework/flux-cron-go/pkg/manager"
)

// Config configures the gateway's HTTP surface.
type Config struct {
	Address     string
	AuthToken   string
	CORSOrigins []string
}

// Gateway serves the cron manager's create/delete/list/start/stop/sync
// operations as JSON over HTTP.
type Gateway struct {
	mgr       *manager.Manager
	cfg       Config
	server    *http.Server
	logger    *slog.Logger
	startedAt time.Time
}

// New constructs a Gateway over mgr.
func New(mgr *manager.Manager, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = ":8734"
	}
	return &Gateway{mgr: mgr, cfg: cfg, logger: logger.With("component", "gateway")}
}

// Start begins serving HTTP in the background. It does not block.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()
	mux := http.NewServeMux()

	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/api/entries", g.handleEntries)       // GET (list), POST (create)
	mux.HandleFunc("/api/entries/", g.handleEntryByID)     // DELETE, plus POST /start /stop suffixes
	mux.HandleFunc("/api/sync", g.handleSync)              // POST

	handler := g.securityHeadersMiddleware(g.corsMiddleware(g.authMiddleware(mux)))
	g.server = &http.Server{Addr: g.cfg.Address, Handler: handler}

	if g.cfg.AuthToken == "" {
		host, _, _ := net.SplitHostPort(g.cfg.Address)
		if host == "" {
			host = "0.0.0.0"
		}
		ip := net.ParseIP(host)
		isLoopback := ip != nil && ip.IsLoopback()
		if !isLoopback && host != "localhost" {
			g.logger.Warn("gateway has no auth token and is bound to a non-loopback address",
				"address", g.cfg.Address)
		}
	}

	go func() {
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gateway server error", "error", err)
		}
	}()
	g.logger.Info("gateway started", "address", g.cfg.Address)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop() error {
	if g.server == nil {
		return nil
	}
	return g.server.Close()
}

func (g *Gateway) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func compareTokens(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

func (g *Gateway) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.AuthToken == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || !compareTokens(token, g.cfg.AuthToken) {
			g.writeError(w, "invalid or missing bearer token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(g.cfg.CORSOrigins) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		origin := r.Header.Get("Origin")
		for _, o := range g.cfg.CORSOrigins {
			if o == "*" || o == origin {
				w.Header().Set("Access-Control-Allow-Origin", o)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				break
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Kind    string `json:"kind,omitempty"`
	} `json:"error"`
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (g *Gateway) writeError(w http.ResponseWriter, msg string, status int) {
	var resp errorResponse
	resp.Error.Message = msg
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeCronErr translates a cronerr.Kind into a stable HTTP status,
// falling back to 500 for anything unclassified.
func (g *Gateway) writeCronErr(w http.ResponseWriter, err error) {
	kind, ok := cronerr.KindOf(err)
	status := http.StatusInternalServerError
	if ok {
		switch kind {
		case cronerr.Protocol, cronerr.SemanticParse:
			status = http.StatusBadRequest
		case cronerr.NotFound:
			status = http.StatusNotFound
		case cronerr.NotImplemented:
			status = http.StatusNotImplemented
		case cronerr.DispatchFailure, cronerr.ExecFailure, cronerr.RuntimeFailure, cronerr.Overflow:
			status = http.StatusUnprocessableEntity
		}
	}
	g.writeError(w, err.Error(), status)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(g.startedAt).Round(time.Second).String(),
	})
}

// createEntryBody is the JSON request body for POST /api/entries,
// mirroring cron.create's RPC fields.
type createEntryBody struct {
	Name             string         `json:"name"`
	Command          string         `json:"command"`
	Cwd              string         `json:"cwd"`
	Env              []string       `json:"env"`
	Rank             int            `json:"rank"`
	Repeat           int64          `json:"repeat"`
	StopOnFailure    int64          `json:"stop_on_failure"`
	TimeoutSeconds   float64        `json:"timeout"`
	TaskHistoryCount int            `json:"task_history_count"`
	Type             string         `json:"type"`
	Args             map[string]any `json:"args"`
	Stopped          bool           `json:"stopped"`
}

func (g *Gateway) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.writeJSON(w, http.StatusOK, map[string]any{"entries": g.mgr.List()})
	case http.MethodPost:
		var body createEntryBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			g.writeError(w, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
			return
		}
		e, err := g.mgr.Create(manager.CreateRequest{
			Name:             body.Name,
			Command:          body.Command,
			Cwd:              body.Cwd,
			Env:              body.Env,
			Rank:             body.Rank,
			Repeat:           body.Repeat,
			StopOnFailure:    body.StopOnFailure,
			Timeout:          time.Duration(body.TimeoutSeconds * float64(time.Second)),
			TaskHistoryCount: body.TaskHistoryCount,
			TypeName:         body.Type,
			TriggerArgs:      body.Args,
			Stopped:          body.Stopped,
		})
		if err != nil {
			g.writeCronErr(w, err)
			return
		}
		g.writeJSON(w, http.StatusCreated, e.ToValue())
	default:
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleEntryByID dispatches /api/entries/{id}, /api/entries/{id}/start,
// and /api/entries/{id}/stop.
func (g *Gateway) handleEntryByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		g.writeError(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "start":
			if err := g.mgr.Start(id); err != nil {
				g.writeCronErr(w, err)
				return
			}
			g.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case "stop":
			if err := g.mgr.Stop(id); err != nil {
				g.writeCronErr(w, err)
				return
			}
			g.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			g.writeError(w, "not found", http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodDelete:
		kill := r.URL.Query().Get("kill") == "true"
		if err := g.mgr.Delete(id, kill); err != nil {
			g.writeCronErr(w, err)
			return
		}
		g.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type syncBody struct {
	Topic          string  `json:"topic"`
	EpsilonSeconds float64 `json:"epsilon"`
}

func (g *Gateway) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body syncBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		g.writeError(w, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
		return
	}
	epsilon := time.Duration(body.EpsilonSeconds * float64(time.Second))
	if err := g.mgr.Sync(body.Topic, epsilon); err != nil {
		g.writeCronErr(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
