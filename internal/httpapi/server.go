// Package httpapi exposes a minimal read-only HTTP surface over
// internal/introspect, for an embedder or operator to query a running
// supervisor (started by the CLI's serve subcommand) without a client
// library. The CLI's other subcommands do not go through it: they run
// their queries against an in-process supervisor.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/ozymandias/internal/capability"
	"github.com/dohr-michael/ozymandias/internal/introspect"
)

// Server is the introspection HTTP server.
type Server struct {
	httpServer *http.Server
	intr       *introspect.Introspect
	addr       string
}

// NewServer builds a Server bound to addr, exposing intr's queries.
func NewServer(intr *introspect.Introspect, addr string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{intr: intr, addr: addr}

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/agents", s.handleListAgents)
	r.Get("/api/agents/{name}", s.handleAgentInfo)
	r.Get("/api/agents/{name}/logs", s.handleAgentLogs)
	r.Get("/api/agents/{name}/check-capability", s.handleCheckCapability)
	r.Get("/api/agents/{name}/check-sandbox-access", s.handleCheckSandboxAccess)
	r.Get("/api/agents/{name}/check-network-access", s.handleCheckNetworkAccess)
	r.Get("/api/validate", s.handleValidateAll)

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

// Handler returns the underlying http.Handler, for tests that want to
// drive it with httptest without binding a real socket.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.intr.SystemStatus())
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.intr.ListAgents())
}

func (s *Server) handleAgentInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, ok := s.intr.AgentInfo(name)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleAgentLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	entries, err := s.intr.AgentLogs(name, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleCheckCapability(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tag := r.URL.Query().Get("tag")
	writeJSON(w, s.intr.CheckCapability(name, capability.Tag(tag)))
}

func (s *Server) handleCheckSandboxAccess(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path := r.URL.Query().Get("path")
	writeJSON(w, s.intr.CheckSandboxAccess(name, path))
}

func (s *Server) handleCheckNetworkAccess(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	target := r.URL.Query().Get("target")
	writeJSON(w, s.intr.CheckNetworkAccess(name, target))
}

func (s *Server) handleValidateAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.intr.ValidateAll())
}
