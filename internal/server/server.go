// Package server exposes the claude client over HTTP: a JSON or
// server-sent-events /chat endpoint and a websocket that streams
// notifications and accepts aborts.
package server

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/flags"
	"github.com/zjrosen/claudecode/internal/session"
)

// ClientFactory builds a client for one request's options.
type ClientFactory func(claude.Options) session.Client

// Server holds the handlers' shared state.
type Server struct {
	mu   sync.RWMutex
	base claude.Options

	newClient ClientFactory
	runs      *Registry
	flags     *flags.Registry
	origins   []string
	upgrader  websocket.Upgrader
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithClientFactory overrides how per-request clients are built.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Server) {
		s.newClient = f
	}
}

// WithClientOptions passes opts to every client the default factory builds.
func WithClientOptions(opts ...claude.ClientOption) Option {
	return func(s *Server) {
		s.newClient = func(o claude.Options) session.Client {
			return claude.New(o, opts...)
		}
	}
}

// WithFlags sets the feature flags.
func WithFlags(f *flags.Registry) Option {
	return func(s *Server) {
		s.flags = f
	}
}

// WithAllowedOrigins permits cross-origin websocket upgrades from origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// New creates a Server whose clients start from base.
func New(base claude.Options, opts ...Option) *Server {
	s := &Server{
		base: base,
		newClient: func(o claude.Options) session.Client {
			return claude.New(o)
		},
		runs: NewRegistry(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// SetOptions replaces the base client options for later requests.
func (s *Server) SetOptions(o claude.Options) {
	s.mu.Lock()
	s.base = o
	s.mu.Unlock()
}

// Options returns the current base client options.
func (s *Server) Options() claude.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Runs returns the in-flight run registry.
func (s *Server) Runs() *Registry {
	return s.runs
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(Logging)
	r.Use(Recovery)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	r.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/events", s.handleRunEvents).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", s.handleAbortRun).Methods(http.MethodDelete)

	if s.flags.Enabled(flags.FlagLogStream) {
		r.HandleFunc("/logs/ws", s.handleLogsWS).Methods(http.MethodGet)
	}
	return r
}

// Shutdown aborts in-flight runs and closes event subscriptions.
func (s *Server) Shutdown(ctx context.Context) {
	s.runs.AbortAll()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for s.runs.Len() > 0 {
		select {
		case <-ctx.Done():
			s.runs.Close()
			return
		case <-ticker.C:
		}
	}
	s.runs.Close()
}

// requestOptions applies per-request overrides to the base options.
func (s *Server) requestOptions(model string, skipPermissions bool) claude.Options {
	return s.Options().Merge(claude.Options{Model: model, SkipPermissions: skipPermissions})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin) {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

type healthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	ActiveRuns int       `json:"active_runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Timestamp:  s.now().UTC(),
		ActiveRuns: s.runs.Len(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runs.List())
}

func (s *Server) handleAbortRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.runs.Abort(id) {
		writeError(w, http.StatusNotFound, ErrNotFound, "no active run "+id)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
