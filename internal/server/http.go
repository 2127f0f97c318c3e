package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/behaviour/internal/core/agents"
	"github.com/zeusync/behaviour/internal/core/bt"
	"github.com/zeusync/behaviour/internal/core/events"
	"github.com/zeusync/behaviour/internal/core/observability/log"
	"github.com/zeusync/behaviour/internal/core/observability/metrics"
)

// HTTPServer exposes the agent manager for inspection: agent listing and
// detail, spawning from the loaded template, reset, despawn, a live event
// stream and Prometheus metrics.
type HTTPServer struct {
	server   *http.Server
	manager  *agents.Manager
	template *bt.Tree
	gatherer prometheus.Gatherer
	events   *events.Bus
	logger   log.Log

	done     chan struct{}
	stopOnce sync.Once
}

type Option func(*HTTPServer)

// WithTemplate enables POST /agents, spawning from t.
func WithTemplate(t *bt.Tree) Option {
	return func(s *HTTPServer) { s.template = t }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *HTTPServer) { s.gatherer = g }
}

// WithEvents streams bus on /events.
func WithEvents(bus *events.Bus) Option {
	return func(s *HTTPServer) { s.events = bus }
}

func WithLogger(l log.Log) Option {
	return func(s *HTTPServer) { s.logger = l }
}

func NewHTTPServer(m *agents.Manager, opts ...Option) *HTTPServer {
	s := &HTTPServer{manager: m, done: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewNop()
	}
	return s
}

// Start listens on addr and serves in the background until Stop.
func (s *HTTPServer) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", log.Error(err))
		}
	}()
	s.logger.Info("http server listening", log.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

// Stop ends open event streams and shuts the listener down gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer))
	}
	if s.events != nil {
		r.Get("/events", s.streamEvents)
	}
	r.Route("/agents", func(r chi.Router) {
		r.Get("/", s.listAgents)
		r.Post("/", s.spawnAgent)
		r.Get("/{id}", s.getAgent)
		r.Delete("/{id}", s.despawnAgent)
		r.Post("/{id}/reset", s.resetAgent)
	})
	return r
}

func (s *HTTPServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "agents": s.manager.Len()})
}

func (s *HTTPServer) listAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Statuses())
}

func (s *HTTPServer) spawnAgent(w http.ResponseWriter, _ *http.Request) {
	if s.template == nil {
		writeError(w, http.StatusConflict, errors.New("no template loaded"))
		return
	}
	a, err := s.manager.Spawn(s.template)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	d, _ := s.manager.Inspect(a.ID())
	writeJSON(w, http.StatusCreated, d)
}

func (s *HTTPServer) getAgent(w http.ResponseWriter, r *http.Request) {
	d, ok := s.manager.Inspect(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errAgentNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *HTTPServer) despawnAgent(w http.ResponseWriter, r *http.Request) {
	if !s.manager.Despawn(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, errAgentNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) resetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.manager.Reset(id) {
		writeError(w, http.StatusNotFound, errAgentNotFound)
		return
	}
	d, _ := s.manager.Inspect(id)
	writeJSON(w, http.StatusOK, d)
}

// streamEvents writes agent events as server-sent events until the client
// goes away. ?type= narrows the stream to one event type. A client that falls
// behind loses events rather than stalling the tick loop.
func (s *HTTPServer) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	ch := make(chan events.Event, 64)
	sub := s.events.Subscribe(events.Type(r.URL.Query().Get("type")), func(e events.Event) error {
		select {
		case ch <- e:
		default:
		}
		return nil
	})
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				s.logger.Warn("encode event", log.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

var errAgentNotFound = errors.New("agent not found")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
