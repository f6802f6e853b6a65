// Package httpapi exposes a read-mostly HTTP surface for inspecting and
// exercising a running engine: workflow definitions, active contexts, ad-hoc
// classification and Prometheus metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/awoulbe/chatflow/internal/logging"
	"github.com/awoulbe/chatflow/internal/runtime"
	"github.com/awoulbe/chatflow/pkg/domain"
	"github.com/awoulbe/chatflow/pkg/intent"
)

// Server serves the debug and observability endpoints.
type Server struct {
	engine     *runtime.Engine
	classifier *intent.Classifier
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	router     chi.Router
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer sets the metrics registry exposed on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New builds the server and its routes.
func New(engine *runtime.Engine, classifier *intent.Classifier, opts ...Option) *Server {
	s := &Server{
		engine:     engine,
		classifier: classifier,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/workflows", s.listWorkflows)
	r.Get("/workflows/{id}", s.getWorkflow)
	r.Get("/contexts/{userID}", s.getContext)
	r.Post("/classify", s.classify)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

type workflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	States      int    `json:"states"`
	Active      bool   `json:"active"`
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	defs := s.engine.Workflows()
	out := make([]workflowSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, workflowSummary{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Version:     def.Version,
			States:      len(def.States),
			Active:      def.Active,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"workflows": out})
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	def, ok := s.engine.Workflow(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	s.writeJSON(w, http.StatusOK, def)
}

func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	wctx, err := s.engine.ActiveContext(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrContextNotFound) {
			s.writeError(w, http.StatusNotFound, "no context for user")
			return
		}
		s.logger.Error("loading context", "err", err, "user_id", userID)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, wctx)
}

type classifyRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	cls := s.classifier.Classify(r.Context(), req.Message, req.UserID)
	s.writeJSON(w, http.StatusOK, cls)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
