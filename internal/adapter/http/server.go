package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"retrieval-agent/internal/application/port/input"
	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

const (
	defaultHeartbeat = 15 * time.Second
	maxRequestBytes  = 1 << 20
)

type Config struct {
	Addr string
	// Metrics is mounted at /metrics when set.
	Metrics   http.Handler
	Heartbeat time.Duration
	// AccessLog enables per-request logging.
	AccessLog bool
}

type Server struct {
	runner input.Runner
	logger output.LoggerPort
	cfg    Config
	router chi.Router
}

func NewServer(runner input.Runner, logger output.LoggerPort, cfg Config) *Server {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	s := &Server{runner: runner, logger: logger, cfg: cfg}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.cfg.AccessLog {
		r.Use(httplog.RequestLogger(httplog.NewLogger("retrieval-agent", httplog.Options{JSON: true})))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/invoke", s.handleInvoke)
		r.Post("/runs", s.handleRun)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type runRequest struct {
	Question string           `json:"question"`
	History  []historyMessage `json:"history,omitempty"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (req runRequest) toQuestion() (entity.Question, error) {
	q := entity.Question{Text: req.Question}
	for i, m := range req.History {
		role := entity.MessageRole(strings.ToLower(m.Role))
		if role != entity.RoleUser && role != entity.RoleAssistant {
			return q, fmt.Errorf("history[%d]: role must be user or assistant", i)
		}
		q.History = append(q.History, entity.Message{Role: role, Content: m.Content})
	}
	return q, nil
}

type runResponse struct {
	RunID      string           `json:"run_id"`
	Status     entity.RunStatus `json:"status"`
	Answer     string           `json:"answer,omitempty"`
	Steps      []entity.Step    `json:"steps"`
	Iterations int              `json:"iterations"`
	ErrorKind  entity.ErrorKind `json:"error_kind,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (entity.Question, bool) {
	var req runRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return entity.Question{}, false
	}
	q, err := req.toQuestion()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return entity.Question{}, false
	}
	return q, true
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decode(w, r)
	if !ok {
		return
	}

	run, err := s.runner.Invoke(r.Context(), q)
	if run == nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprint(err))
		return
	}

	resp := runResponse{
		RunID:      run.ID,
		Status:     run.Status,
		Answer:     run.Answer,
		Steps:      run.Steps,
		Iterations: run.Iterations,
		ErrorKind:  run.ErrorKind,
		Error:      run.Error,
	}
	if resp.Steps == nil {
		resp.Steps = []entity.Step{}
	}

	status := http.StatusOK
	if err != nil {
		status = statusForKind(entity.KindOf(err))
		s.logger.Warn("Run failed", "run_id", run.ID, "error", err)
	}
	writeJSON(w, status, resp)
}

func statusForKind(kind entity.ErrorKind) int {
	switch kind {
	case entity.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case entity.ErrorKindResourceExhausted:
		return http.StatusGatewayTimeout
	case entity.ErrorKindModel, entity.ErrorKindProtocol:
		return http.StatusBadGateway
	case entity.ErrorKindCancelled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type streamEvent struct {
	entity.Event
	Error string `json:"error,omitempty"`
}

// handleRun streams the run as Server-Sent Events. Closing the connection
// cancels the run.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decode(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	events := s.runner.Run(ctx, q)

	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload := streamEvent{Event: ev}
			if ev.Err != nil {
				payload.Error = ev.Err.Error()
			}
			data, err := json.Marshal(payload)
			if err != nil {
				s.logger.Error("Failed to encode event", "type", ev.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				s.logger.Warn("Client went away", "run_id", ev.RunID, "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
