package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/padfleet/status-monitor/internal/config"
	"github.com/padfleet/status-monitor/internal/feed"
	"github.com/padfleet/status-monitor/internal/status"
)

// FeedController is the part of the feed manager the server drives.
type FeedController interface {
	Status() feed.ConnectionStatus
	Connect()
	Disconnect(reason string)
	RequestFullRefresh() error
}

// PollReporter reports fallback poller activity.
type PollReporter interface {
	Status() feed.PollStatus
}

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	feed    FeedController
	poller  PollReporter
	board   *status.Board
	logs    *LogBuffer
	events  *EventBuffer
	logger  zerolog.Logger
	started time.Time

	router chi.Router
	http   *http.Server
}

// Deps bundles the components the server exposes.
type Deps struct {
	Feed   FeedController
	Poller PollReporter // optional
	Board  *status.Board
	Logs   *LogBuffer
	Events *EventBuffer
	Logger zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Deps) *Server {
	logs := deps.Logs
	if logs == nil {
		logs = NewLogBuffer(cfg.Log.BufferSize)
	}
	events := deps.Events
	if events == nil {
		events = NewEventBuffer(cfg.Log.EventBuffer)
	}

	s := &Server{
		config:  cfg,
		feed:    deps.Feed,
		poller:  deps.Poller,
		board:   deps.Board,
		logs:    logs,
		events:  events,
		logger:  deps.Logger.With().Str("component", "api").Logger(),
		started: time.Now(),
		router:  chi.NewRouter(),
	}

	s.setupRoutes()
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(
		chiMiddleware.RequestID,
		chiMiddleware.Recoverer,
		s.requestLogger,
	)

	// Health check
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/summary", s.handleSummary)

		// Devices
		r.Get("/devices", s.handleListDevices)
		r.Get("/devices.csv", s.handleExportDevices)
		r.Get("/devices/{padCode}", s.handleGetDevice)

		// Feed control
		r.Post("/feed/connect", s.handleConnect)
		r.Post("/feed/disconnect", s.handleDisconnect)
		r.Post("/feed/refresh", s.handleRefresh)

		// Diagnostics
		r.Get("/events", s.handleEvents)
		r.Get("/logs", s.handleLogs)
		r.Delete("/logs", s.handleClearLogs)
	})

	// Web UI
	s.router.Get("/", s.handleUI)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chiMiddleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleStatus returns connection status and board counters
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "running",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"origin":         s.config.Dashboard.Origin,
		"feed":           s.feed.Status(),
		"board":          s.board.Info(),
	}
	if s.poller != nil {
		resp["fallback"] = s.poller.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSummary returns aggregate counts over the board
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	devices := s.board.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":  status.Summarize(devices),
		"statuses": status.Statuses(devices),
	})
}

// parseQuery maps URL query parameters onto a board query
func parseQuery(r *http.Request) (status.Query, error) {
	v := r.URL.Query()
	q := status.Query{
		Search:  v.Get("search"),
		Status:  v.Get("status"),
		Country: v.Get("country"),
		SortBy:  v.Get("sort"),
		Desc:    strings.EqualFold(v.Get("order"), "desc"),
	}

	for name, dst := range map[string]*int{"page": &q.Page, "page_size": &q.PageSize} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("invalid %s: %q", name, raw)
		}
		*dst = n
	}
	return q, nil
}

// handleListDevices returns one page of devices
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.board.Query(q))
}

// handleGetDevice returns a single device by pad code
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	padCode := chi.URLParam(r, "padCode")
	d, ok := s.board.Get(padCode)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("device %s not found", padCode))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleExportDevices streams the filtered board as CSV
func (s *Server) handleExportDevices(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := fmt.Sprintf("pad-status-%s.csv", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := status.WriteCSV(w, status.Filter(s.board.All(), q)); err != nil {
		s.logger.Error().Err(err).Msg("CSV export failed")
	}
}

// handleConnect starts (or retries) the feed connection
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.feed.Connect()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"feed":    s.feed.Status(),
	})
}

// handleDisconnect stops the feed connection
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.feed.Disconnect("requested via api")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"feed":    s.feed.Status(),
	})
}

// handleRefresh asks the backend for a full snapshot
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.RequestFullRefresh(); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, feed.ErrNotOpen) {
			code = http.StatusConflict
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
	})
}

// handleEvents returns recent connection state transitions
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.events.Entries(),
	})
}

// handleLogs returns recent log entries, optionally filtered by level
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if raw := r.URL.Query().Get("level"); raw != "" {
		levels = strings.Split(raw, ",")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": s.logs.Entries(levels),
	})
}

// handleClearLogs empties the log buffer
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.logs.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

// handleUI serves the web UI
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(webUI))
}
