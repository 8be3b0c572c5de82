package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/ledger"
)

const (
	maxBodyBytes       = 4 << 10
	defaultEventsLimit = 50
	maxEventsLimit     = 1000
)

// History is the read side of the event ledger.
type History interface {
	Recent(limit int) ([]*ledger.Entry, error)
}

// Server is the HTTP control surface.
type Server struct {
	addr       string
	ctrl       *Controller
	history    History
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a control server. Mutating requests share a limiter of
// rps requests per second with the given burst. history may be nil.
func NewServer(addr string, ctrl *Controller, history History, rps float64, burst int) *Server {
	if burst < 1 {
		burst = 1
	}
	return &Server{
		addr:    addr,
		ctrl:    ctrl,
		history: history,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/color", s.limit(http.HandlerFunc(s.handleColor)))
	mux.Handle("POST /api/animation", s.limit(http.HandlerFunc(s.handleAnimation)))
	mux.Handle("POST /api/sun", s.limit(http.HandlerFunc(s.handleSun)))
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.ctrl.sched.ClockTrusted() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for clock"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	return mux
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting control server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Control server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			log.Debug().Str("path", r.URL.Path).Msg("Rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type colorRequest struct {
	R *int `json:"r"`
	G *int `json:"g"`
	B *int `json:"b"`
}

func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.R == nil || req.G == nil || req.B == nil {
		writeError(w, http.StatusBadRequest, "r, g and b are required")
		return
	}
	for _, v := range []int{*req.R, *req.G, *req.B} {
		if v < 0 || v > 255 {
			writeError(w, http.StatusBadRequest, "channels must be within 0..255")
			return
		}
	}

	id, err := s.ctrl.SetColor("http", color.RGB(uint8(*req.R), uint8(*req.G), uint8(*req.B)))
	s.writeResult(w, id, err)
}

type animationRequest struct {
	Kind     *animation.Kind `json:"kind"`
	Src      color.Color     `json:"src"`
	Dst      color.Color     `json:"dst"`
	Interval uint32          `json:"interval_ms"`
	Duration uint32          `json:"duration_ms"`
}

func (s *Server) handleAnimation(w http.ResponseWriter, r *http.Request) {
	var req animationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == nil {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	id, err := s.ctrl.Animate("http", animation.Command{
		Kind:     *req.Kind,
		Src:      req.Src,
		Dst:      req.Dst,
		Interval: req.Interval,
		Duration: req.Duration,
	})
	s.writeResult(w, id, err)
}

type sunRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleSun(w http.ResponseWriter, r *http.Request) {
	var req sunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	id, err := s.ctrl.SetSun("http", *req.Enabled)
	s.writeResult(w, id, err)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "event ledger is disabled")
		return
	}

	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventsLimit)
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read event ledger")
		writeError(w, http.StatusInternalServerError, "failed to read event ledger")
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) writeResult(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, ErrBusy) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok", "request_id": id})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
