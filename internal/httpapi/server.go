// Package httpapi serves the monitor's snapshot and force-poll trigger to
// local display clients. The monitor runs without it unless STATUS_ADDR is set.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/homelabmon/internal/domain"
	apimw "github.com/hamed0406/homelabmon/internal/httpapi/middleware"
	"github.com/hamed0406/homelabmon/internal/scheduler"
	"github.com/hamed0406/homelabmon/internal/store"
)

// State is the read side of the state store.
type State interface {
	Snapshot() store.Snapshot
	Get(id domain.TargetID) (store.Entry, bool)
	Count() int
}

// Trigger runs out-of-band checks.
type Trigger interface {
	ForcePoll(id domain.TargetID) error
	ForcePollAll() error
}

type Server struct {
	Logger  *zap.Logger
	State   State
	Trigger Trigger
	Started time.Time
}

func NewServer(l *zap.Logger, st State, tr Trigger) *Server {
	return &Server{Logger: l, State: st, Trigger: tr, Started: time.Now()}
}

// Router wires the routes. Reads need a public or admin key, poll triggers
// an admin key; each group has its own per-IP rate limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.AccessLog(s.Logger))
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/snapshot", s.handleSnapshot)
		r.Get("/api/targets/{id}", s.handleTarget)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(adminRPM, adminBurst))
		r.Use(apimw.RequireAdmin(keys))
		r.Post("/api/poll", s.handlePollAll)
		r.Post("/api/poll/{id}", s.handlePoll)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"targets": s.State.Count(),
		"uptime":  time.Since(s.Started).Round(time.Second).String(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State.Snapshot())
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	e, ok := s.State.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handlePollAll(w http.ResponseWriter, r *http.Request) {
	s.poll(w, "", s.Trigger.ForcePollAll())
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	s.poll(w, id, s.Trigger.ForcePoll(id))
}

func (s *Server) poll(w http.ResponseWriter, id domain.TargetID, err error) {
	switch {
	case err == nil:
		s.Logger.Info("force_poll", zap.String("target_id", string(id)))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
	case errors.Is(err, scheduler.ErrUnknownTarget):
		writeError(w, http.StatusNotFound, "unknown target")
	case errors.Is(err, scheduler.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, "poller not running")
	default:
		s.Logger.Warn("force_poll_error", zap.String("target_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "poll failed")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
