package syncer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/videosync/internal/dedup"
	"github.com/your-org/videosync/internal/state"
)

// StatusHandler exposes the operational HTTP surface: liveness plus a status
// snapshot of subscription state and delivery counters.
type StatusHandler struct {
	tracker *state.Tracker
	guard   *dedup.Guard
	engine  *Engine
	logger  *zap.Logger
	router  chi.Router
}

func NewStatusHandler(tracker *state.Tracker, guard *dedup.Guard, engine *Engine, logger *zap.Logger) *StatusHandler {
	h := &StatusHandler{
		tracker: tracker,
		guard:   guard,
		engine:  engine,
		logger:  logger,
	}
	h.buildRouter()
	return h
}

func (h *StatusHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Get("/statusz", h.handleStatus)

	h.router = r
}

// Router exposes the configured chi router.
func (h *StatusHandler) Router() http.Handler {
	return h.router
}

func (h *StatusHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *StatusHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	subs := map[string]bool{}
	for category, enabled := range h.tracker.Snapshot() {
		subs[string(category)] = enabled
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions":     subs,
		"delivered_entries": h.guard.Len(),
		"in_flight_uploads": h.engine.InFlight(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
