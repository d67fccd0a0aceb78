// Package httpapi exposes the dispatcher over HTTP.
//
// Every command is reachable as /api/<command>/<path...>; see
// payloadFromPath for how the path becomes a payload. Successful commands
// answer 202 with {"payload": ...}, faults 400 with {"message": ...} and
// anything else 500.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/showrunner/internal/dispatch"
	"github.com/roach88/showrunner/internal/eventstore"
	"github.com/roach88/showrunner/internal/fault"
)

const commandTimeout = 5 * time.Second

// Runtime is the engine surface the adapter needs. Implemented by
// *engine.Engine.
type Runtime interface {
	Dispatch(ctx context.Context, name string, payload any, source dispatch.Source) (dispatch.Result, error)
	Poll() *eventstore.Snapshot
}

// Handler serves the HTTP API.
type Handler struct {
	rt  Runtime
	log *slog.Logger
}

// NewHandler creates a handler dispatching to rt.
func NewHandler(rt Runtime, log *slog.Logger) *Handler {
	return &Handler{rt: rt, log: log}
}

// Routes mounts the API. metrics and ws are optional.
func (h *Handler) Routes(metrics, ws http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.log))

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	if ws != nil {
		r.Method(http.MethodGet, "/ws", ws)
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Health)
		r.HandleFunc("/poll", h.Poll)
		r.HandleFunc("/{command}", h.Command)
		r.HandleFunc("/{command}/*", h.Command)
	})
	return r
}

// Health handles GET /api/.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "You have reached the showrunner API"})
}

// Poll handles /api/poll without going through the command queue.
func (h *Handler) Poll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusAccepted, dispatch.Result{Payload: h.rt.Poll()})
}

// Command handles /api/{command}/*.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	payload := payloadFromPath(chi.URLParam(r, "*"), r.URL.Query())

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	res, err := h.rt.Dispatch(ctx, name, payload, dispatch.SourceHTTP)
	if err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) && fe.Code != fault.CodeInternal {
			h.log.Debug("command rejected",
				slog.String("command", name),
				slog.String("code", string(fe.Code)),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		h.log.Error("command failed",
			slog.String("command", name),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
