package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/atlasguess/atlasguess/internal/api/middleware"
	"github.com/atlasguess/atlasguess/internal/api/response"
	"github.com/atlasguess/atlasguess/internal/matchmaker"
	"github.com/atlasguess/atlasguess/internal/protocol"
	"github.com/atlasguess/atlasguess/internal/registry"
	"github.com/atlasguess/atlasguess/internal/session"
	"github.com/atlasguess/atlasguess/internal/transport/ws"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Logger      *slog.Logger
	Hub         *ws.Hub
	Registry    *registry.Registry
	Sessions    *session.Manager
	Matchmaker  *matchmaker.Matchmaker
	Maintenance *atomic.Bool
	AdminSecret string
}

// StatsResponse reports live server counters
type StatsResponse struct {
	Players     int  `json:"players"`
	Sessions    int  `json:"sessions"`
	Queue       int  `json:"queue"`
	Maintenance bool `json:"maintenance"`
}

// NewRouter creates the HTTP router: the websocket endpoint plus the
// health/stats/maintenance admin surface
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	r.HandleFunc("/ws", cfg.Hub.HandleWS).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, StatsResponse{
			Players:     cfg.Registry.Count(),
			Sessions:    cfg.Sessions.Count(),
			Queue:       cfg.Matchmaker.Len(),
			Maintenance: cfg.Maintenance.Load(),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/maintenance/{secret}/{state:on|off}", func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		if cfg.AdminSecret == "" ||
			subtle.ConstantTimeCompare([]byte(vars["secret"]), []byte(cfg.AdminSecret)) != 1 {
			response.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}

		on := vars["state"] == "on"
		cfg.Maintenance.Store(on)
		cfg.Hub.Broadcast(protocol.RestartQueued{Type: protocol.TypeRestartQueued, Value: on})

		cfg.Logger.Info("maintenance mode changed", slog.Bool("on", on))
		response.JSON(w, http.StatusOK, map[string]bool{"maintenance": on})
	}).Methods(http.MethodPost)

	return r
}
