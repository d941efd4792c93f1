package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"obd-ecu-sim/vehicle"
)

const dashboardPushInterval = 200 * time.Millisecond

// Dashboard is C8 (SPEC_FULL.md §4.8): a read-only HTTP+WebSocket
// introspection surface for interactive use during development. Grounded
// on sagostin-goefidash's internal/server Server (WebSocket broadcast of
// periodic JSON frames) and anodyne74-iload-obd2's use of gorilla/mux for
// routing. It shares the store's snapshot accessor with C5/C7: no new
// locking is introduced, and it cannot inject CAN frames or mutate state.
type Dashboard struct {
	store    *vehicle.Store
	logger   *LeveledLogger
	srv      *http.Server
	upgrader websocket.Upgrader
}

// NewDashboard builds (but does not start) the HTTP server bound to addr.
func NewDashboard(addr string, store *vehicle.Store, logger *LeveledLogger) *Dashboard {
	d := &Dashboard{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/snapshot", d.handleSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/ws", d.handleWS)

	d.srv = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return d
}

// Run blocks serving HTTP until Shutdown is called. Intended to run in its
// own goroutine, started by the supervisor.
func (d *Dashboard) Run() {
	d.logger.Info("dashboard listening on %s", d.srv.Addr)
	if err := d.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		d.logger.Error("dashboard server error: %v", err)
	}
}

// Shutdown gracefully stops the HTTP server. Open WebSocket connections are
// hijacked and are not closed by it; their push loops end when a write fails.
func (d *Dashboard) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	if err := d.srv.Shutdown(ctx); err != nil {
		d.logger.Warn("dashboard shutdown error: %v", err)
	}
}

// handleSnapshot serves a single JSON snapshot (spec.md §6 Introspection).
func (d *Dashboard) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.store.Introspect()); err != nil {
		d.logger.Warn("dashboard snapshot encode error: %v", err)
	}
}

// handleWS upgrades to a WebSocket and pushes a JSON snapshot every 200ms
// until the client disconnects or the push fails.
func (d *Dashboard) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn("dashboard websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(dashboardPushInterval)
	defer ticker.Stop()

	for range ticker.C {
		data, err := json.Marshal(d.store.Introspect())
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
