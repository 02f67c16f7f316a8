// Package api serves the read-only status surface of the bridge.
package api

import (
	"github.com/gorilla/mux"

	"github.com/itohio/gomppt/pkg/monitor"
	"github.com/itohio/gomppt/pkg/telemetry"
)

// Source provides the monitored stream.
type Source interface {
	Snapshots() []telemetry.Snapshot
	Events() []monitor.Event
	Stats() (monitor.Stats, bool)
}

// Rezeroer forwards the re-zero command to the controller.
type Rezeroer interface {
	Rezero() error
}

// NewRouter creates the API router. A nil rezeroer disables POST /api/rezero.
func NewRouter(src Source, rz Rezeroer) *mux.Router {
	h := &handler{src: src, rz: rz}
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/api/status", h.status).Methods("GET")
	r.HandleFunc("/api/history", h.history).Methods("GET")
	r.HandleFunc("/api/events", h.events).Methods("GET")
	r.HandleFunc("/api/rezero", h.rezero).Methods("POST")

	return r
}
