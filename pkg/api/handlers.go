package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/itohio/gomppt/pkg/monitor"
	"github.com/itohio/gomppt/pkg/telemetry"
)

// DefaultHistoryPoints bounds /api/history when points is not given.
const DefaultHistoryPoints = 200

type handler struct {
	src Source
	rz  Rezeroer
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// status returns the latest snapshot with stream statistics.
func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	st, ok := h.src.Stats()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no telemetry received yet")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// history returns the snapshot window decimated to ?points=N.
func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	points := DefaultHistoryPoints
	if v := r.URL.Query().Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "points must be a positive integer")
			return
		}
		points = n
	}

	out := monitor.Downsample([]telemetry.Snapshot{}, h.src.Snapshots(), points)
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) events(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Events())
}

func (h *handler) rezero(w http.ResponseWriter, _ *http.Request) {
	if h.rz == nil {
		writeError(w, http.StatusNotImplemented, "re-zero is not available")
		return
	}
	if err := h.rz.Rezero(); err != nil {
		log.Printf("Re-zero failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rezeroing"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
