package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kochj23/SceneFixer/internal/health"
)

// defaultHistoryLimit caps GET /devices/{id}/history when no limit is given.
const defaultHistoryLimit = 50

// handleListDevices returns all devices ordered by name.
//
// Query parameters:
//   - health: filter by health status (healthy, degraded, unreachable, unknown, testing)
//   - category: filter by category (light, outlet, lock, ...)
//   - history: "false" omits each device's test history
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := health.DeviceStatus(q.Get("health"))
	category := health.Category(q.Get("category"))
	withHistory := q.Get("history") != "false"

	devices := make([]*health.Device, 0)
	for _, d := range s.monitor.Devices() {
		if status != "" && d.HealthStatus != status {
			continue
		}
		if category != "" && d.Category != category {
			continue
		}
		if !withHistory {
			d.History = nil
		}
		devices = append(devices, d)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device with its full history.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.monitor.Device(chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDeviceHistory returns stored test results for a device, newest first.
//
// Query parameters:
//   - limit: max results (default 50)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit", 1)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	id := chi.URLParam(r, "id")
	results, err := s.monitor.DeviceHistory(r.Context(), id, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "results": results, "count": len(results)})
}

// handleProbeDevice runs a connectivity probe on one device.
func (s *Server) handleProbeDevice(w http.ResponseWriter, r *http.Request) {
	result, err := s.monitor.Probe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleToggleDevice runs a toggle test on one device. Locks and garage
// doors are refused with a "skipped: dangerous" result.
func (s *Server) handleToggleDevice(w http.ResponseWriter, r *http.Request) {
	result, err := s.monitor.ToggleProbe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleHealthCheck probes every device. The request blocks until the sweep
// finishes; progress is streamed on the sweep.progress channel. A sweep
// already running yields 409.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.clearWriteDeadline(w)
	results, err := s.monitor.RunFullHealthCheck(r.Context(), nil)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse(results))
}

// handleToggleAll toggle-tests every safe device with a power characteristic.
// At roughly a second per device this outlasts the server write timeout on
// large homes, so the deadline is lifted for the request.
func (s *Server) handleToggleAll(w http.ResponseWriter, r *http.Request) {
	s.clearWriteDeadline(w)
	results, err := s.monitor.ToggleAllSafe(r.Context(), nil)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse(results))
}

func sweepResponse(results []health.TestResult) map[string]any {
	if results == nil {
		results = []health.TestResult{}
	}
	passed := 0
	for _, r := range results {
		if r.Success {
			passed++
		}
	}
	return map[string]any{
		"results": results,
		"count":   len(results),
		"passed":  passed,
		"failed":  len(results) - passed,
	}
}

// clearWriteDeadline removes the server write timeout for a sweep request.
// The sweep still ends when the client goes away.
func (s *Server) clearWriteDeadline(w http.ResponseWriter) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clearing write deadline failed", "error", err)
	}
}
