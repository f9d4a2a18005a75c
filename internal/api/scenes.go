package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kochj23/SceneFixer/internal/auditor"
	"github.com/kochj23/SceneFixer/internal/health"
)

// sceneView adds the derived health percentage to a scene record.
type sceneView struct {
	*health.Scene
	HealthPercentage float64 `json:"health_percentage"`
}

func viewScene(s *health.Scene) sceneView {
	return sceneView{Scene: s, HealthPercentage: s.HealthPercentage()}
}

// repairRequest is the optional body of POST /scenes/{id}/repair.
type repairRequest struct {
	RemoveUnreachable *bool `json:"remove_unreachable"`
}

// handleListScenes returns all scenes ordered by name.
//
// Query parameters:
//   - status: filter by health status (healthy, degraded, broken, unknown)
func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	var scenes []*health.Scene
	if status := r.URL.Query().Get("status"); status != "" {
		scenes = s.monitor.ScenesByStatus(health.SceneStatus(status))
	} else {
		scenes = s.monitor.Scenes()
	}

	views := make([]sceneView, 0, len(scenes))
	for _, sc := range scenes {
		views = append(views, viewScene(sc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": views, "count": len(views)})
}

// handleGetScene returns a single scene.
func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	sc, err := s.monitor.Scene(chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewScene(sc))
}

// handleAuditScene audits one scene against fresh device reachability.
func (s *Server) handleAuditScene(w http.ResponseWriter, r *http.Request) {
	result, err := s.monitor.AuditScene(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAuditAll audits every scene. A sweep already running yields 409.
func (s *Server) handleAuditAll(w http.ResponseWriter, r *http.Request) {
	s.clearWriteDeadline(w)
	results, err := s.monitor.AuditAll(r.Context(), nil)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if results == nil {
		results = []auditor.AuditResult{}
	}

	counts := map[health.SceneStatus]int{}
	for _, res := range results {
		counts[res.Status]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
		"summary": counts,
	})
}

// handleTestScene executes a scene on the platform.
func (s *Server) handleTestScene(w http.ResponseWriter, r *http.Request) {
	result, err := s.monitor.TestScene(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRepairScene backs up a scene and removes its unreachable devices.
//
// remove_unreachable may be given in a JSON body or as a query parameter.
// It defaults to true; false only takes the backup.
func (s *Server) handleRepairScene(w http.ResponseWriter, r *http.Request) {
	remove := true

	var req repairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RemoveUnreachable != nil {
		remove = *req.RemoveUnreachable
	}
	if v := r.URL.Query().Get("remove_unreachable"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "remove_unreachable must be a boolean")
			return
		}
		remove = b
	}

	id := chi.URLParam(r, "id")
	ok, err := s.monitor.Repair(r.Context(), id, remove)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := map[string]any{"scene_id": id, "success": ok}
	if sc, err := s.monitor.Scene(id); err == nil {
		resp["scene"] = viewScene(sc)
	}
	writeJSON(w, http.StatusOK, resp)
}
