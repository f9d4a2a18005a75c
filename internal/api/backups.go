package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kochj23/SceneFixer/internal/audit"
	"github.com/kochj23/SceneFixer/internal/health"
)

// handleListBackups returns scene backups in the order they were taken.
//
// Query parameters:
//   - scene_id: only backups of one scene
func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	var backups []health.SceneBackup
	if sceneID := r.URL.Query().Get("scene_id"); sceneID != "" {
		backups = s.monitor.SceneBackups(sceneID)
	} else {
		backups = s.monitor.Backups()
	}
	if backups == nil {
		backups = []health.SceneBackup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": backups, "count": len(backups)})
}

// handleRestoreBackup attempts to restore a backup. Automatic restore is
// not supported, so a known backup answers with success false and the
// failure is recorded in the repair log.
func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.monitor.Restore(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backup_id": id, "success": ok})
}

// handleListRepairs returns the repair log, newest first.
//
// Query parameters:
//   - scene_id: filter by scene
//   - kind: filter by action kind (remove_device, full_restore, ...)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListRepairs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		SceneID: q.Get("scene_id"),
		Kind:    health.RepairKind(q.Get("kind")),
	}

	var err error
	if filter.Limit, err = queryInt(q, "limit", 1); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if filter.Offset, err = queryInt(q, "offset", 0); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.monitor.RepairHistory(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list repair actions", "error", err)
		writeInternalError(w, "failed to list repair actions")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
