package audit

import (
	"context"
	"sync"

	"github.com/kochj23/SceneFixer/internal/health"
)

// MemoryRepository keeps the repair log in process memory. It backs the
// service when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	actions []health.RepairAction
}

// NewMemoryRepository creates an empty in-memory repair log.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create appends a repair action. ID and Timestamp are generated if empty.
func (r *MemoryRepository) Create(_ context.Context, action *health.RepairAction) error {
	prepare(action)
	r.mu.Lock()
	r.actions = append(r.actions, *action)
	r.mu.Unlock()
	return nil
}

// List returns repair actions matching the filter, most recent first.
func (r *MemoryRepository) List(_ context.Context, filter Filter) (*ListResult, error) {
	filter = clamp(filter)

	r.mu.RLock()
	var matched []health.RepairAction
	for i := len(r.actions) - 1; i >= 0; i-- {
		a := r.actions[i]
		if filter.SceneID != "" && a.SceneID != filter.SceneID {
			continue
		}
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		matched = append(matched, a)
	}
	r.mu.RUnlock()

	page := []health.RepairAction{}
	if filter.Offset < len(matched) {
		end := min(filter.Offset+filter.Limit, len(matched))
		page = append(page, matched[filter.Offset:end]...)
	}
	return &ListResult{
		Actions: page,
		Total:   len(matched),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
