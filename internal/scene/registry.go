package scene

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/platform"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the single-writer collection of scene health records.
//
// All public methods are thread-safe. Records leave the registry only as
// deep copies.
type Registry struct {
	scenes map[string]*health.Scene
	mu     sync.RWMutex
	logger Logger
}

// NewRegistry creates an empty scene registry.
func NewRegistry() *Registry {
	return &Registry{
		scenes: make(map[string]*health.Scene),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// FromInfo builds an unaudited scene record.
func FromInfo(info platform.SceneInfo) *health.Scene {
	return &health.Scene{
		ID:           info.ID,
		Name:         info.Name,
		ActionSetID:  info.ActionSetID,
		HealthStatus: health.SceneUnknown,
	}
}

// Sync reconciles the registry with the platform catalog and returns the
// number of scenes after sync. Known scenes keep their last audit.
func (r *Registry) Sync(infos []platform.SceneInfo) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*health.Scene, len(infos))
	for _, info := range infos {
		if old, ok := r.scenes[info.ID]; ok {
			old.Name = info.Name
			old.ActionSetID = info.ActionSetID
			next[info.ID] = old
			continue
		}
		next[info.ID] = FromInfo(info)
	}
	r.scenes = next

	r.logger.Info("scene registry synced", "count", len(next))
	return len(next)
}

// Get returns a deep copy of one scene.
func (r *Registry) Get(id string) (*health.Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scenes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	return s.DeepCopy(), nil
}

// List returns deep copies of every scene ordered by name then ID.
func (r *Registry) List() []*health.Scene {
	return r.filter(func(*health.Scene) bool { return true })
}

// ListByStatus returns scenes with the given health status.
func (r *Registry) ListByStatus(status health.SceneStatus) []*health.Scene {
	return r.filter(func(s *health.Scene) bool { return s.HealthStatus == status })
}

func (r *Registry) filter(keep func(*health.Scene) bool) []*health.Scene {
	r.mu.RLock()
	out := make([]*health.Scene, 0, len(r.scenes))
	for _, s := range r.scenes {
		if keep(s) {
			out = append(out, s.DeepCopy())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of scenes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scenes)
}

// Update applies fn to the stored record under the write lock and returns a
// copy of the result. fn must not retain the pointer.
func (r *Registry) Update(id string, fn func(s *health.Scene)) (*health.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scenes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	fn(s)
	return s.DeepCopy(), nil
}
