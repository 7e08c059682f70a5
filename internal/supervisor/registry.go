package supervisor

import (
	"sync"

	"github.com/recordarr/recordarr/internal/models"
)

// Registry is the owned index of live supervisors, keyed by recording id.
// Registration enforces one supervisor per recording for the lifetime of the
// process.
type Registry struct {
	mu          sync.RWMutex
	supervisors map[models.ULID]*Supervisor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{supervisors: make(map[models.ULID]*Supervisor)}
}

// Register adds a supervisor. A second registration for the same recording
// returns models.ErrConflict.
func (r *Registry) Register(s *Supervisor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := s.ID()
	if _, exists := r.supervisors[id]; exists {
		return models.ErrConflict
	}
	r.supervisors[id] = s
	return nil
}

// Lookup returns the supervisor for a recording id.
func (r *Registry) Lookup(id models.ULID) (*Supervisor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.supervisors[id]
	return s, ok
}

// Remove drops the supervisor for a recording id, if any.
func (r *Registry) Remove(id models.ULID) {
	r.mu.Lock()
	delete(r.supervisors, id)
	r.mu.Unlock()
}

// Len reports the number of registered supervisors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.supervisors)
}
