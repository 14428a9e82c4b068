package devicesession

import (
	"sort"
	"sync"
	"time"

	"github.com/homehub/devicehub/pkg/log"
)

// Registry is the process-wide device_id → Session map. It enforces
// at-most-one live session per id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   log.Logger
}

// NewRegistry creates an empty Registry. logger may be nil.
func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds s under its device id if no session is already registered
// for that id. If one exists, the incumbent survives and s is disconnected
// instead. Returns true iff s was registered.
func (r *Registry) Register(s *Session) bool {
	id := s.DeviceID()

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		r.logEvent(id, "", "REJECTED_DUPLICATE", "a session is already registered for this device id")
		s.Disconnect()
		return false
	}
	r.sessions[id] = s
	r.mu.Unlock()

	r.logEvent(id, "", "REGISTERED", "")
	return true
}

// Unregister removes s, but only if it is still the entry on file for its
// id — safe to call under a race with a disconnect that already happened.
func (r *Registry) Unregister(s *Session) {
	id := s.DeviceID()

	r.mu.Lock()
	existing, ok := r.sessions[id]
	if !ok || existing != s {
		r.mu.Unlock()
		r.logEvent(id, "REGISTERED", "", "no matching session found to unregister")
		return
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	r.logEvent(id, "REGISTERED", "UNREGISTERED", "")
}

// IsRegistered reports whether a session is currently registered for id.
func (r *Registry) IsRegistered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Get returns the session registered for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// IDs returns every currently registered device id, sorted for a stable
// roster ordering.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) logEvent(deviceID, oldState, newState, reason string) {
	if r.logger == nil {
		return
	}
	r.logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  deviceID,
		Category:  log.CategoryState,
		State: &log.StateEvent{
			Entity:   "device-registry",
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
