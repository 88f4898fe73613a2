package explorer

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

var (
	ErrSessionNotFound = errors.New(errors.ErrCodeSessionNotFound, "session not found")
	ErrSessionLimit    = errors.New(errors.ErrCodeSessionLimit, "too many live sessions")
)

// Registry holds the live sessions keyed by UUID. max <= 0 means unbounded.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
	now      func() time.Time
	logger   logging.Logger
}

func NewRegistry(max int, log logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		max:      max,
		now:      time.Now,
		logger:   log,
	}
}

// Create opens a session whose default level is level.
func (r *Registry) Create(level int) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return nil, ErrSessionLimit.WithDetail("max=" + strconv.Itoa(r.max))
	}
	s := newSession(uuid.NewString(), level, r.now(), r.logger)
	r.sessions[s.ID] = s
	return s, nil
}

// Get returns the session and marks it active.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound.WithDetail(id)
	}
	s.touch(r.now())
	return s, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound.WithDetail(id)
	}
	s.state.Reset()
	delete(r.sessions, id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the live session IDs in sorted order.
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

// Sweep ends sessions idle for longer than ttl and returns their IDs.
func (r *Registry) Sweep(ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	var ended []string
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			s.state.Reset()
			delete(r.sessions, id)
			ended = append(ended, id)
		}
	}
	sort.Strings(ended)
	return ended
}
