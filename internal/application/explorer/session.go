package explorer

import (
	"sync"
	"time"

	"github.com/ryanyen2/Scholet/internal/domain/instruction"
	"github.com/ryanyen2/Scholet/internal/domain/selection"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
)

// Session is one user's view of the map: its selection state, the messages
// applied to it and its default level. mu serializes writers so messages are
// applied strictly in arrival order.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	state      *selection.State
	controller *instruction.Controller
	messages   []instruction.Message
	seen       map[int64]struct{}
	level      int
	lastActive time.Time
}

func newSession(id string, level int, now time.Time, log logging.Logger) *Session {
	st := selection.NewState()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		state:      st,
		controller: instruction.NewController(st, log.With(logging.SessionID(id))),
		seen:       make(map[int64]struct{}),
		level:      level,
		lastActive: now,
	}
}

// SessionInfo is the read model of a Session.
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
	DefaultLevel int       `json:"default_level"`
	Messages     int       `json:"messages"`
	Entries      int       `json:"entries"`
	Revision     uint64    `json:"revision"`
}

func (s *Session) info() *SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastActive:   s.lastActive,
		DefaultLevel: s.level,
		Messages:     len(s.messages),
		Entries:      s.state.Len(),
		Revision:     s.state.Revision(),
	}
}

func (s *Session) defaultLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
