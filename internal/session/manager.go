package session

import (
	"log/slog"
	"sync"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const subscriberBuffer = 4

// Manager holds the terminal's current session and fans out changes to
// subscribers. Slow subscribers miss intermediate events but always receive
// the latest one.
type Manager struct {
	logger *slog.Logger

	mu      sync.RWMutex
	current *domain.Session
	subs    map[int]chan domain.SessionEvent
	nextID  int
}

var _ domain.SessionProvider = (*Manager)(nil)

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger.With("component", "session"),
		subs:   make(map[int]chan domain.SessionEvent),
	}
}

// Current returns the active session, if any.
func (m *Manager) Current() (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return domain.Session{}, false
	}
	return *m.current, true
}

// Login replaces the active session.
func (m *Manager) Login(s domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	m.logger.Info("session started", "business_id", s.BusinessID, "user_id", s.UserID)
	m.broadcastLocked(domain.SessionEvent{Current: &s})
}

// Logout clears the active session.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.logger.Info("session ended", "business_id", m.current.BusinessID)
	m.current = nil
	m.broadcastLocked(domain.SessionEvent{})
}

func (m *Manager) Subscribe() (<-chan domain.SessionEvent, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan domain.SessionEvent, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (m *Manager) broadcastLocked(ev domain.SessionEvent) {
	for _, ch := range m.subs {
		for {
			select {
			case ch <- ev:
			default:
				// Drop the oldest pending event to make room.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}
