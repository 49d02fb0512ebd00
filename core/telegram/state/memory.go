package state

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type session struct {
	step State
	temp map[string]string
}

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*session
	bound    map[State]tele.HandlerFunc
}

// NewMemoryManager returns a process-local Manager. Conversations are lost on
// restart.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*session),
		bound:    make(map[State]tele.HandlerFunc),
	}
}

func (m *memoryManager) Handle(st State, h tele.HandlerFunc) {
	if h == nil || st == Idle {
		return
	}
	m.mu.Lock()
	m.bound[st] = h
	m.mu.Unlock()
}

// sessionLocked returns the user's session, creating it. m.mu must be held.
func (m *memoryManager) sessionLocked(userID int64) *session {
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{temp: make(map[string]string)}
		m.sessions[userID] = s
	}
	return s
}

func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == Idle {
		if s, ok := m.sessions[userID]; ok {
			s.step = Idle
		}
		return
	}
	m.sessionLocked(userID).step = st
}

func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[userID]; ok {
		return s.step
	}
	return Idle
}

func (m *memoryManager) InProgress(userID int64) bool {
	return m.GetState(userID) != Idle
}

func (m *memoryManager) SetTemp(userID int64, key, value string) {
	m.mu.Lock()
	m.sessionLocked(userID).temp[key] = value
	m.mu.Unlock()
}

func (m *memoryManager) GetTemp(userID int64, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return "", false
	}
	v, ok := s.temp[key]
	return v, ok
}

// GetTempString is GetTemp that also treats an empty value as missing.
func (m *memoryManager) GetTempString(userID int64, key string) (string, bool) {
	v, ok := m.GetTemp(userID, key)
	return v, ok && v != ""
}

func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

func (m *memoryManager) ManagerHandler(c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return nil
	}
	step := m.GetState(u.ID)

	m.mu.RLock()
	h, ok := m.bound[step]
	m.mu.RUnlock()

	logger.Debug(tghelpers.Ctx(c), logger.ComponentTG, "fsm.dispatch",
		slog.String("state", string(step)),
		slog.Bool("bound", ok),
	)
	if !ok {
		return nil
	}
	return h(c)
}
