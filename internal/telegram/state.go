package telegram

import (
	"sync"

	"github.com/mediavault/tubefetch/internal/models"
	"github.com/mediavault/tubefetch/internal/service"
)

type SessionStage int

const (
	StageIdle SessionStage = iota
	StageAwaitingFormat
	StageAwaitingDelivery
	StageAwaitingProof
)

// Session is the per-chat scratch state between a URL arriving and the job
// being dispatched, or between package selection and proof submission.
type Session struct {
	Stage          SessionStage
	PendingURL     string
	Quote          *service.Quote
	Format         string
	Delivery       models.DeliveryChannel
	TopupPackage   string
	TopupRequestID int64
}

type StateManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewStateManager() *StateManager {
	return &StateManager{
		sessions: make(map[int64]*Session),
	}
}

func (m *StateManager) Get(chatID int64) *Session {
	m.mu.RLock()
	session, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return session
	}
	return &Session{Stage: StageIdle}
}

func (m *StateManager) Set(chatID int64, session *Session) {
	m.mu.Lock()
	m.sessions[chatID] = session
	m.mu.Unlock()
}

func (m *StateManager) Reset(chatID int64) {
	m.Set(chatID, &Session{Stage: StageIdle})
}
