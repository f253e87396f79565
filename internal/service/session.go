package service

import (
	"sync"

	"github.com/google/uuid"

	"github.com/IlyaZolotarev/wordcard/internal/model"
)

// Session tracks whether the engine currently acts for an authenticated
// user. With no session every data operation targets the device store;
// after login everything targets the remote backend. There is at most one
// session per engine process.
type Session struct {
	mu     sync.RWMutex
	userID uuid.UUID
	active bool
}

func NewSession() *Session {
	return &Session{}
}

// Set switches the engine to remote mode for the given user.
func (s *Session) Set(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.active = true
}

// Clear drops the session; subsequent operations run in local mode.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = uuid.Nil
	s.active = false
}

// Current returns the authenticated user ID, or ok=false in local mode.
func (s *Session) Current() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.active
}

// Mode derives the storage mode from the session state.
func (s *Session) Mode() model.StorageMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active {
		return model.ModeRemote
	}
	return model.ModeLocal
}
