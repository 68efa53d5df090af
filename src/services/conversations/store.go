package conversations

import (
	"context"
	"sync"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

// Store is the keyed conversation-state store: one state per user id. The
// backend (memory, Redis, database) is swappable without touching the state
// machine; the manager layers per-user locking on top, so implementations
// only need to be safe for concurrent use across different keys.
type Store interface {
	// Get returns the state for userID, or ErrStateNotFound.
	Get(ctx context.Context, userID string) (*models.ConversationState, error)
	// Set saves the state for userID, replacing any previous value.
	Set(ctx context.Context, userID string, state *models.ConversationState) error
	// Delete removes the state for userID. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, userID string) error
}

// MemoryStore keeps states in process memory. Used by tests and local
// development; production uses the Redis store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*models.ConversationState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*models.ConversationState)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[userID]
	if !ok {
		return nil, ErrStateNotFound
	}
	// Clone both ways so callers never alias the stored value.
	return st.Clone(), nil
}

func (s *MemoryStore) Set(ctx context.Context, userID string, state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

// Len reports the number of stored states, for tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// userLocks hands out one mutex per user id so operations for the same
// user serialize while different users never contend. There is no global
// lock around state operations themselves. Entries are reference-counted
// and dropped when the last holder releases, so the map does not grow with
// every user id ever seen.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (u *userLocks) lock(userID string) *userLock {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &userLock{}
		u.locks[userID] = l
	}
	l.refs++
	u.mu.Unlock()
	l.mu.Lock()
	return l
}

func (u *userLocks) unlock(userID string, l *userLock) {
	l.mu.Unlock()
	u.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(u.locks, userID)
	}
	u.mu.Unlock()
}

// len reports the number of live lock entries, for tests.
func (u *userLocks) len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.locks)
}
