package store

import (
	"context"
	"sync"

	"github.com/playperu/photohunt/internal/hunt"
)

// MemoryStore keeps sessions in process memory. The lock only guards the
// map; mutators run outside it, so concurrent updates race exactly like they
// would against a remote store and lose with ErrConflict.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]hunt.GameSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]hunt.GameSession)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (hunt.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return hunt.GameSession{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) FindActive(_ context.Context, userID, scenarioID string) (hunt.GameSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findActiveLocked(userID, scenarioID)
}

func (m *MemoryStore) findActiveLocked(userID, scenarioID string) (hunt.GameSession, bool, error) {
	var found []hunt.GameSession
	for _, s := range m.sessions {
		if s.UserID == userID && s.ScenarioID == scenarioID && s.Status == hunt.SessionInProgress {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return hunt.GameSession{}, false, nil
	case 1:
		return found[0].Clone(), true, nil
	default:
		return hunt.GameSession{}, false, ErrIntegrity
	}
}

func (m *MemoryStore) Create(_ context.Context, sess hunt.GameSession) (hunt.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sess.ID]; ok {
		return hunt.GameSession{}, ErrAlreadyExists
	}
	if _, ok, err := m.findActiveLocked(sess.UserID, sess.ScenarioID); err != nil {
		return hunt.GameSession{}, err
	} else if ok {
		return hunt.GameSession{}, ErrAlreadyExists
	}

	sess = sess.Clone()
	sess.Version = 1
	m.sessions[sess.ID] = sess
	return sess.Clone(), nil
}

func (m *MemoryStore) AtomicUpdate(_ context.Context, id string, fn Mutator) (hunt.GameSession, error) {
	m.mu.RLock()
	cur, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return hunt.GameSession{}, ErrNotFound
	}

	next, err := apply(cur, fn)
	if err != nil {
		return hunt.GameSession{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[id]
	if !ok {
		return hunt.GameSession{}, ErrNotFound
	}
	if stored.Version != cur.Version {
		return hunt.GameSession{}, ErrConflict
	}
	m.sessions[id] = next
	return next.Clone(), nil
}

func (m *MemoryStore) CountCompleted(_ context.Context, userID, scenarioID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.sessions {
		if s.UserID == userID && s.ScenarioID == scenarioID && s.Status == hunt.SessionCompleted {
			count++
		}
	}
	return count, nil
}

var _ Store = (*MemoryStore)(nil)
