// Package store persists game sessions with optimistic concurrency.
//
// Every implementation follows the same discipline: read the latest
// document, apply a pure mutator to a copy, and commit only if the stored
// version is still the one that was read. Callers retry on ErrConflict.
package store

import (
	"context"
	"errors"

	"github.com/playperu/photohunt/internal/hunt"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("active session already exists")
	ErrConflict      = errors.New("session changed concurrently")
	// ErrIntegrity means storage holds more than one in-progress session
	// for the same user and scenario.
	ErrIntegrity = errors.New("multiple active sessions")
)

// Mutator edits a private copy of a session. Returning an error aborts the
// update without writing anything; the error is handed back unchanged.
type Mutator func(s *hunt.GameSession) error

type Store interface {
	Get(ctx context.Context, id string) (hunt.GameSession, error)
	// FindActive returns the in-progress session of the user for the
	// scenario. ok is false when there is none.
	FindActive(ctx context.Context, userID, scenarioID string) (sess hunt.GameSession, ok bool, err error)
	// Create stores a new session. It fails with ErrAlreadyExists when the
	// user already has an active session for the scenario.
	Create(ctx context.Context, sess hunt.GameSession) (hunt.GameSession, error)
	AtomicUpdate(ctx context.Context, id string, fn Mutator) (hunt.GameSession, error)
	CountCompleted(ctx context.Context, userID, scenarioID string) (int, error)
}

// apply runs fn on a copy of cur and stamps the next version. Identity fields
// are pinned so a mutator cannot move a session to another owner or scenario.
func apply(cur hunt.GameSession, fn Mutator) (hunt.GameSession, error) {
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return hunt.GameSession{}, err
	}
	next.ID = cur.ID
	next.UserID = cur.UserID
	next.ScenarioID = cur.ScenarioID
	next.Version = cur.Version + 1
	return next, nil
}

// becameCompleted reports whether an update finished the session.
func becameCompleted(prev, next hunt.GameSession) bool {
	return prev.Status != hunt.SessionCompleted && next.Status == hunt.SessionCompleted
}
