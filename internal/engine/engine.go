// Package engine runs the photo hunt state machine: it starts sessions,
// gates task clicks on distance, and applies task completions through the
// store's optimistic concurrency.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/photohunt/internal/events"
	"github.com/playperu/photohunt/internal/geo"
	"github.com/playperu/photohunt/internal/hunt"
	"github.com/playperu/photohunt/internal/scenario"
	"github.com/playperu/photohunt/internal/store"
)

const DefaultMaxAttempts = 3

// Notifier receives events after their update has committed.
type Notifier interface {
	Publish(sessionID string, ev events.Event)
}

type Engine struct {
	store       store.Store
	scenarios   scenario.Source
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
	maxMeters   float64
	maxAttempts int
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithMaxDistance sets the click gating radius in meters.
func WithMaxDistance(meters float64) Option {
	return func(e *Engine) {
		if meters > 0 {
			e.maxMeters = meters
		}
	}
}

// WithMaxAttempts bounds how often a conflicting update is retried.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func New(st store.Store, scenarios scenario.Source, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		scenarios:   scenarios,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       uuid.NewString,
		maxMeters:   geo.DefaultMaxMeters,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SessionView is a session with its tasks materialized against the scenario.
type SessionView struct {
	Session hunt.GameSession `json:"session"`
	Tasks   []hunt.Task      `json:"tasks"`
}

func (e *Engine) clock() time.Time {
	return e.now().UTC().Round(0)
}

func (e *Engine) scenario(ctx context.Context, id string) (hunt.Scenario, error) {
	sc, err := e.scenarios.Scenario(ctx, id)
	if errors.Is(err, scenario.ErrNotFound) {
		return hunt.Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	return sc, err
}

// CreateSession starts a new run of the scenario for the user. It fails with
// ErrAlreadyExists while the user has another run of it in progress.
func (e *Engine) CreateSession(ctx context.Context, userID, scenarioID string) (hunt.GameSession, error) {
	sc, err := e.scenario(ctx, scenarioID)
	if err != nil {
		return hunt.GameSession{}, err
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if _, ok, err := e.store.FindActive(ctx, userID, scenarioID); err != nil {
			return hunt.GameSession{}, err
		} else if ok {
			return hunt.GameSession{}, ErrAlreadyExists
		}

		completed, err := e.store.CountCompleted(ctx, userID, scenarioID)
		if err != nil {
			return hunt.GameSession{}, err
		}

		now := e.clock()
		sess, err := e.store.Create(ctx, hunt.GameSession{
			ID:          e.newID(),
			UserID:      userID,
			ScenarioID:  scenarioID,
			Status:      hunt.SessionInProgress,
			StartTime:   now,
			LastUpdated: now,
			Tasks:       hunt.DeriveInitialTasks(sc),
			PlayCount:   completed + 1,
		})
		if errors.Is(err, store.ErrConflict) {
			e.logger.Warn("session create conflict", "user_id", userID, "scenario_id", scenarioID, "attempt", attempt)
			continue
		}
		if err != nil {
			return hunt.GameSession{}, err
		}

		e.logger.Info("session created",
			"session_id", sess.ID,
			"user_id", userID,
			"scenario_id", scenarioID,
			"play_count", sess.PlayCount,
		)
		return sess, nil
	}
	return hunt.GameSession{}, fmt.Errorf("%w: creating session after %d attempts", ErrConcurrencyExhausted, e.maxAttempts)
}

// errNoop aborts an update that would not change anything.
var errNoop = errors.New("no change")

// update runs fn through AtomicUpdate, retrying lost races on a fresh read.
// A mutator returning errNoop leaves the store untouched and the snapshot it
// saw is returned with false.
func (e *Engine) update(ctx context.Context, sessionID string, fn func(s *hunt.GameSession, now time.Time) error) (hunt.GameSession, bool, error) {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		var seen hunt.GameSession
		now := e.clock()
		next, err := e.store.AtomicUpdate(ctx, sessionID, func(s *hunt.GameSession) error {
			err := fn(s, now)
			if errors.Is(err, errNoop) {
				seen = s.Clone()
			}
			return err
		})
		switch {
		case err == nil:
			return next, true, nil
		case errors.Is(err, errNoop):
			return seen, false, nil
		case errors.Is(err, store.ErrConflict):
			e.logger.Warn("session update conflict", "session_id", sessionID, "attempt", attempt)
		default:
			return hunt.GameSession{}, false, err
		}
	}
	return hunt.GameSession{}, false, fmt.Errorf("%w: session %s after %d attempts", ErrConcurrencyExhausted, sessionID, e.maxAttempts)
}

// CompleteTask records the photo for an unlocked task and advances the
// frontier. Completing an already completed task of a running session
// returns the session unchanged.
func (e *Engine) CompleteTask(ctx context.Context, userID, sessionID, taskID, photo string) (hunt.GameSession, error) {
	if photo == "" {
		return hunt.GameSession{}, ErrPhotoRequired
	}

	sess, changed, err := e.update(ctx, sessionID, func(s *hunt.GameSession, now time.Time) error {
		return completeTask(s, userID, taskID, photo, now)
	})
	if err != nil {
		return hunt.GameSession{}, err
	}
	if !changed {
		return sess, nil
	}

	idx, _ := hunt.TaskIndex(taskID)
	e.logger.Info("task completed",
		"session_id", sessionID,
		"task_id", taskID,
		"current_task_index", sess.CurrentTaskIndex,
	)
	e.publish(sessionID, events.Event{
		Type:      events.TaskCompleted,
		SessionID: sessionID,
		TaskID:    taskID,
		TaskIndex: idx,
		At:        sess.LastUpdated,
	})
	if sess.Completed() {
		e.logger.Info("session completed", "session_id", sessionID, "score", sess.Score)
		e.publish(sessionID, events.Event{
			Type:      events.SessionCompleted,
			SessionID: sessionID,
			Score:     sess.Score,
			At:        *sess.EndTime,
		})
	}
	return sess, nil
}

func completeTask(s *hunt.GameSession, userID, taskID, photo string, now time.Time) error {
	if s.UserID != userID {
		return ErrNotOwner
	}
	if s.Completed() {
		return ErrSessionAlreadyCompleted
	}
	idx, ok := hunt.TaskIndex(taskID)
	st, exists := s.Tasks[taskID]
	if !ok || !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	switch {
	case st.Status == hunt.TaskCompleted:
		return errNoop
	case st.Status != hunt.TaskUnlocked, idx > s.CurrentTaskIndex+1:
		return fmt.Errorf("%w: %s", ErrOutOfOrder, taskID)
	}

	s.Tasks[taskID] = hunt.TaskState{
		Status:      hunt.TaskCompleted,
		CompletedAt: &now,
		Photo:       photo,
	}
	s.CurrentTaskIndex = max(s.CurrentTaskIndex, idx)
	if nextID := hunt.TaskID(idx + 1); s.Tasks[nextID].Status == hunt.TaskLocked {
		s.Tasks[nextID] = hunt.TaskState{Status: hunt.TaskUnlocked}
	}
	s.LastUpdated = now

	if s.AllTasksCompleted() {
		end := now
		s.Status = hunt.SessionCompleted
		s.EndTime = &end
		s.Score = hunt.ComputeScore(*s)
	}
	return nil
}

// RecordHint counts a hint against the session score.
func (e *Engine) RecordHint(ctx context.Context, userID, sessionID string) (hunt.GameSession, error) {
	sess, _, err := e.update(ctx, sessionID, func(s *hunt.GameSession, now time.Time) error {
		if s.UserID != userID {
			return ErrNotOwner
		}
		if s.Completed() {
			return ErrSessionAlreadyCompleted
		}
		s.HintsUsed++
		s.LastUpdated = now
		return nil
	})
	if err != nil {
		return hunt.GameSession{}, err
	}

	e.publish(sessionID, events.Event{
		Type:      events.HintUsed,
		SessionID: sessionID,
		HintsUsed: sess.HintsUsed,
		At:        sess.LastUpdated,
	})
	return sess, nil
}

// Session returns a session owned by userID.
func (e *Engine) Session(ctx context.Context, userID, sessionID string) (hunt.GameSession, error) {
	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return hunt.GameSession{}, err
	}
	if sess.UserID != userID {
		return hunt.GameSession{}, ErrNotOwner
	}
	return sess, nil
}

// View returns the session with its tasks in scenario order.
func (e *Engine) View(ctx context.Context, userID, sessionID string) (SessionView, error) {
	sess, err := e.Session(ctx, userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return e.Materialize(ctx, sess)
}

// Materialize joins an already loaded session with its scenario.
func (e *Engine) Materialize(ctx context.Context, sess hunt.GameSession) (SessionView, error) {
	sc, err := e.scenario(ctx, sess.ScenarioID)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{Session: sess, Tasks: hunt.MaterializeTasks(sc, sess.Tasks)}, nil
}

func (e *Engine) FindInProgress(ctx context.Context, userID, scenarioID string) (hunt.GameSession, bool, error) {
	return e.store.FindActive(ctx, userID, scenarioID)
}

func (e *Engine) CountCompleted(ctx context.Context, userID, scenarioID string) (int, error) {
	return e.store.CountCompleted(ctx, userID, scenarioID)
}

func (e *Engine) publish(sessionID string, ev events.Event) {
	if e.notifier != nil {
		e.notifier.Publish(sessionID, ev)
	}
}
