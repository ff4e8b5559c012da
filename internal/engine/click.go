package engine

import (
	"context"
	"fmt"

	"github.com/playperu/photohunt/internal/geo"
	"github.com/playperu/photohunt/internal/hunt"
)

type Outcome string

const (
	// NotActionable: the task is still locked.
	NotActionable Outcome = "not_actionable"
	// ReadOnly: the task or its session is already done.
	ReadOnly Outcome = "read_only"
	Eligible Outcome = "eligible"
)

type Click struct {
	Outcome  Outcome `json:"outcome"`
	Distance float64 `json:"distance,omitempty"`
}

// EvaluateTaskClick decides whether the player may start the photo flow for
// task. It never writes. current is nil when the location is unknown.
func (e *Engine) EvaluateTaskClick(sess hunt.GameSession, task hunt.Task, current *geo.Point) (Click, error) {
	if sess.Completed() {
		return Click{Outcome: ReadOnly}, nil
	}
	switch task.Status {
	case hunt.TaskLocked:
		return Click{Outcome: NotActionable}, nil
	case hunt.TaskCompleted:
		return Click{Outcome: ReadOnly}, nil
	}

	if current == nil {
		return Click{}, ErrLocationUnavailable
	}
	target := geo.Point{Lat: task.Location.Lat, Lng: task.Location.Lng}
	d := geo.Between(*current, target)
	if !geo.WithinRange(*current, target, e.maxMeters) {
		return Click{}, &TooFarError{Distance: d, Max: e.maxMeters}
	}
	return Click{Outcome: Eligible, Distance: d}, nil
}

// ClickTask loads the session and evaluates a click on one of its tasks.
func (e *Engine) ClickTask(ctx context.Context, userID, sessionID, taskID string, current *geo.Point) (Click, error) {
	view, err := e.View(ctx, userID, sessionID)
	if err != nil {
		return Click{}, err
	}
	task, ok := hunt.FindTask(view.Tasks, taskID)
	if !ok {
		return Click{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	return e.EvaluateTaskClick(view.Session, task, current)
}
