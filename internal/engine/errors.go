package engine

import (
	"errors"
	"fmt"

	"github.com/playperu/photohunt/internal/store"
)

var (
	ErrScenarioNotFound        = errors.New("scenario not found")
	ErrSessionNotFound         = store.ErrNotFound
	ErrAlreadyExists           = store.ErrAlreadyExists
	ErrUnknownTask             = errors.New("unknown task")
	ErrOutOfOrder              = errors.New("task is not unlocked yet")
	ErrSessionAlreadyCompleted = errors.New("session already completed")
	ErrNotOwner                = errors.New("session belongs to another user")
	ErrLocationUnavailable     = errors.New("current location unavailable")
	ErrPhotoRequired           = errors.New("photo is required")
	// ErrConcurrencyExhausted is returned when every attempt of an update
	// lost a race. The caller may retry the whole operation.
	ErrConcurrencyExhausted = errors.New("too many concurrent updates")
)

// TooFarError is the gating failure of a task click. It carries the
// measured distance for user feedback.
type TooFarError struct {
	Distance float64
	Max      float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("too far from task location: %.0f m (max %.0f m)", e.Distance, e.Max)
}
