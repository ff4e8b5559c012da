package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/playperu/photohunt/internal/engine"
	"github.com/playperu/photohunt/internal/hunt"
	"github.com/playperu/photohunt/internal/scenario"
	"github.com/playperu/photohunt/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TooFarResponse is returned when the player is outside the gating radius.
type TooFarResponse struct {
	Error    string  `json:"error"`
	Distance float64 `json:"distance"`
	Max      float64 `json:"max"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v. An empty body leaves v untouched.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps engine and store failures to HTTP responses.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var tooFar *engine.TooFarError
	switch {
	case errors.As(err, &tooFar):
		writeJSON(w, http.StatusUnprocessableEntity, TooFarResponse{
			Error:    err.Error(),
			Distance: tooFar.Distance,
			Max:      tooFar.Max,
		})
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, scenario.ErrNotFound),
		errors.Is(err, engine.ErrScenarioNotFound),
		errors.Is(err, engine.ErrUnknownTask):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, scenario.ErrNameTaken),
		errors.Is(err, scenario.ErrStopsFrozen),
		errors.Is(err, engine.ErrOutOfOrder),
		errors.Is(err, engine.ErrSessionAlreadyCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrLocationUnavailable),
		errors.Is(err, engine.ErrPhotoRequired),
		errors.Is(err, hunt.ErrInvalidScenario):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrConcurrencyExhausted):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
