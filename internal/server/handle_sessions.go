package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/photohunt/internal/engine"
	"github.com/playperu/photohunt/internal/geo"
)

type ScenarioSessionResponse struct {
	Session        *engine.SessionView `json:"session"`
	CompletedCount int                 `json:"completedCount"`
}

// ClickRequest carries the player's location. Omit both fields when the
// device could not provide one.
type ClickRequest struct {
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

func (req ClickRequest) point() *geo.Point {
	if req.Lat == nil || req.Lng == nil {
		return nil
	}
	return &geo.Point{Lat: *req.Lat, Lng: *req.Lng}
}

type CompleteRequest struct {
	Photo string `json:"photo"`
}

// handleScenarioSession tells the UI whether to resume or start fresh.
func handleScenarioSession(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := userFrom(r)
		scenarioID := chi.URLParam(r, "scenarioID")

		completed, err := eng.CountCompleted(ctx, userID, scenarioID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		resp := ScenarioSessionResponse{CompletedCount: completed}

		sess, ok, err := eng.FindInProgress(ctx, userID, scenarioID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		if ok {
			view, err := eng.Materialize(ctx, sess)
			if err != nil {
				writeDomainError(w, logger, err)
				return
			}
			resp.Session = &view
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCreateSession(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := eng.CreateSession(r.Context(), userFrom(r), chi.URLParam(r, "scenarioID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		view, err := eng.Materialize(r.Context(), sess)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func handleGetSession(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := eng.View(r.Context(), userFrom(r), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleClickTask(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClickRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		click, err := eng.ClickTask(r.Context(), userFrom(r),
			chi.URLParam(r, "sessionID"), chi.URLParam(r, "taskID"), req.point())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, click)
	}
}

func handleCompleteTask(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompleteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, err := eng.CompleteTask(r.Context(), userFrom(r),
			chi.URLParam(r, "sessionID"), chi.URLParam(r, "taskID"), req.Photo)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		view, err := eng.Materialize(r.Context(), sess)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleRecordHint(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := eng.RecordHint(r.Context(), userFrom(r), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}
