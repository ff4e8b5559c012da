package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/photohunt/internal/hunt"
	"github.com/playperu/photohunt/internal/scenario"
)

// ScenarioCatalog reads and writes scenario definitions.
type ScenarioCatalog interface {
	Scenario(ctx context.Context, id string) (hunt.Scenario, error)
	List(ctx context.Context) ([]scenario.Summary, error)
	Put(ctx context.Context, sc hunt.Scenario) (hunt.Scenario, error)
}

type ScenarioRequest struct {
	Name        string          `json:"name"`
	City        string          `json:"city"`
	Description string          `json:"description"`
	Locations   []hunt.Location `json:"locations"`
}

func handleListScenarios(logger *slog.Logger, scenarios ScenarioCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := scenarios.List(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetScenario(logger *slog.Logger, scenarios ScenarioCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scenarios.Scenario(r.Context(), chi.URLParam(r, "scenarioID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sc)
	}
}

func handlePutScenario(logger *slog.Logger, scenarios ScenarioCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScenarioRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id := chi.URLParam(r, "scenarioID")
		sc := hunt.Scenario{
			ID:          id,
			Name:        req.Name,
			City:        req.City,
			Description: req.Description,
			Locations:   req.Locations,
		}
		if existing, err := scenarios.Scenario(r.Context(), id); err == nil {
			sc.CreatedAt = existing.CreatedAt
		}

		saved, err := scenarios.Put(r.Context(), sc)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		logger.Info("scenario saved", "scenario_id", saved.ID, "locations", len(saved.Locations))
		writeJSON(w, http.StatusOK, saved)
	}
}
