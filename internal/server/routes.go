package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("PhotoHunt API", "/openapi.json", "/docs"))

	r.Route("/api/scenarios", func(r chi.Router) {
		r.Get("/", handleListScenarios(logger, deps.Scenarios))
		r.Get("/{scenarioID}", handleGetScenario(logger, deps.Scenarios))

		if deps.AdminToken != "" {
			r.With(adminTokenMiddleware(deps.AdminToken)).
				Put("/{scenarioID}", handlePutScenario(logger, deps.Scenarios))
		}

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/{scenarioID}/session", handleScenarioSession(logger, deps.Engine))
			r.Post("/{scenarioID}/sessions", handleCreateSession(logger, deps.Engine))
		})
	})

	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Use(requireUser)
		r.Get("/", handleGetSession(logger, deps.Engine))
		r.Post("/tasks/{taskID}/click", handleClickTask(logger, deps.Engine))
		r.Post("/tasks/{taskID}/complete", handleCompleteTask(logger, deps.Engine))
		r.Post("/hints", handleRecordHint(logger, deps.Engine))
		r.Get("/events", handleEvents(logger, deps.Engine, deps.Broker))
	})
}
