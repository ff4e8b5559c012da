package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/photohunt/internal/engine"
	"github.com/playperu/photohunt/internal/hunt"
	"github.com/playperu/photohunt/internal/scenario"
)

// HealthResponse documents the /healthz body.
type HealthResponse struct {
	Status string                       `json:"status"`
	Checks map[string]map[string]string `json:"checks"`
}

type scenarioPath struct {
	UserID     string `header:"X-User-ID" required:"true" description:"Authenticated player id."`
	ScenarioID string `path:"scenarioID"`
}

type sessionPath struct {
	UserID    string `header:"X-User-ID" required:"true" description:"Authenticated player id."`
	SessionID string `path:"sessionID"`
}

type clickInput struct {
	UserID    string   `header:"X-User-ID" required:"true" description:"Authenticated player id."`
	SessionID string   `path:"sessionID"`
	TaskID    string   `path:"taskID" example:"task-1"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

type completeInput struct {
	UserID    string `header:"X-User-ID" required:"true" description:"Authenticated player id."`
	SessionID string `path:"sessionID"`
	TaskID    string `path:"taskID" example:"task-1"`
	Photo     string `json:"photo" required:"true" description:"Opaque photo reference, such as a data URI or storage URL."`
}

type putScenarioInput struct {
	Authorization string          `header:"Authorization" required:"true" description:"Bearer admin token."`
	ScenarioID    string          `path:"scenarioID"`
	Name          string          `json:"name"`
	City          string          `json:"city"`
	Description   string          `json:"description"`
	Locations     []hunt.Location `json:"locations"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "PhotoHunt API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Location-gated photo scavenger hunt sessions.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/scenarios
	listScenarios, _ := r.NewOperationContext(http.MethodGet, "/api/scenarios")
	listScenarios.SetSummary("List scenarios")
	listScenarios.SetDescription("Returns all scenarios with location counts.")
	listScenarios.AddRespStructure([]scenario.Summary{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listScenarios)

	// GET /api/scenarios/{scenarioID}
	getScenario, _ := r.NewOperationContext(http.MethodGet, "/api/scenarios/{scenarioID}")
	getScenario.SetSummary("Get scenario")
	getScenario.SetDescription("Returns a scenario with its ordered locations.")
	getScenario.AddReqStructure(struct {
		ScenarioID string `path:"scenarioID"`
	}{})
	getScenario.AddRespStructure(hunt.Scenario{}, openapi.WithHTTPStatus(http.StatusOK))
	getScenario.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getScenario)

	// PUT /api/scenarios/{scenarioID}
	putScenario, _ := r.NewOperationContext(http.MethodPut, "/api/scenarios/{scenarioID}")
	putScenario.SetSummary("Save scenario")
	putScenario.SetDescription("Creates or replaces a scenario. Only available when an admin token is configured.")
	putScenario.AddReqStructure(putScenarioInput{})
	putScenario.AddRespStructure(hunt.Scenario{}, openapi.WithHTTPStatus(http.StatusOK))
	putScenario.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	putScenario.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(putScenario)

	// GET /api/scenarios/{scenarioID}/session
	getScenarioSession, _ := r.NewOperationContext(http.MethodGet, "/api/scenarios/{scenarioID}/session")
	getScenarioSession.SetSummary("Find session")
	getScenarioSession.SetDescription("Returns the player's in-progress session for the scenario, if any, and how many runs they completed.")
	getScenarioSession.AddReqStructure(scenarioPath{})
	getScenarioSession.AddRespStructure(ScenarioSessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getScenarioSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getScenarioSession)

	// POST /api/scenarios/{scenarioID}/sessions
	createSession, _ := r.NewOperationContext(http.MethodPost, "/api/scenarios/{scenarioID}/sessions")
	createSession.SetSummary("Start session")
	createSession.SetDescription("Starts a new run of the scenario. Fails while another run is in progress.")
	createSession.AddReqStructure(scenarioPath{})
	createSession.AddRespStructure(engine.SessionView{}, openapi.WithHTTPStatus(http.StatusCreated))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(createSession)

	// GET /api/sessions/{sessionID}
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}")
	getSession.SetSummary("Get session")
	getSession.SetDescription("Returns the session with its tasks in scenario order.")
	getSession.AddReqStructure(sessionPath{})
	getSession.AddRespStructure(engine.SessionView{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getSession)

	// POST /api/sessions/{sessionID}/tasks/{taskID}/click
	click, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/tasks/{taskID}/click")
	click.SetSummary("Evaluate task click")
	click.SetDescription("Checks whether the player may photograph the task from where they stand. Never changes the session.")
	click.AddReqStructure(clickInput{})
	click.AddRespStructure(engine.Click{}, openapi.WithHTTPStatus(http.StatusOK))
	click.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	click.AddRespStructure(TooFarResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	_ = r.AddOperation(click)

	// POST /api/sessions/{sessionID}/tasks/{taskID}/complete
	complete, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/tasks/{taskID}/complete")
	complete.SetSummary("Complete task")
	complete.SetDescription("Attaches the photo to an unlocked task and unlocks the next one. Repeating a completion is a no-op.")
	complete.AddReqStructure(completeInput{})
	complete.AddRespStructure(engine.SessionView{}, openapi.WithHTTPStatus(http.StatusOK))
	complete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	complete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(complete)

	// POST /api/sessions/{sessionID}/hints
	hint, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/hints")
	hint.SetSummary("Use hint")
	hint.SetDescription("Counts a hint against the final score.")
	hint.AddReqStructure(sessionPath{})
	hint.AddRespStructure(hunt.GameSession{}, openapi.WithHTTPStatus(http.StatusOK))
	hint.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(hint)

	// GET /api/sessions/{sessionID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of task and session completions.")
	getEvents.AddReqStructure(sessionPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /ws/sessions/{sessionID}
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws/sessions/{sessionID}")
	getWS.SetSummary("WebSocket event feed")
	getWS.SetDescription("Upgrades to a WebSocket that streams the same events as the SSE endpoint. Pass the player id as the user query parameter.")
	getWS.AddReqStructure(struct {
		SessionID string `path:"sessionID"`
		User      string `query:"user"`
	}{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
