package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/photohunt/internal/database"
	"github.com/playperu/photohunt/internal/engine"
	"github.com/playperu/photohunt/internal/events"
	"github.com/playperu/photohunt/internal/hunt"
	"github.com/playperu/photohunt/internal/migrations"
	"github.com/playperu/photohunt/internal/scenario"
	"github.com/playperu/photohunt/internal/store"
)

const adminToken = "s3cret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiFixture struct {
	handler http.Handler
	broker  *events.Broker
}

func setupAPI(t *testing.T) apiFixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(ctx, db))

	scenarios := scenario.NewDocStore(db)
	_, err = scenarios.SeedDemo(ctx)
	require.NoError(t, err)

	broker := events.NewBroker()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	eng := engine.New(store.NewDocStore(db), scenarios,
		engine.WithLogger(testLogger()),
		engine.WithNotifier(broker),
		engine.WithClock(func() time.Time { return start }),
	)

	h := NewHandler(testLogger(), Deps{
		Engine:     eng,
		Scenarios:  scenarios,
		Broker:     broker,
		AdminToken: adminToken,
	}, nil)
	return apiFixture{handler: h, broker: broker}
}

func (f apiFixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func ptr(f float64) *float64 { return &f }

// Plaza Mayor, the first stop of the demo route.
var plazaMayor = ClickRequest{Lat: ptr(-12.0464), Lng: ptr(-77.0300)}

func (f apiFixture) startSession(t *testing.T, user string) engine.SessionView {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/scenarios/lima-centro/sessions", user, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[engine.SessionView](t, rec)
}

func TestListScenarios(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/scenarios", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]scenario.Summary](t, rec)
	assert.Len(t, list, 2)

	rec = f.do(t, http.MethodGet, "/api/scenarios/lima-centro", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sc := decode[hunt.Scenario](t, rec)
	assert.Len(t, sc.Locations, 4)

	rec = f.do(t, http.MethodGet, "/api/scenarios/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRoutesRequireUser(t *testing.T) {
	f := setupAPI(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/scenarios/lima-centro/sessions"},
		{http.MethodGet, "/api/scenarios/lima-centro/session"},
		{http.MethodGet, "/api/sessions/abc"},
		{http.MethodPost, "/api/sessions/abc/tasks/task-1/complete"},
	} {
		rec := f.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestCreateAndResumeSession(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/scenarios/lima-centro/session", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	none := decode[ScenarioSessionResponse](t, rec)
	assert.Nil(t, none.Session)
	assert.Zero(t, none.CompletedCount)

	view := f.startSession(t, "u1")
	require.Len(t, view.Tasks, 4)
	assert.Equal(t, hunt.TaskUnlocked, view.Tasks[0].Status)
	assert.Equal(t, "The bronze fountain", view.Tasks[0].Title)
	assert.Equal(t, hunt.TaskLocked, view.Tasks[1].Status)
	assert.Equal(t, 1, view.Session.PlayCount)

	rec = f.do(t, http.MethodPost, "/api/scenarios/lima-centro/sessions", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/scenarios/lima-centro/session", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[ScenarioSessionResponse](t, rec)
	require.NotNil(t, found.Session)
	assert.Equal(t, view.Session.ID, found.Session.Session.ID)

	rec = f.do(t, http.MethodPost, "/api/scenarios/nope/sessions", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionChecksOwner(t *testing.T) {
	f := setupAPI(t)
	view := f.startSession(t, "u1")

	rec := f.do(t, http.MethodGet, "/api/sessions/"+view.Session.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[engine.SessionView](t, rec)
	assert.Equal(t, view.Session.ID, got.Session.ID)

	rec = f.do(t, http.MethodGet, "/api/sessions/"+view.Session.ID, "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/sessions/missing", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClickTask(t *testing.T) {
	f := setupAPI(t)
	view := f.startSession(t, "u1")
	base := "/api/sessions/" + view.Session.ID + "/tasks/"

	rec := f.do(t, http.MethodPost, base+"task-1/click", "u1", plazaMayor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, engine.Eligible, decode[engine.Click](t, rec).Outcome)

	// Miraflores is several kilometres south.
	rec = f.do(t, http.MethodPost, base+"task-1/click", "u1", ClickRequest{Lat: ptr(-12.1211), Lng: ptr(-77.0297)})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	tooFar := decode[TooFarResponse](t, rec)
	assert.Greater(t, tooFar.Distance, 8000.0)
	assert.Equal(t, 1000.0, tooFar.Max)

	rec = f.do(t, http.MethodPost, base+"task-1/click", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no location")

	rec = f.do(t, http.MethodPost, base+"task-2/click", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.NotActionable, decode[engine.Click](t, rec).Outcome)

	rec = f.do(t, http.MethodPost, base+"task-7/click", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayThroughScenario(t *testing.T) {
	f := setupAPI(t)
	view := f.startSession(t, "u1")
	base := "/api/sessions/" + view.Session.ID

	rec := f.do(t, http.MethodPost, base+"/tasks/task-2/complete", "u1", CompleteRequest{Photo: "p2"})
	assert.Equal(t, http.StatusConflict, rec.Code, "out of order")

	rec = f.do(t, http.MethodPost, base+"/tasks/task-1/complete", "u1", CompleteRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "photo required")

	rec = f.do(t, http.MethodPost, base+"/tasks/task-1/complete", "u2", CompleteRequest{Photo: "p1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/hints", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[hunt.GameSession](t, rec).HintsUsed)

	for i, id := range []string{"task-1", "task-2", "task-3", "task-4"} {
		rec = f.do(t, http.MethodPost, base+"/tasks/"+id+"/complete", "u1", CompleteRequest{Photo: "photo-" + id})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[engine.SessionView](t, rec)
		assert.Equal(t, hunt.TaskCompleted, got.Tasks[i].Status)
		if i+1 < len(got.Tasks) {
			assert.Equal(t, hunt.TaskUnlocked, got.Tasks[i+1].Status)
			assert.Equal(t, hunt.SessionInProgress, got.Session.Status)
		} else {
			assert.Equal(t, hunt.SessionCompleted, got.Session.Status)
			assert.Equal(t, 950, got.Session.Score)
		}
	}

	rec = f.do(t, http.MethodPost, base+"/tasks/task-4/complete", "u1", CompleteRequest{Photo: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code, "completed sessions are terminal")
	rec = f.do(t, http.MethodPost, base+"/hints", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/scenarios/lima-centro/session", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScenarioSessionResponse](t, rec)
	assert.Nil(t, resp.Session)
	assert.Equal(t, 1, resp.CompletedCount)

	next := f.startSession(t, "u1")
	assert.Equal(t, 2, next.Session.PlayCount)
}

func TestPutScenario(t *testing.T) {
	f := setupAPI(t)
	body := ScenarioRequest{
		Name:      "Miraflores",
		City:      "Lima",
		Locations: []hunt.Location{{Name: "Parque Kennedy", Lat: -12.1211, Lng: -77.0297}},
	}

	rec := f.do(t, http.MethodPut, "/api/scenarios/miraflores", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	put := func(v any) *httptest.ResponseRecorder {
		data, _ := json.Marshal(v)
		req := httptest.NewRequest(http.MethodPut, "/api/scenarios/miraflores", bytes.NewReader(data))
		req.Header.Set("Authorization", "Bearer "+adminToken)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec
	}

	rec = put(body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[hunt.Scenario](t, rec)
	assert.Equal(t, "miraflores", saved.ID)

	rec = put(ScenarioRequest{Name: "No stops"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	extended := body
	extended.Locations = append(slices.Clone(body.Locations), hunt.Location{Name: "Larcomar", Lat: -12.1318, Lng: -77.0305})
	rec = put(extended)
	assert.Equal(t, http.StatusConflict, rec.Code, "stops of an existing scenario are fixed")

	rec = f.do(t, http.MethodGet, "/api/scenarios", "", nil)
	assert.Len(t, decode[[]scenario.Summary](t, rec), 3)
}

func TestSessionEventStream(t *testing.T) {
	f := setupAPI(t)
	view := f.startSession(t, "u1")
	sessionID := view.Session.ID

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+sessionID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "u1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return f.broker.Subscribers(sessionID) == 1 },
		2*time.Second, 10*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/tasks/task-1/complete", "u1", CompleteRequest{Photo: "p1"})
	require.Equal(t, http.StatusOK, rec.Code)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		var ev events.Event
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		assert.Equal(t, events.TaskCompleted, ev.Type)
		assert.Equal(t, "task-1", ev.TaskID)
		return
	}
}

func TestEventStreamChecksOwner(t *testing.T) {
	f := setupAPI(t)
	view := f.startSession(t, "u1")

	rec := f.do(t, http.MethodGet, "/api/sessions/"+view.Session.ID+"/events", "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
