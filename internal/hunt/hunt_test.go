package hunt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limaScenario() Scenario {
	return Scenario{
		ID:   "lima",
		Name: "Lima Centro Historico",
		City: "Lima",
		Locations: []Location{
			{Name: "Plaza Mayor", Address: "Jr. Junin", Lat: -12.0464, Lng: -77.0300, Description: "Photograph the bronze fountain."},
			{Name: "Iglesia de San Francisco", Title: "The yellow church", Lat: -12.0463, Lng: -77.0275},
			{Name: "Parque de la Muralla", Lat: -12.0450, Lng: -77.0260},
		},
	}
}

func TestTaskIDRoundTrip(t *testing.T) {
	for i := 0; i < 12; i++ {
		idx, ok := TaskIndex(TaskID(i))
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
	assert.Equal(t, "task-1", TaskID(0))

	for _, bad := range []string{"", "task-", "task-0", "task--1", "task-01", "stage-1", "task-x"} {
		_, ok := TaskIndex(bad)
		assert.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestDeriveInitialTasks(t *testing.T) {
	sc := limaScenario()
	sc.Locations = sc.Locations[:2]

	tasks := DeriveInitialTasks(sc)

	assert.Equal(t, map[string]TaskState{
		"task-1": {Status: TaskUnlocked},
		"task-2": {Status: TaskLocked},
	}, tasks)
}

func TestMaterializeTasks(t *testing.T) {
	sc := limaScenario()
	done := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	state := map[string]TaskState{
		"task-1": {Status: TaskCompleted, CompletedAt: &done, Photo: "gs://photos/1.jpg"},
		"task-2": {Status: TaskUnlocked},
	}

	tasks := MaterializeTasks(sc, state)
	require.Len(t, tasks, 3)

	assert.Equal(t, "task-1", tasks[0].ID)
	assert.Equal(t, "Plaza Mayor", tasks[0].Title, "title defaults to location name")
	assert.Equal(t, "Photograph the bronze fountain.", tasks[0].Description)
	assert.Equal(t, TaskCompleted, tasks[0].Status)
	assert.Equal(t, "gs://photos/1.jpg", tasks[0].Photo)
	assert.Equal(t, &done, tasks[0].CompletedAt)

	assert.Equal(t, "The yellow church", tasks[1].Title)
	assert.Equal(t, TaskUnlocked, tasks[1].Status)

	assert.Equal(t, TaskLocked, tasks[2].Status, "missing state reads as locked")
	assert.Equal(t, 2, tasks[2].Index)

	got, ok := FindTask(tasks, "task-2")
	require.True(t, ok)
	assert.Equal(t, "Iglesia de San Francisco", got.Location.Name)
	_, ok = FindTask(tasks, "task-4")
	assert.False(t, ok)
}

func TestComputeScore(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(42*time.Minute + 59*time.Second)

	tests := []struct {
		name string
		sess GameSession
		want int
	}{
		{"no end time", GameSession{StartTime: start}, 1000},
		{"floors minutes", GameSession{StartTime: start, EndTime: &end}, 1042},
		{"hint penalty", GameSession{StartTime: start, EndTime: &end, HintsUsed: 3}, 892},
		{"never negative", GameSession{StartTime: start, EndTime: &end, HintsUsed: 100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeScore(tt.sess))
			assert.Equal(t, tt.want, ComputeScore(tt.sess), "score must be deterministic")
		})
	}
}

func TestCloneIsolatesTasks(t *testing.T) {
	end := time.Now()
	s := GameSession{Tasks: DeriveInitialTasks(limaScenario()), EndTime: &end}
	c := s.Clone()
	c.Tasks["task-1"] = TaskState{Status: TaskCompleted}
	*c.EndTime = end.Add(time.Hour)

	assert.Equal(t, TaskUnlocked, s.Tasks["task-1"].Status)
	assert.Equal(t, end, *s.EndTime)
}

func TestAllTasksCompleted(t *testing.T) {
	s := GameSession{Tasks: map[string]TaskState{
		"task-1": {Status: TaskCompleted},
		"task-2": {Status: TaskUnlocked},
	}}
	assert.False(t, s.AllTasksCompleted())

	s.Tasks["task-2"] = TaskState{Status: TaskCompleted}
	assert.True(t, s.AllTasksCompleted())

	assert.False(t, GameSession{}.AllTasksCompleted())
}

func TestNormalize(t *testing.T) {
	sc := limaScenario()
	sc.Name = "  Lima  "
	require.NoError(t, sc.Normalize())
	assert.Equal(t, "Lima", sc.Name)

	tests := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"missing name", func(s *Scenario) { s.Name = " " }},
		{"no locations", func(s *Scenario) { s.Locations = nil }},
		{"unnamed location", func(s *Scenario) { s.Locations[1].Name = "" }},
		{"latitude", func(s *Scenario) { s.Locations[0].Lat = 91 }},
		{"longitude", func(s *Scenario) { s.Locations[2].Lng = -181 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := limaScenario()
			tt.mutate(&sc)
			err := sc.Normalize()
			assert.True(t, errors.Is(err, ErrInvalidScenario), "got %v", err)
		})
	}
}
