package hunt

import (
	"strconv"
	"strings"
)

const taskIDPrefix = "task-"

// TaskID returns the id of the task at the 0-based position index.
func TaskID(index int) string {
	return taskIDPrefix + strconv.Itoa(index+1)
}

// TaskIndex parses a task id back into its 0-based position.
func TaskIndex(id string) (int, bool) {
	n, found := strings.CutPrefix(id, taskIDPrefix)
	if !found {
		return 0, false
	}
	i, err := strconv.Atoi(n)
	if err != nil || i < 1 || strconv.Itoa(i) != n {
		return 0, false
	}
	return i - 1, true
}

// DeriveInitialTasks builds the task state of a fresh session: the first
// task unlocked, the rest locked.
func DeriveInitialTasks(sc Scenario) map[string]TaskState {
	tasks := make(map[string]TaskState, len(sc.Locations))
	for i := range sc.Locations {
		status := TaskLocked
		if i == 0 {
			status = TaskUnlocked
		}
		tasks[TaskID(i)] = TaskState{Status: status}
	}
	return tasks
}

// MaterializeTasks joins the scenario locations with the session task state,
// in scenario order. Locations without state are reported as locked.
func MaterializeTasks(sc Scenario, state map[string]TaskState) []Task {
	tasks := make([]Task, 0, len(sc.Locations))
	for i, loc := range sc.Locations {
		id := TaskID(i)
		st, ok := state[id]
		if !ok {
			st.Status = TaskLocked
		}

		title := loc.Title
		if title == "" {
			title = loc.Name
		}
		tasks = append(tasks, Task{
			ID:          id,
			Index:       i,
			Title:       title,
			Description: loc.Description,
			Location:    loc,
			Status:      st.Status,
			Photo:       st.Photo,
			CompletedAt: st.CompletedAt,
		})
	}
	return tasks
}

// FindTask returns the materialized task with the given id.
func FindTask(tasks []Task, id string) (Task, bool) {
	i, ok := TaskIndex(id)
	if !ok || i >= len(tasks) {
		return Task{}, false
	}
	return tasks[i], true
}
