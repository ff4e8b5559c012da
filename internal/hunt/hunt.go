// Package hunt defines the core domain types of the photo hunt game and the
// pure functions over them. It has zero external dependencies.
package hunt

import (
	"maps"
	"time"
)

type Scenario struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	City        string     `json:"city"`
	Description string     `json:"description"`
	Locations   []Location `json:"locations"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Location is one stop of a scenario. Title and Description describe the
// task players see there; Title defaults to Name.
type Location struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
}

type TaskStatus string

const (
	TaskLocked    TaskStatus = "locked"
	TaskUnlocked  TaskStatus = "unlocked"
	TaskCompleted TaskStatus = "completed"
)

// TaskState is the mutable part of a task, stored on the session.
type TaskState struct {
	Status      TaskStatus `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Photo       string     `json:"photo,omitempty"`
}

// Task joins a scenario location with its session state.
type Task struct {
	ID          string     `json:"id"`
	Index       int        `json:"index"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    Location   `json:"location"`
	Status      TaskStatus `json:"status"`
	Photo       string     `json:"photo,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

type GameSession struct {
	ID               string               `json:"id"`
	UserID           string               `json:"userId"`
	ScenarioID       string               `json:"scenarioId"`
	Status           SessionStatus        `json:"status"`
	StartTime        time.Time            `json:"startTime"`
	EndTime          *time.Time           `json:"endTime,omitempty"`
	LastUpdated      time.Time            `json:"lastUpdated"`
	CurrentTaskIndex int                  `json:"currentTaskIndex"`
	Tasks            map[string]TaskState `json:"tasks"`
	Score            int                  `json:"score"`
	PlayCount        int                  `json:"playCount"`
	HintsUsed        int                  `json:"hintsUsed"`
	Version          int64                `json:"version"`
}

// Clone returns a copy that shares no mutable state with s.
func (s GameSession) Clone() GameSession {
	c := s
	c.Tasks = maps.Clone(s.Tasks)
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return c
}

// AllTasksCompleted reports whether every task of the session is completed.
func (s GameSession) AllTasksCompleted() bool {
	if len(s.Tasks) == 0 {
		return false
	}
	for _, t := range s.Tasks {
		if t.Status != TaskCompleted {
			return false
		}
	}
	return true
}

func (s GameSession) Completed() bool {
	return s.Status == SessionCompleted
}
