package plan

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrNoPlan = errors.New("no active plan")

type Task struct {
	Description string `json:"desc"`
	Status      string `json:"status"`
}

type State struct {
	Goal        string `json:"goal"`
	Tasks       []Task `json:"tasks"`
	CurrentStep int    `json:"current_step"`
}

// Tracker holds the step-by-step plan the agent keeps for one session.
type Tracker struct {
	mu    sync.Mutex
	state State
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Set replaces any existing plan and activates the first task.
func (t *Tracker) Set(goal string, tasks []string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Goal: goal, Tasks: make([]Task, 0, len(tasks))}
	for _, desc := range tasks {
		t.state.Tasks = append(t.state.Tasks, Task{Description: desc, Status: StatusPending})
	}
	if len(t.state.Tasks) > 0 {
		t.state.Tasks[0].Status = StatusActive
	}
	return t.snapshot()
}

// Update sets the status of one task. Completing the current task activates
// the next one; the returned flag reports that advance.
func (t *Tracker) Update(index int, status string) (State, bool, error) {
	if !validStatus(status) {
		return State{}, false, fmt.Errorf("invalid status %q: expected active, completed, failed or pending", status)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tasks := t.state.Tasks
	if len(tasks) == 0 {
		return State{}, false, ErrNoPlan
	}
	if index < 0 || index >= len(tasks) {
		return t.snapshot(), false, fmt.Errorf("step index %d out of range (0-%d)", index, len(tasks)-1)
	}
	tasks[index].Status = status

	advanced := false
	current := t.state.CurrentStep
	if status == StatusCompleted && index == current && current+1 < len(tasks) {
		t.state.CurrentStep = current + 1
		tasks[current+1].Status = StatusActive
		advanced = true
	}
	return t.snapshot(), advanced, nil
}

// Current returns the plan, or false when none has been set.
func (t *Tracker) Current() (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Goal == "" {
		return State{}, false
	}
	return t.snapshot(), true
}

// Render formats the plan as a checklist for the model.
func Render(state State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GOAL: %s", state.Goal)
	for i, task := range state.Tasks {
		fmt.Fprintf(&b, "\n%d. %s %s", i, mark(task.Status), task.Description)
	}
	return b.String()
}

func (t *Tracker) snapshot() State {
	out := t.state
	out.Tasks = append([]Task(nil), t.state.Tasks...)
	return out
}

func mark(status string) string {
	switch status {
	case StatusPending:
		return "[ ]"
	case StatusActive:
		return "[>]"
	case StatusCompleted:
		return "[x]"
	case StatusFailed:
		return "[!]"
	default:
		return "[?]"
	}
}

func validStatus(status string) bool {
	switch status {
	case StatusPending, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
