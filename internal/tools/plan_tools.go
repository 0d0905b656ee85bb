package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"axiom/engine/internal/plan"
)

func (e *Env) tracker() (*plan.Tracker, error) {
	if e == nil || e.Plan == nil {
		return nil, errors.New("no plan tracker for this session")
	}
	return e.Plan, nil
}

type setPlan struct{}

func (setPlan) Name() string { return "set_plan" }

func (setPlan) Description() string {
	return "Create a new step-by-step plan, replacing any existing one. The first task becomes active."
}

func (setPlan) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"goal": {"type": "string", "description": "The high-level objective, e.g. 'Refactor auth.py'"},
			"tasks": {"type": "array", "items": {"type": "string"}, "description": "Ordered step-by-step instructions"}
		},
		"required": ["goal", "tasks"]
	}`)
}

func (setPlan) Invoke(_ context.Context, env *Env, args json.RawMessage) (Output, error) {
	var in struct {
		Goal  string   `json:"goal"`
		Tasks []string `json:"tasks"`
	}
	if err := bind(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Goal) == "" {
		return nil, &ArgumentError{Err: errors.New("goal is required")}
	}
	tr, err := env.tracker()
	if err != nil {
		return nil, err
	}
	state := tr.Set(in.Goal, in.Tasks)
	return Text(fmt.Sprintf("Plan initialized: '%s' with %d steps.\n%s", in.Goal, len(in.Tasks), plan.Render(state))), nil
}

type updateTaskStatus struct{}

func (updateTaskStatus) Name() string { return "update_task_status" }

func (updateTaskStatus) Description() string {
	return "Update the status of a plan task. Completing the active task activates the next one."
}

func (updateTaskStatus) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"step_index": {"type": "integer", "minimum": 0, "description": "Index of the task (0-based)"},
			"status": {"type": "string", "enum": ["active", "completed", "failed", "pending"]}
		},
		"required": ["step_index", "status"]
	}`)
}

func (updateTaskStatus) Invoke(_ context.Context, env *Env, args json.RawMessage) (Output, error) {
	var in struct {
		StepIndex int    `json:"step_index"`
		Status    string `json:"status"`
	}
	if err := bind(args, &in); err != nil {
		return nil, err
	}
	tr, err := env.tracker()
	if err != nil {
		return nil, err
	}
	state, advanced, err := tr.Update(in.StepIndex, in.Status)
	if errors.Is(err, plan.ErrNoPlan) {
		return nil, errors.New("No active plan. Use 'set_plan' first.")
	}
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Task %d updated to '%s'.", in.StepIndex, in.Status)
	if advanced {
		msg += fmt.Sprintf(" Auto-advanced to Task %d.", state.CurrentStep)
	}
	return Text(msg + "\n" + plan.Render(state)), nil
}

type getCurrentPlan struct{}

func (getCurrentPlan) Name() string { return "get_current_plan" }

func (getCurrentPlan) Description() string {
	return "Show the current plan and the status of each task. Use this to check your progress."
}

func (getCurrentPlan) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
}

func (getCurrentPlan) Invoke(_ context.Context, env *Env, _ json.RawMessage) (Output, error) {
	tr, err := env.tracker()
	if err != nil {
		return nil, err
	}
	state, ok := tr.Current()
	if !ok {
		return Text("(No active plan)"), nil
	}
	return Text(plan.Render(state)), nil
}
