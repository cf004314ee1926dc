package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/acastellana/clawcondos/internal/board"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
)

// UpdateTaskParams describes a task status transition, optionally combined
// with a goal status change in the same call.
type UpdateTaskParams struct {
	SessionKey string
	GoalID     string // optional, defaults to the session's own goal
	TaskID     string
	Status     string
	Summary    *string
	GoalStatus string // optional: "active" or "done"
}

// ResultMeta carries machine-readable completion flags for event routing.
type ResultMeta struct {
	TaskCompleted bool `json:"task_completed"`
	GoalCompleted bool `json:"goal_completed"`
}

// UpdateTaskResult reports the concrete actions taken.
type UpdateTaskResult struct {
	Summary []string   `json:"summary"`
	Meta    ResultMeta `json:"_meta"`
}

// UpdateTask applies a status transition to one task and, when requested, a
// goal status change in the same call. All gating runs before any mutation:
// a rejected multi-part call applies neither part.
func (e *Engine) UpdateTask(p UpdateTaskParams) (res *UpdateTaskResult, err error) {
	start := time.Now()
	defer func() { e.observe(opUpdateTask, start, err) }()

	if p.TaskID == "" {
		return nil, apperrors.NewValidation("task_id", "is required")
	}
	if p.Status == "" {
		return nil, apperrors.NewValidation("status", "is required")
	}
	switch p.GoalStatus {
	case "", board.GoalActive, board.GoalDone:
	default:
		return nil, apperrors.NewValidation("goal_status", fmt.Sprintf("unrecognized value %q", p.GoalStatus))
	}

	res = &UpdateTaskResult{}
	err = e.store.Update(func(b *board.Board) error {
		r, err := resolveGoal(b, p.SessionKey, p.GoalID, opUpdateTask)
		if err != nil {
			return err
		}
		goal := r.goal
		task := goal.FindTask(p.TaskID)
		if task == nil {
			return apperrors.NewNotFound("task", p.TaskID)
		}

		if p.GoalStatus == board.GoalDone {
			except := ""
			if p.Status == board.TaskDone {
				except = task.ID
			}
			if pending := goal.PendingTasks(except); pending > 0 {
				return apperrors.NewPendingTasks(pending)
			}
		}

		applyTaskStatus(goal, task, p.Status, p.Summary)
		res.Summary = append(res.Summary, fmt.Sprintf("task %s → %s", task.ID, p.Status))
		res.Meta.TaskCompleted = task.Done

		if p.GoalStatus != "" {
			applyGoalStatus(goal, p.GoalStatus)
			res.Summary = append(res.Summary, fmt.Sprintf("goal → %s", p.GoalStatus))
			res.Meta.GoalCompleted = goal.Completed
			e.refreshGoalGauge(b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("task_id", p.TaskID).Str("status", p.Status).Msg("task updated")
	return res, nil
}

// applyTaskStatus performs the single-task transition: status, derived done
// flag and stage, optional summary, timestamps, and the owning goal's
// nextTask hint.
func applyTaskStatus(goal *board.Goal, task *board.Task, status string, summary *string) {
	now := nowMs()
	task.Status = status
	task.Done = status == board.TaskDone
	task.Stage = board.StageFor(status)
	if summary != nil {
		task.Summary = *summary
	}
	task.UpdatedAtMs = now
	goal.UpdatedAtMs = now

	switch status {
	case board.TaskInProgress:
		text := task.Text
		goal.NextTask = &text
	case board.TaskDone:
		goal.NextTask = nil
	}
}

// TaskSpec is one draft task for AddTasks.
type TaskSpec struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// AddTasksParams creates a batch of tasks on a goal.
type AddTasksParams struct {
	SessionKey string
	GoalID     string // optional; allowed to name a sibling goal
	Specs      []TaskSpec
}

// AddTasksResult lists the created task ids in input order.
type AddTasksResult struct {
	CreatedIDs []string `json:"created_ids"`
	Summary    string   `json:"summary"`
}

// AddTasks creates tasks from the specs, trimming text and silently skipping
// blank entries. This is one of the two operations permitted on a sibling
// goal.
func (e *Engine) AddTasks(p AddTasksParams) (res *AddTasksResult, err error) {
	start := time.Now()
	defer func() { e.observe(opAddTasks, start, err) }()

	res = &AddTasksResult{}
	err = e.store.Update(func(b *board.Board) error {
		r, err := resolveGoal(b, p.SessionKey, p.GoalID, opAddTasks)
		if err != nil {
			return err
		}
		goal := r.goal

		now := nowMs()
		for _, spec := range p.Specs {
			text := strings.TrimSpace(spec.Text)
			if text == "" {
				continue
			}
			task := &board.Task{
				ID:          e.store.NewID("task"),
				Text:        text,
				Description: spec.Description,
				Status:      board.TaskPending,
				Stage:       board.StageBacklog,
				CreatedAtMs: now,
				UpdatedAtMs: now,
			}
			goal.Tasks = append(goal.Tasks, task)
			res.CreatedIDs = append(res.CreatedIDs, task.ID)
		}
		if len(res.CreatedIDs) > 0 {
			goal.UpdatedAtMs = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	noun := "tasks"
	if len(res.CreatedIDs) == 1 {
		noun = "task"
	}
	res.Summary = fmt.Sprintf("%d %s added", len(res.CreatedIDs), noun)
	return res, nil
}
