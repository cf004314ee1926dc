package engine

import (
	"fmt"
	"time"

	"github.com/acastellana/clawcondos/internal/board"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
	"github.com/acastellana/clawcondos/internal/planfile"
	"github.com/acastellana/clawcondos/internal/planlog"
)

// planTarget locates a task (and its goal) for a plan operation. Plan
// operations are never cross-goal.
func planTarget(b *board.Board, sessionKey, goalID, taskID, op string) (*board.Goal, *board.Task, error) {
	if taskID == "" {
		return nil, nil, apperrors.NewValidation("task_id", "is required")
	}
	r, err := resolveGoal(b, sessionKey, goalID, op)
	if err != nil {
		return nil, nil, err
	}
	task := r.goal.FindTask(taskID)
	if task == nil {
		return nil, nil, apperrors.NewNotFound("task", taskID)
	}
	return r.goal, task, nil
}

// SyncPlanParams ingests a plan file into a task's plan.
type SyncPlanParams struct {
	SessionKey string
	GoalID     string
	TaskID     string
	Path       string
}

// SyncPlanFromFile reads the plan document and merges its step outline into
// the task's plan. A task without a plan gets one; a plan still in none is
// promoted to draft (file sync alone never reaches awaiting_approval). Steps
// are replaced by the parsed list, but a new step whose title matches an
// existing one keeps that step's status and timestamps, so re-syncing an
// edited file does not discard progress.
func (e *Engine) SyncPlanFromFile(p SyncPlanParams) (plan *board.Plan, err error) {
	start := time.Now()
	defer func() { e.observe(opSyncPlan, start, err) }()

	doc, err := e.readPlan(p.Path)
	if err != nil {
		return nil, err
	}

	err = e.store.Update(func(b *board.Board) error {
		_, task, err := planTarget(b, p.SessionKey, p.GoalID, p.TaskID, opSyncPlan)
		if err != nil {
			return err
		}

		if task.Plan == nil {
			task.Plan = &board.Plan{Status: board.PlanNone}
		}
		plan = task.Plan
		if plan.Status == board.PlanNone {
			plan.Status = board.PlanDraft
		}

		plan.Steps = mergeSteps(plan.Steps, doc.Steps)
		plan.FilePath = doc.FilePath
		plan.Content = doc.Content
		board.RecomputePlanStatus(plan)

		now := nowMs()
		plan.UpdatedAtMs = now
		task.UpdatedAtMs = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("task_id", p.TaskID).Str("path", p.Path).
		Int("steps", len(plan.Steps)).Msg("plan synced from file")
	return plan, nil
}

// mergeSteps builds the new ordered step list from the parsed document,
// carrying over status and timestamps from any existing step with the same
// title (merge-by-title, not by index).
func mergeSteps(existing []board.PlanStep, parsedSteps []planfile.Step) []board.PlanStep {
	byTitle := make(map[string]*board.PlanStep, len(existing))
	for i := range existing {
		byTitle[existing[i].Title] = &existing[i]
	}

	out := make([]board.PlanStep, 0, len(parsedSteps))
	for i, parsed := range parsedSteps {
		step := board.PlanStep{
			Index:       i,
			Title:       parsed.Title,
			Description: parsed.Description,
			Status:      board.StepPending,
		}
		if old, ok := byTitle[parsed.Title]; ok {
			step.Status = old.Status
			step.StartedAtMs = old.StartedAtMs
			step.CompletedAtMs = old.CompletedAtMs
		}
		out = append(out, step)
	}
	return out
}

// SetPlanStatusParams sets the plan lifecycle status directly.
type SetPlanStatusParams struct {
	SessionKey string
	GoalID     string
	TaskID     string
	Status     board.PlanStatus
	Feedback   string
}

// SetPlanStatus sets the plan to any recognized lifecycle status. Approved
// and rejected stamp their timestamps; rejected stores feedback if given.
func (e *Engine) SetPlanStatus(p SetPlanStatusParams) (err error) {
	start := time.Now()
	defer func() { e.observe(opSetPlanStatus, start, err) }()

	if !board.ValidPlanStatus(p.Status) {
		return apperrors.NewValidation("status", fmt.Sprintf("unrecognized plan status %q", p.Status))
	}

	return e.store.Update(func(b *board.Board) error {
		_, task, err := planTarget(b, p.SessionKey, p.GoalID, p.TaskID, opSetPlanStatus)
		if err != nil {
			return err
		}
		if task.Plan == nil {
			return apperrors.NewNotFound("plan", p.TaskID)
		}

		now := nowMs()
		task.Plan.Status = p.Status
		switch p.Status {
		case board.PlanApproved:
			task.Plan.ApprovedAtMs = now
		case board.PlanRejected:
			task.Plan.RejectedAtMs = now
			if p.Feedback != "" {
				task.Plan.Feedback = p.Feedback
			}
		}
		task.Plan.UpdatedAtMs = now
		task.UpdatedAtMs = now
		return nil
	})
}

// UpdateStepParams transitions one plan step.
type UpdateStepParams struct {
	SessionKey string
	GoalID     string
	TaskID     string
	StepIndex  int
	Status     board.StepStatus
}

// UpdatePlanStep sets a step's status and recomputes the plan's overall
// status. The first transition into in-progress stamps the start time;
// re-entering in-progress keeps the original stamp. Done and skipped stamp
// the completion time.
func (e *Engine) UpdatePlanStep(p UpdateStepParams) (err error) {
	start := time.Now()
	defer func() { e.observe(opUpdatePlanStep, start, err) }()

	if !board.ValidStepStatus(p.Status) {
		return apperrors.NewValidation("status", fmt.Sprintf("unrecognized step status %q", p.Status))
	}

	var sessionKey string
	err = e.store.Update(func(b *board.Board) error {
		_, task, err := planTarget(b, p.SessionKey, p.GoalID, p.TaskID, opUpdatePlanStep)
		if err != nil {
			return err
		}
		if task.Plan == nil {
			return apperrors.NewNotFound("plan", p.TaskID)
		}
		if p.StepIndex < 0 || p.StepIndex >= len(task.Plan.Steps) {
			return apperrors.NewNotFound("step", fmt.Sprintf("%d", p.StepIndex))
		}

		now := nowMs()
		step := &task.Plan.Steps[p.StepIndex]
		step.Status = p.Status
		switch p.Status {
		case board.StepInProgress:
			if step.StartedAtMs == 0 {
				step.StartedAtMs = now
			}
		case board.StepDone, board.StepSkipped:
			step.CompletedAtMs = now
		}

		board.RecomputePlanStatus(task.Plan)
		task.Plan.UpdatedAtMs = now
		task.UpdatedAtMs = now
		sessionKey = task.SessionKey
		return nil
	})
	if err != nil {
		return err
	}

	idx := p.StepIndex
	e.logbuf.Append(sessionKey, planlog.Entry{
		Type:      "step",
		Message:   fmt.Sprintf("step %d → %s", p.StepIndex, p.Status),
		StepIndex: &idx,
	})
	return nil
}

// ApprovePlanParams approves a plan awaiting review.
type ApprovePlanParams struct {
	SessionKey string
	GoalID     string
	TaskID     string
	Comment    string
}

// ApprovePlan moves a draft or awaiting_approval plan to approved, records
// the notification and activity entry, and messages the task's session.
// Message delivery is best-effort and never rolls back the approval.
func (e *Engine) ApprovePlan(p ApprovePlanParams) (err error) {
	start := time.Now()
	defer func() { e.observe(opApprovePlan, start, err) }()
	return e.decidePlan(p.SessionKey, p.GoalID, p.TaskID, board.PlanApproved, p.Comment)
}

// RejectPlanParams rejects a plan with reviewer feedback.
type RejectPlanParams struct {
	SessionKey string
	GoalID     string
	TaskID     string
	Feedback   string
}

// RejectPlan moves a draft or awaiting_approval plan to rejected, storing the
// feedback the author needs for the next revision.
func (e *Engine) RejectPlan(p RejectPlanParams) (err error) {
	start := time.Now()
	defer func() { e.observe(opRejectPlan, start, err) }()

	if p.Feedback == "" {
		return apperrors.NewValidation("feedback", "is required when rejecting a plan")
	}
	return e.decidePlan(p.SessionKey, p.GoalID, p.TaskID, board.PlanRejected, p.Feedback)
}

// decidePlan is the shared approve/reject path. Both decisions require the
// plan to be in draft or awaiting_approval; any other state is a gating
// failure reporting the actual status.
func (e *Engine) decidePlan(sessionKey, goalID, taskID string, decision board.PlanStatus, text string) error {
	op := opApprovePlan
	if decision == board.PlanRejected {
		op = opRejectPlan
	}

	var taskSession string
	var notifType string
	err := e.store.Update(func(b *board.Board) error {
		goal, task, err := planTarget(b, sessionKey, goalID, taskID, op)
		if err != nil {
			return err
		}
		if task.Plan == nil {
			return apperrors.NewNotFound("plan", taskID)
		}

		switch task.Plan.Status {
		case board.PlanDraft, board.PlanAwaitingApproval:
		default:
			verb := "approve"
			if decision == board.PlanRejected {
				verb = "reject"
			}
			return apperrors.NewGating(fmt.Sprintf("cannot %s plan in status %q", verb, task.Plan.Status))
		}

		now := nowMs()
		task.Plan.Status = decision
		if decision == board.PlanApproved {
			task.Plan.ApprovedAtMs = now
			task.Plan.ApprovalComment = text
			notifType = "plan_approved"
		} else {
			task.Plan.RejectedAtMs = now
			task.Plan.Feedback = text
			notifType = "plan_rejected"
		}
		task.Plan.UpdatedAtMs = now
		task.UpdatedAtMs = now
		taskSession = task.SessionKey

		if e.notifier != nil {
			title := fmt.Sprintf("Plan approved for task %s", task.ID)
			if decision == board.PlanRejected {
				title = fmt.Sprintf("Plan rejected for task %s", task.ID)
			}
			e.notifier.Notify(b, board.Notification{
				Type:       notifType,
				GoalID:     goal.ID,
				TaskID:     task.ID,
				SessionKey: taskSession,
				Title:      title,
				Detail:     text,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logbuf.Append(taskSession, planlog.Entry{
		Type:    notifType,
		Message: text,
	})
	e.sendBestEffort(taskSession, map[string]any{
		"type":    notifType,
		"task_id": taskID,
		"detail":  text,
	})
	return nil
}

// PlanActivity returns the most recent plan log entries for a session,
// newest-last.
func (e *Engine) PlanActivity(sessionKey string, n int) []planlog.Entry {
	return e.logbuf.Recent(sessionKey, n)
}
