package board

// Goal status values. Completed is kept consistent with Status by the engine.
const (
	GoalActive = "active"
	GoalDone   = "done"
)

// Task status values with special stage mapping. Status itself is open-ended;
// unrecognized values are preserved and grouped under StageBacklog.
const (
	TaskPending    = "pending"
	TaskInProgress = "in-progress"
	TaskDone       = "done"
	TaskBlocked    = "blocked"
	TaskWaiting    = "waiting"
)

// Stage is the derived UI grouping for a task.
const (
	StageBacklog = "backlog"
	StageDoing   = "doing"
	StageDone    = "done"
	StageBlocked = "blocked"
)

// PlanStatus is the plan lifecycle state.
type PlanStatus string

const (
	PlanNone             PlanStatus = "none"
	PlanDraft            PlanStatus = "draft"
	PlanAwaitingApproval PlanStatus = "awaiting_approval"
	PlanApproved         PlanStatus = "approved"
	PlanRejected         PlanStatus = "rejected"
	PlanExecuting        PlanStatus = "executing"
	PlanCompleted        PlanStatus = "completed"
)

// ValidPlanStatus reports whether s is one of the seven recognized plan
// lifecycle states.
func ValidPlanStatus(s PlanStatus) bool {
	switch s {
	case PlanNone, PlanDraft, PlanAwaitingApproval, PlanApproved,
		PlanRejected, PlanExecuting, PlanCompleted:
		return true
	}
	return false
}

// StepStatus is the per-step state within a plan.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepDone       StepStatus = "done"
	StepSkipped    StepStatus = "skipped"
)

// ValidStepStatus reports whether s is a recognized step status.
func ValidStepStatus(s StepStatus) bool {
	switch s {
	case StepPending, StepInProgress, StepDone, StepSkipped:
		return true
	}
	return false
}

// StageFor derives the UI stage for a task status: done maps to done,
// in-progress to doing, blocked and waiting to blocked, everything else
// (including unknown statuses) to backlog.
func StageFor(status string) string {
	switch status {
	case TaskDone:
		return StageDone
	case TaskInProgress:
		return StageDoing
	case TaskBlocked, TaskWaiting:
		return StageBlocked
	default:
		return StageBacklog
	}
}

// Settled reports whether a step no longer needs work.
func (s StepStatus) Settled() bool {
	return s == StepDone || s == StepSkipped
}

// RecomputePlanStatus derives the plan's overall status from its step
// aggregate and the current lifecycle stage, and applies it in place.
//
// The rule is total and deterministic:
//   - Pre-approval states (none, draft, awaiting_approval, rejected) are
//     never changed by step aggregates; only a file sync promotes none to
//     draft, and only an explicit approval moves past it.
//   - Post-approval states (approved, executing, completed) are derived:
//     no steps yields approved, all steps done/skipped yields completed,
//     any partial progress yields executing, all pending yields approved.
//
// An approved plan is therefore never regressed to draft, and completed is
// only ever reached through this derivation, never set directly.
func RecomputePlanStatus(p *Plan) {
	switch p.Status {
	case PlanApproved, PlanExecuting, PlanCompleted:
	default:
		return
	}

	if len(p.Steps) == 0 {
		p.Status = PlanApproved
		return
	}

	settled := 0
	progressed := 0
	for _, s := range p.Steps {
		if s.Status.Settled() {
			settled++
			progressed++
		} else if s.Status == StepInProgress {
			progressed++
		}
	}

	switch {
	case settled == len(p.Steps):
		p.Status = PlanCompleted
	case progressed > 0:
		p.Status = PlanExecuting
	default:
		p.Status = PlanApproved
	}
}
