package engine

import (
	"github.com/acastellana/clawcondos/internal/board"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
)

// Operation names, used for boundary decisions and metrics labels.
const (
	opUpdateTask     = "update_task"
	opSetGoalStatus  = "set_goal_status"
	opAddTasks       = "add_tasks"
	opAppendNote     = "append_note"
	opTrackFiles     = "track_files"
	opSyncPlan       = "sync_plan"
	opSetPlanStatus  = "set_plan_status"
	opUpdatePlanStep = "update_plan_step"
	opApprovePlan    = "approve_plan"
	opRejectPlan     = "reject_plan"
	opSpawnTask      = "spawn_task"
	opCreateGoal     = "create_goal"
)

// crossGoalAllowed is the full set of operations a session may perform on a
// sibling goal. Everything else is own-goal only.
func crossGoalAllowed(op string) bool {
	return op == opAddTasks || op == opAppendNote
}

// resolution is the outcome of boundary resolution for one call.
type resolution struct {
	goal *board.Goal
	own  *board.Goal // goal the calling session is bound to, may be nil
	// cross is true when the resolved goal is not the caller's own goal.
	cross bool
}

// resolveGoal finds the goal a call targets and enforces the cross-goal and
// cross-condo boundary rules for the operation.
//
// With an explicit goal id the goal is looked up directly, and a session
// bound to a condo may not reach outside it. Without one the calling
// session's own bound goal is the target. A cross-goal call must stay inside
// one shared condo, must target a goal that is not done, and must be one of
// the allowlisted operations.
func resolveGoal(b *board.Board, sessionKey, goalID, op string) (*resolution, error) {
	if sessionKey == "" {
		return nil, apperrors.NewValidation("session_key", "is required")
	}

	own := b.GoalForSession(sessionKey)

	var target *board.Goal
	if goalID != "" {
		target = b.FindGoal(goalID)
		if target == nil {
			return nil, apperrors.NewNotFound("goal", goalID)
		}
		if condoID := b.CondoForSession(sessionKey); condoID != "" && target.CondoID != condoID {
			return nil, apperrors.NewBoundary(op, "goal belongs to a different condo")
		}
	} else {
		target = own
		if target == nil {
			return nil, apperrors.NewNotFound("session", sessionKey)
		}
	}

	res := &resolution{goal: target, own: own}
	if own != nil && own.ID == target.ID {
		return res, nil
	}
	res.cross = true

	if !crossGoalAllowed(op) {
		return nil, apperrors.NewBoundary(op, "operation not permitted on another session's goal")
	}
	if target.Status == board.GoalDone {
		return nil, apperrors.NewBoundary(op, "target goal is already done")
	}
	if !sameCondo(b, sessionKey, own, target) {
		return nil, apperrors.NewBoundary(op, "goals do not share a condo")
	}
	return res, nil
}

// sameCondo reports whether the caller and the target goal share one non-empty
// condo. A condo-bound session with no own goal qualifies through its condo
// binding.
func sameCondo(b *board.Board, sessionKey string, own, target *board.Goal) bool {
	if target.CondoID == "" {
		return false
	}
	if own != nil {
		return own.CondoID == target.CondoID
	}
	return b.CondoForSession(sessionKey) == target.CondoID
}
