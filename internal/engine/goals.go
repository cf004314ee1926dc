package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/acastellana/clawcondos/internal/board"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
)

// SetGoalStatusParams transitions a goal between active and done.
type SetGoalStatusParams struct {
	SessionKey string
	GoalID     string // optional, defaults to the session's own goal
	Status     string
	// ExceptTaskID excludes one task from the pending-count gate, for
	// callers completing that task in the same request.
	ExceptTaskID string
}

// SetGoalStatus applies the goal transition. "done" is gated on zero pending
// tasks; "active" resets unconditionally. Never permitted on another
// session's goal.
func (e *Engine) SetGoalStatus(p SetGoalStatusParams) (err error) {
	start := time.Now()
	defer func() { e.observe(opSetGoalStatus, start, err) }()

	switch p.Status {
	case board.GoalActive, board.GoalDone:
	default:
		return apperrors.NewValidation("status", fmt.Sprintf("unrecognized value %q", p.Status))
	}

	err = e.store.Update(func(b *board.Board) error {
		r, err := resolveGoal(b, p.SessionKey, p.GoalID, opSetGoalStatus)
		if err != nil {
			return err
		}
		goal := r.goal

		if p.Status == board.GoalDone {
			if pending := goal.PendingTasks(p.ExceptTaskID); pending > 0 {
				return apperrors.NewPendingTasks(pending)
			}
		}
		applyGoalStatus(goal, p.Status)
		e.refreshGoalGauge(b)
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info().Str("goal_id", p.GoalID).Str("status", p.Status).Msg("goal status set")
	return nil
}

// applyGoalStatus sets status and the derived completed flag. Gating has
// already happened.
func applyGoalStatus(goal *board.Goal, status string) {
	goal.Status = status
	goal.Completed = status == board.GoalDone
	goal.UpdatedAtMs = nowMs()
}

// CreateGoalParams creates a goal and binds the creating session to it.
type CreateGoalParams struct {
	SessionKey string
	Title      string
	CondoID    string // optional
}

// CreateGoal adds an active goal and registers the creating session as its
// bound session.
func (e *Engine) CreateGoal(p CreateGoalParams) (goal *board.Goal, err error) {
	start := time.Now()
	defer func() { e.observe(opCreateGoal, start, err) }()

	if p.SessionKey == "" {
		return nil, apperrors.NewValidation("session_key", "is required")
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, apperrors.NewValidation("title", "is required")
	}

	err = e.store.Update(func(b *board.Board) error {
		if p.CondoID != "" && b.FindCondo(p.CondoID) == nil {
			return apperrors.NewNotFound("condo", p.CondoID)
		}
		now := nowMs()
		goal = &board.Goal{
			ID:          e.store.NewID("goal"),
			Title:       title,
			Status:      board.GoalActive,
			CondoID:     p.CondoID,
			Sessions:    []string{p.SessionKey},
			CreatedAtMs: now,
			UpdatedAtMs: now,
		}
		b.Goals = append(b.Goals, goal)
		b.SessionGoals[p.SessionKey] = goal.ID
		e.refreshGoalGauge(b)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("goal_id", goal.ID).Str("title", title).Msg("goal created")
	return goal, nil
}

// ListGoals returns all goals, optionally filtered by condo.
func (e *Engine) ListGoals(condoID string) ([]*board.Goal, error) {
	var out []*board.Goal
	err := e.store.View(func(b *board.Board) error {
		for _, g := range b.Goals {
			if condoID != "" && g.CondoID != condoID {
				continue
			}
			out = append(out, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetGoal returns one goal by id.
func (e *Engine) GetGoal(id string) (*board.Goal, error) {
	var out *board.Goal
	err := e.store.View(func(b *board.Board) error {
		out = b.FindGoal(id)
		if out == nil {
			return apperrors.NewNotFound("goal", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
