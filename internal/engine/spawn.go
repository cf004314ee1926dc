package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/acastellana/clawcondos/internal/board"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
)

// DefaultSpawnRole is the role used when a spawn names neither agent nor role.
const DefaultSpawnRole = "dev"

// SpawnTaskParams allocates a dedicated agent session for a task.
type SpawnTaskParams struct {
	SessionKey string
	GoalID     string
	TaskID     string
	AgentID    string // optional; resolved from Role when empty
	Role       string // optional; defaults to DefaultSpawnRole
	Model      string // optional, passed through to the session context
}

// SpawnTaskResult carries the new session identity and its context block.
type SpawnTaskResult struct {
	SessionKey string `json:"session_key"`
	Context    string `json:"context"`
}

// SpawnTask assigns a fresh session to the task. A task may be spawned at
// most once: a second call is a hard error and leaves the first session key
// unchanged. The new session is registered in the session index, appended to
// the goal's session list, and the task is moved to in-progress.
func (e *Engine) SpawnTask(p SpawnTaskParams) (res *SpawnTaskResult, err error) {
	start := time.Now()
	defer func() { e.observe(opSpawnTask, start, err) }()
	defer func() {
		if e.metrics != nil {
			result := "ok"
			if err != nil {
				result = "error"
			}
			e.metrics.RecordSpawn(result)
		}
	}()

	if p.TaskID == "" {
		return nil, apperrors.NewValidation("task_id", "is required")
	}

	agentID := p.AgentID
	if agentID == "" {
		role := p.Role
		if role == "" {
			role = DefaultSpawnRole
		}
		if e.roles == nil {
			return nil, apperrors.NewValidation("agent_id", "no role resolver configured")
		}
		agentID, err = e.roles.Resolve(role)
		if err != nil {
			return nil, err
		}
	}

	res = &SpawnTaskResult{}
	err = e.store.Update(func(b *board.Board) error {
		r, err := resolveGoal(b, p.SessionKey, p.GoalID, opSpawnTask)
		if err != nil {
			return err
		}
		goal := r.goal
		task := goal.FindTask(p.TaskID)
		if task == nil {
			return apperrors.NewNotFound("task", p.TaskID)
		}
		if task.SessionKey != "" {
			return apperrors.NewGating(fmt.Sprintf("task %s already has a session", task.ID))
		}

		key := fmt.Sprintf("agent:%s:task-%s", agentID, e.store.NewID(""))
		task.SessionKey = key
		applyTaskStatus(goal, task, board.TaskInProgress, nil)

		if !goal.HasSession(key) {
			goal.Sessions = append(goal.Sessions, key)
		}
		b.SessionGoals[key] = goal.ID

		res.SessionKey = key
		res.Context = buildSessionContext(b, goal, task, p.Model)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("task_id", p.TaskID).Str("session", res.SessionKey).
		Str("agent", agentID).Msg("task session spawned")
	return res, nil
}

// buildSessionContext assembles the text handed to the new session: the goal
// it works under, sibling goals sharing the condo, the task itself, and the
// reporting instruction.
func buildSessionContext(b *board.Board, goal *board.Goal, task *board.Task, model string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are working on goal %s: %s\n", goal.ID, goal.Title))
	if goal.Notes != "" {
		sb.WriteString("\nGoal notes:\n")
		sb.WriteString(goal.Notes)
		sb.WriteString("\n")
	}

	if goal.CondoID != "" {
		if condo := b.FindCondo(goal.CondoID); condo != nil {
			sb.WriteString(fmt.Sprintf("\nCondo: %s\n", condo.Name))
		}
		var siblings []string
		for _, g := range b.Goals {
			if g.ID != goal.ID && g.CondoID == goal.CondoID {
				siblings = append(siblings, fmt.Sprintf("- %s: %s (%s)", g.ID, g.Title, g.Status))
			}
		}
		if len(siblings) > 0 {
			sb.WriteString("\nOther goals in this condo:\n")
			sb.WriteString(strings.Join(siblings, "\n"))
			sb.WriteString("\n")
		}
	}

	sb.WriteString(fmt.Sprintf("\nYour task (%s): %s\n", task.ID, task.Text))
	if task.Description != "" {
		sb.WriteString(task.Description)
		sb.WriteString("\n")
	}
	if model != "" {
		sb.WriteString(fmt.Sprintf("\nModel: %s\n", model))
	}
	sb.WriteString("\nWhen finished, report completion by updating this task's status to done with a short summary.\n")

	return sb.String()
}
