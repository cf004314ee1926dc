package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageFor(t *testing.T) {
	tests := []struct {
		status string
		stage  string
	}{
		{TaskDone, StageDone},
		{TaskInProgress, StageDoing},
		{TaskBlocked, StageBlocked},
		{TaskWaiting, StageBlocked},
		{TaskPending, StageBacklog},
		{"review", StageBacklog},
		{"", StageBacklog},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.stage, StageFor(tt.status), "status %q", tt.status)
	}
}

func TestValidPlanStatus(t *testing.T) {
	for _, s := range []PlanStatus{PlanNone, PlanDraft, PlanAwaitingApproval,
		PlanApproved, PlanRejected, PlanExecuting, PlanCompleted} {
		assert.True(t, ValidPlanStatus(s), "status %q", s)
	}
	assert.False(t, ValidPlanStatus("active"))
	assert.False(t, ValidPlanStatus(""))
}

func TestValidStepStatus(t *testing.T) {
	assert.True(t, ValidStepStatus(StepPending))
	assert.True(t, ValidStepStatus(StepSkipped))
	assert.False(t, ValidStepStatus("running"))
}

func steps(statuses ...StepStatus) []PlanStep {
	out := make([]PlanStep, len(statuses))
	for i, s := range statuses {
		out[i] = PlanStep{Index: i, Title: "s", Status: s}
	}
	return out
}

func TestRecomputePlanStatus(t *testing.T) {
	tests := []struct {
		name  string
		from  PlanStatus
		steps []PlanStep
		want  PlanStatus
	}{
		{"draft untouched by progress", PlanDraft, steps(StepDone, StepDone), PlanDraft},
		{"awaiting untouched", PlanAwaitingApproval, steps(StepInProgress), PlanAwaitingApproval},
		{"rejected untouched", PlanRejected, steps(StepDone), PlanRejected},
		{"none untouched", PlanNone, nil, PlanNone},
		{"approved no steps stays approved", PlanApproved, nil, PlanApproved},
		{"approved all pending stays approved", PlanApproved, steps(StepPending, StepPending), PlanApproved},
		{"approved one in-progress becomes executing", PlanApproved, steps(StepInProgress, StepPending), PlanExecuting},
		{"approved partial done becomes executing", PlanApproved, steps(StepDone, StepPending), PlanExecuting},
		{"approved all done becomes completed", PlanApproved, steps(StepDone, StepSkipped), PlanCompleted},
		{"executing regresses to approved when steps reset", PlanExecuting, steps(StepPending), PlanApproved},
		{"completed recomputed from steps", PlanCompleted, steps(StepDone, StepInProgress), PlanExecuting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Plan{Status: tt.from, Steps: tt.steps}
			RecomputePlanStatus(p)
			assert.Equal(t, tt.want, p.Status)
		})
	}
}

func TestPendingTasks(t *testing.T) {
	g := &Goal{Tasks: []*Task{
		{ID: "t1", Done: false},
		{ID: "t2", Done: true},
		{ID: "t3", Done: false},
	}}
	assert.Equal(t, 2, g.PendingTasks(""))
	assert.Equal(t, 1, g.PendingTasks("t1"))
	assert.Equal(t, 2, g.PendingTasks("t2")) // excluding a done task changes nothing
}

func TestBoardLookups(t *testing.T) {
	b := NewBoard()
	g := &Goal{ID: "g-1", Title: "Ship it", Status: GoalActive}
	b.Goals = append(b.Goals, g)
	b.SessionGoals["agent:pm:goal-1"] = "g-1"

	assert.Same(t, g, b.FindGoal("g-1"))
	assert.Nil(t, b.FindGoal("g-2"))
	assert.Same(t, g, b.GoalForSession("agent:pm:goal-1"))
	assert.Nil(t, b.GoalForSession("agent:pm:goal-x"))
}
