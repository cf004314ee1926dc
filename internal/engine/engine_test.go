package engine

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acastellana/clawcondos/internal/board"
	"github.com/acastellana/clawcondos/internal/condo"
	"github.com/acastellana/clawcondos/internal/config"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
	"github.com/acastellana/clawcondos/internal/notify"
	"github.com/acastellana/clawcondos/internal/planfile"
	"github.com/acastellana/clawcondos/internal/planlog"
	"github.com/acastellana/clawcondos/internal/store"
)

type sentMessage struct {
	SessionKey string
	Payload    map[string]any
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *fakeMessenger) SendToSession(sessionKey string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{SessionKey: sessionKey, Payload: payload})
	return m.err
}

// Session keys used by the seeded board.
const (
	sessOwn     = "agent:pm:goal-own"     // bound to g-own (condo c-1)
	sessSibling = "agent:pm:goal-sibling" // bound to g-sibling (condo c-1)
	sessLoner   = "agent:pm:goal-loner"   // bound to g-loner (no condo)
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, *fakeMessenger) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "board.json"), zerolog.Nop())
	require.NoError(t, err)

	roles := condo.NewRoleResolver([]config.RoleBinding{
		{Role: "pm", AgentID: "agent-pm"},
		{Role: "dev", AgentID: "agent-dev"},
	})
	msgr := &fakeMessenger{}
	notifier := notify.New(nil, "", nil, zerolog.Nop())
	eng := New(st, planlog.New(10), notifier, msgr, roles, nil, zerolog.Nop())

	require.NoError(t, st.Update(func(b *board.Board) error {
		b.Condos = append(b.Condos, &board.Condo{ID: "c-1", Name: "Platform"})
		b.Goals = append(b.Goals,
			&board.Goal{
				ID: "g-own", Title: "Own goal", Status: board.GoalActive, CondoID: "c-1",
				Tasks: []*board.Task{
					{ID: "t-1", Text: "first task", Status: board.TaskPending, Stage: board.StageBacklog},
					{ID: "t-2", Text: "second task", Status: board.TaskPending, Stage: board.StageBacklog},
				},
			},
			&board.Goal{ID: "g-sibling", Title: "Sibling goal", Status: board.GoalActive, CondoID: "c-1"},
			&board.Goal{ID: "g-loner", Title: "Loner goal", Status: board.GoalActive},
		)
		b.SessionGoals[sessOwn] = "g-own"
		b.SessionGoals[sessSibling] = "g-sibling"
		b.SessionGoals[sessLoner] = "g-loner"
		return nil
	}))
	return eng, st, msgr
}

func loadGoal(t *testing.T, st *store.Store, id string) *board.Goal {
	t.Helper()
	b, err := st.Load()
	require.NoError(t, err)
	g := b.FindGoal(id)
	require.NotNil(t, g)
	return g
}

func TestUpdateTaskDoneDerivations(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	summary := "did the thing"
	res, err := eng.UpdateTask(UpdateTaskParams{
		SessionKey: sessOwn, TaskID: "t-1", Status: board.TaskDone, Summary: &summary,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"task t-1 → done"}, res.Summary)
	assert.True(t, res.Meta.TaskCompleted)
	assert.False(t, res.Meta.GoalCompleted)

	g := loadGoal(t, st, "g-own")
	task := g.FindTask("t-1")
	assert.True(t, task.Done)
	assert.Equal(t, board.StageDone, task.Stage)
	assert.Equal(t, "did the thing", task.Summary)
	assert.Nil(t, g.NextTask, "done clears the hint")
}

func TestUpdateTaskInProgressSetsNextTask(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	_, err := eng.UpdateTask(UpdateTaskParams{SessionKey: sessOwn, TaskID: "t-2", Status: board.TaskInProgress})
	require.NoError(t, err)

	g := loadGoal(t, st, "g-own")
	require.NotNil(t, g.NextTask)
	assert.Equal(t, "second task", *g.NextTask)
	assert.Equal(t, board.StageDoing, g.FindTask("t-2").Stage)
	assert.False(t, g.FindTask("t-2").Done)
}

func TestUpdateTaskUnknownStatusLandsInBacklog(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	_, err := eng.UpdateTask(UpdateTaskParams{SessionKey: sessOwn, TaskID: "t-1", Status: "review"})
	require.NoError(t, err)

	task := loadGoal(t, st, "g-own").FindTask("t-1")
	assert.Equal(t, "review", task.Status)
	assert.Equal(t, board.StageBacklog, task.Stage)
	assert.False(t, task.Done)
}

func TestUpdateTaskNotFound(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.UpdateTask(UpdateTaskParams{SessionKey: sessOwn, TaskID: "t-missing", Status: board.TaskDone})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGoalDoneGatingScenario(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	// Call A: complete t-1 and close the goal in one call. t-2 is still
	// pending, so the whole call is rejected and t-1 stays untouched.
	_, err := eng.UpdateTask(UpdateTaskParams{
		SessionKey: sessOwn, TaskID: "t-1", Status: board.TaskDone, GoalStatus: board.GoalDone,
	})
	var gErr *apperrors.GatingError
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, 1, gErr.Pending)
	assert.Equal(t, "1 task still pending", gErr.Reason)

	g := loadGoal(t, st, "g-own")
	assert.False(t, g.FindTask("t-1").Done, "rejected call must not mutate")
	assert.Equal(t, board.GoalActive, g.Status)

	// Call B: complete t-2 alone.
	_, err = eng.UpdateTask(UpdateTaskParams{SessionKey: sessOwn, TaskID: "t-2", Status: board.TaskDone})
	require.NoError(t, err)

	// Call C: complete t-1 with the goal close. Now it goes through.
	res, err := eng.UpdateTask(UpdateTaskParams{
		SessionKey: sessOwn, TaskID: "t-1", Status: board.TaskDone, GoalStatus: board.GoalDone,
	})
	require.NoError(t, err)
	assert.True(t, res.Meta.GoalCompleted)
	assert.Equal(t, []string{"task t-1 → done", "goal → done"}, res.Summary)

	g = loadGoal(t, st, "g-own")
	assert.Equal(t, board.GoalDone, g.Status)
	assert.True(t, g.Completed)
}

func TestSetGoalStatusPendingCount(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	err := eng.SetGoalStatus(SetGoalStatusParams{SessionKey: sessOwn, Status: board.GoalDone})
	var gErr *apperrors.GatingError
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, 2, gErr.Pending)
	assert.Equal(t, "2 tasks still pending", gErr.Reason)
}

func TestSetGoalStatusActiveResets(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	require.NoError(t, st.Update(func(b *board.Board) error {
		g := b.FindGoal("g-sibling")
		g.Status = board.GoalDone
		g.Completed = true
		return nil
	}))

	require.NoError(t, eng.SetGoalStatus(SetGoalStatusParams{SessionKey: sessSibling, Status: board.GoalActive}))

	g := loadGoal(t, st, "g-sibling")
	assert.Equal(t, board.GoalActive, g.Status)
	assert.False(t, g.Completed)
}

func TestSetGoalStatusValidation(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	err := eng.SetGoalStatus(SetGoalStatusParams{SessionKey: sessOwn, Status: "paused"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestAddTasksSkipsBlankSpecs(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	res, err := eng.AddTasks(AddTasksParams{
		SessionKey: sessOwn,
		Specs:      []TaskSpec{{Text: "A"}, {Text: ""}, {Text: "  "}},
	})
	require.NoError(t, err)
	require.Len(t, res.CreatedIDs, 1)
	assert.Equal(t, "1 task added", res.Summary)

	g := loadGoal(t, st, "g-own")
	created := g.FindTask(res.CreatedIDs[0])
	require.NotNil(t, created)
	assert.Equal(t, "A", created.Text)
	assert.Equal(t, board.TaskPending, created.Status)
	assert.Equal(t, board.StageBacklog, created.Stage)
}

func TestCrossGoalBoundaries(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	// Task status update on a sibling goal is denied.
	_, err := eng.UpdateTask(UpdateTaskParams{
		SessionKey: sessSibling, GoalID: "g-own", TaskID: "t-1", Status: board.TaskDone,
	})
	assert.True(t, apperrors.IsBoundary(err))

	// Goal status change on a sibling goal is denied.
	err = eng.SetGoalStatus(SetGoalStatusParams{SessionKey: sessSibling, GoalID: "g-own", Status: board.GoalActive})
	assert.True(t, apperrors.IsBoundary(err))

	// AddTasks and AppendNote on the same sibling succeed.
	res, err := eng.AddTasks(AddTasksParams{
		SessionKey: sessSibling, GoalID: "g-own", Specs: []TaskSpec{{Text: "from sibling"}},
	})
	require.NoError(t, err)
	assert.Len(t, res.CreatedIDs, 1)

	require.NoError(t, eng.AppendNote(AppendNoteParams{
		SessionKey: sessSibling, GoalID: "g-own", Note: "heads up",
	}))
	assert.Contains(t, loadGoal(t, st, "g-own").Notes, "heads up")
}

func TestCrossGoalRequiresSharedCondo(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	// Caller's goal has no condo.
	_, err := eng.AddTasks(AddTasksParams{
		SessionKey: sessLoner, GoalID: "g-own", Specs: []TaskSpec{{Text: "x"}},
	})
	assert.True(t, apperrors.IsBoundary(err))

	// Target goal has no condo.
	_, err = eng.AddTasks(AddTasksParams{
		SessionKey: sessOwn, GoalID: "g-loner", Specs: []TaskSpec{{Text: "x"}},
	})
	assert.True(t, apperrors.IsBoundary(err))
}

func TestCrossGoalRejectedOnDoneTarget(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	require.NoError(t, st.Update(func(b *board.Board) error {
		g := b.FindGoal("g-sibling")
		g.Status = board.GoalDone
		g.Completed = true
		return nil
	}))

	_, err := eng.AddTasks(AddTasksParams{
		SessionKey: sessOwn, GoalID: "g-sibling", Specs: []TaskSpec{{Text: "late"}},
	})
	assert.True(t, apperrors.IsBoundary(err))
}

func TestResolveCondoBoundSession(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	require.NoError(t, st.Update(func(b *board.Board) error {
		b.Condos = append(b.Condos, &board.Condo{ID: "c-2", Name: "Other"})
		b.SessionCondos["agent:pm:condo-2"] = "c-2"
		return nil
	}))

	// A condo-bound session may not reach into a goal of another condo.
	_, err := eng.AddTasks(AddTasksParams{
		SessionKey: "agent:pm:condo-2", GoalID: "g-own", Specs: []TaskSpec{{Text: "x"}},
	})
	assert.True(t, apperrors.IsBoundary(err))
}

func TestUnboundSessionWithoutGoalID(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.UpdateTask(UpdateTaskParams{SessionKey: "agent:pm:unknown", TaskID: "t-1", Status: board.TaskDone})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTrackFilesDedupLatestWins(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	_, err := eng.TrackFiles(TrackFilesParams{
		SessionKey: sessOwn,
		Files:      []FileSpec{{Path: "internal/store/store.go", TaskID: "t-1", Source: "edit"}},
	})
	require.NoError(t, err)

	res, err := eng.TrackFiles(TrackFilesParams{
		SessionKey: sessOwn,
		Files: []FileSpec{
			{Path: "internal/store/store.go", TaskID: "t-2", Source: "review"},
			{Path: "internal/board/types.go"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tracked)
	assert.Equal(t, "2 files tracked", res.Summary)

	g := loadGoal(t, st, "g-own")
	require.Len(t, g.Files, 2)
	assert.Equal(t, "t-2", g.Files[0].TaskID, "second submission wins")
	assert.Equal(t, "review", g.Files[0].Source)
}

func TestSpawnTaskOnce(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	res, err := eng.SpawnTask(SpawnTaskParams{SessionKey: sessOwn, TaskID: "t-1", Role: "dev"})
	require.NoError(t, err)
	assert.Regexp(t, `^agent:agent-dev:task-[0-9a-f]{8}$`, res.SessionKey)
	assert.Contains(t, res.Context, "Own goal")
	assert.Contains(t, res.Context, "first task")
	assert.Contains(t, res.Context, "Sibling goal")
	assert.Contains(t, res.Context, "report completion")

	g := loadGoal(t, st, "g-own")
	task := g.FindTask("t-1")
	assert.Equal(t, res.SessionKey, task.SessionKey)
	assert.Equal(t, board.TaskInProgress, task.Status)
	assert.True(t, g.HasSession(res.SessionKey))
	require.NotNil(t, g.NextTask)
	assert.Equal(t, "first task", *g.NextTask)

	b, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "g-own", b.SessionGoals[res.SessionKey])

	// Second spawn is a hard error and leaves the first key in place.
	_, err = eng.SpawnTask(SpawnTaskParams{SessionKey: sessOwn, TaskID: "t-1"})
	var gErr *apperrors.GatingError
	require.ErrorAs(t, err, &gErr)
	assert.Contains(t, gErr.Reason, "already has a session")
	assert.Equal(t, res.SessionKey, loadGoal(t, st, "g-own").FindTask("t-1").SessionKey)
}

func TestSpawnTaskExplicitAgent(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	res, err := eng.SpawnTask(SpawnTaskParams{SessionKey: sessOwn, TaskID: "t-2", AgentID: "agent-custom"})
	require.NoError(t, err)
	assert.Regexp(t, `^agent:agent-custom:task-`, res.SessionKey)
}

func TestSpawnTaskUnknownRole(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.SpawnTask(SpawnTaskParams{SessionKey: sessOwn, TaskID: "t-1", Role: "designer"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateGoalBindsSession(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	g, err := eng.CreateGoal(CreateGoalParams{SessionKey: "agent:pm:goal-new", Title: "New goal", CondoID: "c-1"})
	require.NoError(t, err)
	assert.Equal(t, board.GoalActive, g.Status)

	b, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, g.ID, b.SessionGoals["agent:pm:goal-new"])
	assert.True(t, b.FindGoal(g.ID).HasSession("agent:pm:goal-new"))

	_, err = eng.CreateGoal(CreateGoalParams{SessionKey: "s", Title: "x", CondoID: "c-missing"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAppendNoteAccumulates(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	require.NoError(t, eng.AppendNote(AppendNoteParams{SessionKey: sessOwn, Note: "first"}))
	require.NoError(t, eng.AppendNote(AppendNoteParams{SessionKey: sessOwn, Note: "second"}))

	assert.Equal(t, "first\nsecond", loadGoal(t, st, "g-own").Notes)

	err := eng.AppendNote(AppendNoteParams{SessionKey: sessOwn, Note: "   "})
	assert.True(t, apperrors.IsValidation(err))
}

// stubPlanDoc installs a fake plan reader returning the given steps.
func stubPlanDoc(eng *Engine, steps ...planfile.Step) {
	eng.readPlan = func(path string) (*planfile.Document, error) {
		return &planfile.Document{FilePath: path, Content: "# plan", Steps: steps}, nil
	}
}

func TestSyncPlanCreatesDraft(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	stubPlanDoc(eng, planfile.Step{Title: "Audit"}, planfile.Step{Title: "Migrate"})

	plan, err := eng.SyncPlanFromFile(SyncPlanParams{SessionKey: sessOwn, TaskID: "t-1", Path: "plans/t1.md"})
	require.NoError(t, err)
	assert.Equal(t, board.PlanDraft, plan.Status)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, board.StepPending, plan.Steps[0].Status)
	assert.Equal(t, "plans/t1.md", plan.FilePath)

	saved := loadGoal(t, st, "g-own").FindTask("t-1").Plan
	require.NotNil(t, saved)
	assert.Equal(t, board.PlanDraft, saved.Status)
}

func TestSyncPlanMergeByTitlePreservesProgress(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	require.NoError(t, st.Update(func(b *board.Board) error {
		task := b.FindGoal("g-own").FindTask("t-1")
		task.Plan = &board.Plan{
			Status: board.PlanApproved,
			Steps: []board.PlanStep{
				{Index: 0, Title: "Audit", Status: board.StepDone, StartedAtMs: 100, CompletedAtMs: 200},
				{Index: 1, Title: "Migrate", Status: board.StepInProgress, StartedAtMs: 300},
				{Index: 2, Title: "Dropped", Status: board.StepPending},
			},
		}
		return nil
	}))

	// Re-sync an edited file: Audit kept, Migrate retitled away, Verify new.
	stubPlanDoc(eng,
		planfile.Step{Title: "Audit", Description: "updated wording"},
		planfile.Step{Title: "Verify"},
	)
	plan, err := eng.SyncPlanFromFile(SyncPlanParams{SessionKey: sessOwn, TaskID: "t-1", Path: "plans/t1.md"})
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, board.StepDone, plan.Steps[0].Status, "progress preserved by title")
	assert.Equal(t, int64(100), plan.Steps[0].StartedAtMs, "timestamps carried over")
	assert.Equal(t, int64(200), plan.Steps[0].CompletedAtMs)
	assert.Equal(t, "updated wording", plan.Steps[0].Description)
	assert.Equal(t, board.StepPending, plan.Steps[1].Status)
	assert.Equal(t, board.PlanExecuting, plan.Status, "recomputed: partial progress on approved plan")
}

func TestSyncPlanDoesNotRegressAwaitingApproval(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	require.NoError(t, st.Update(func(b *board.Board) error {
		b.FindGoal("g-own").FindTask("t-1").Plan = &board.Plan{Status: board.PlanAwaitingApproval}
		return nil
	}))

	stubPlanDoc(eng, planfile.Step{Title: "Only"})
	plan, err := eng.SyncPlanFromFile(SyncPlanParams{SessionKey: sessOwn, TaskID: "t-1", Path: "p.md"})
	require.NoError(t, err)
	assert.Equal(t, board.PlanAwaitingApproval, plan.Status)
}

func seedPlan(t *testing.T, st *store.Store, status board.PlanStatus, sessionKey string, steps ...board.PlanStep) {
	t.Helper()
	require.NoError(t, st.Update(func(b *board.Board) error {
		task := b.FindGoal("g-own").FindTask("t-1")
		task.SessionKey = sessionKey
		task.Plan = &board.Plan{Status: status, Steps: steps}
		return nil
	}))
}

func TestApprovePlanFromAwaiting(t *testing.T) {
	eng, st, msgr := newTestEngine(t)
	seedPlan(t, st, board.PlanAwaitingApproval, "agent:agent-dev:task-abc")

	err := eng.ApprovePlan(ApprovePlanParams{SessionKey: sessOwn, TaskID: "t-1", Comment: "ship it"})
	require.NoError(t, err)

	b, err := st.Load()
	require.NoError(t, err)
	plan := b.FindGoal("g-own").FindTask("t-1").Plan
	assert.Equal(t, board.PlanApproved, plan.Status)
	assert.NotZero(t, plan.ApprovedAtMs)
	assert.Equal(t, "ship it", plan.ApprovalComment)

	require.Len(t, b.Notifications, 1)
	assert.Equal(t, "plan_approved", b.Notifications[0].Type)
	assert.Equal(t, "t-1", b.Notifications[0].TaskID)

	entries := eng.PlanActivity("agent:agent-dev:task-abc", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, "plan_approved", entries[0].Type)

	msgr.mu.Lock()
	defer msgr.mu.Unlock()
	require.Len(t, msgr.sent, 1)
	assert.Equal(t, "agent:agent-dev:task-abc", msgr.sent[0].SessionKey)
	assert.Equal(t, "plan_approved", msgr.sent[0].Payload["type"])
}

func TestRejectPlanStoresFeedback(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	seedPlan(t, st, board.PlanDraft, "")

	err := eng.RejectPlan(RejectPlanParams{SessionKey: sessOwn, TaskID: "t-1", Feedback: "too vague"})
	require.NoError(t, err)

	b, err := st.Load()
	require.NoError(t, err)
	plan := b.FindGoal("g-own").FindTask("t-1").Plan
	assert.Equal(t, board.PlanRejected, plan.Status)
	assert.NotZero(t, plan.RejectedAtMs)
	assert.Equal(t, "too vague", plan.Feedback)

	assert.True(t, apperrors.IsValidation(eng.RejectPlan(RejectPlanParams{SessionKey: sessOwn, TaskID: "t-1"})))
}

func TestApproveRejectGatedByLifecycle(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	for _, status := range []board.PlanStatus{board.PlanApproved, board.PlanRejected, board.PlanExecuting, board.PlanCompleted} {
		seedPlan(t, st, status, "")

		err := eng.ApprovePlan(ApprovePlanParams{SessionKey: sessOwn, TaskID: "t-1"})
		var gErr *apperrors.GatingError
		require.ErrorAs(t, err, &gErr, "approve from %s", status)
		assert.Contains(t, gErr.Reason, string(status), "error reports the actual status")

		err = eng.RejectPlan(RejectPlanParams{SessionKey: sessOwn, TaskID: "t-1", Feedback: "no"})
		require.ErrorAs(t, err, &gErr, "reject from %s", status)
	}
}

func TestApprovalSurvivesDeliveryFailure(t *testing.T) {
	eng, st, msgr := newTestEngine(t)
	msgr.err = errors.New("gateway down")
	seedPlan(t, st, board.PlanAwaitingApproval, "agent:agent-dev:task-abc")

	err := eng.ApprovePlan(ApprovePlanParams{SessionKey: sessOwn, TaskID: "t-1"})
	require.NoError(t, err, "delivery failure never fails the approval")

	b, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, board.PlanApproved, b.FindGoal("g-own").FindTask("t-1").Plan.Status)
}

func TestUpdatePlanStepIdempotentStart(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	seedPlan(t, st, board.PlanApproved, "agent:agent-dev:task-abc",
		board.PlanStep{Index: 0, Title: "Audit", Status: board.StepInProgress, StartedAtMs: 12345},
		board.PlanStep{Index: 1, Title: "Migrate", Status: board.StepPending},
	)

	// Re-entering in-progress keeps the original start stamp.
	require.NoError(t, eng.UpdatePlanStep(UpdateStepParams{
		SessionKey: sessOwn, TaskID: "t-1", StepIndex: 0, Status: board.StepInProgress,
	}))
	b, err := st.Load()
	require.NoError(t, err)
	plan := b.FindGoal("g-own").FindTask("t-1").Plan
	assert.Equal(t, int64(12345), plan.Steps[0].StartedAtMs)
	assert.Equal(t, board.PlanExecuting, plan.Status, "recomputation still ran")

	// Completing both steps completes the plan.
	require.NoError(t, eng.UpdatePlanStep(UpdateStepParams{
		SessionKey: sessOwn, TaskID: "t-1", StepIndex: 0, Status: board.StepDone,
	}))
	require.NoError(t, eng.UpdatePlanStep(UpdateStepParams{
		SessionKey: sessOwn, TaskID: "t-1", StepIndex: 1, Status: board.StepSkipped,
	}))

	b, err = st.Load()
	require.NoError(t, err)
	plan = b.FindGoal("g-own").FindTask("t-1").Plan
	assert.Equal(t, board.PlanCompleted, plan.Status)
	assert.NotZero(t, plan.Steps[0].CompletedAtMs)
	assert.NotZero(t, plan.Steps[1].CompletedAtMs)

	entries := eng.PlanActivity("agent:agent-dev:task-abc", 0)
	assert.Len(t, entries, 3)
}

func TestUpdatePlanStepValidation(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	err := eng.UpdatePlanStep(UpdateStepParams{SessionKey: sessOwn, TaskID: "t-1", StepIndex: 0, Status: "running"})
	assert.True(t, apperrors.IsValidation(err))

	err = eng.UpdatePlanStep(UpdateStepParams{SessionKey: sessOwn, TaskID: "t-1", StepIndex: 0, Status: board.StepDone})
	assert.True(t, apperrors.IsNotFound(err), "no plan on task")

	seedPlan(t, st, board.PlanApproved, "", board.PlanStep{Index: 0, Title: "Only"})
	err = eng.UpdatePlanStep(UpdateStepParams{SessionKey: sessOwn, TaskID: "t-1", StepIndex: 5, Status: board.StepDone})
	assert.True(t, apperrors.IsNotFound(err), "step index out of range")
}

func TestSetPlanStatusDirect(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	seedPlan(t, st, board.PlanDraft, "")

	require.NoError(t, eng.SetPlanStatus(SetPlanStatusParams{
		SessionKey: sessOwn, TaskID: "t-1", Status: board.PlanAwaitingApproval,
	}))
	b, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, board.PlanAwaitingApproval, b.FindGoal("g-own").FindTask("t-1").Plan.Status)

	err = eng.SetPlanStatus(SetPlanStatusParams{SessionKey: sessOwn, TaskID: "t-1", Status: "stalled"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestListAndGetGoals(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	all, err := eng.ListGoals("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inCondo, err := eng.ListGoals("c-1")
	require.NoError(t, err)
	assert.Len(t, inCondo, 2)

	g, err := eng.GetGoal("g-own")
	require.NoError(t, err)
	assert.Equal(t, "Own goal", g.Title)

	_, err = eng.GetGoal("g-missing")
	assert.True(t, apperrors.IsNotFound(err))
}
