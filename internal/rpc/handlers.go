package rpc

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/acastellana/clawcondos/internal/board"
	"github.com/acastellana/clawcondos/internal/condo"
	"github.com/acastellana/clawcondos/internal/engine"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
	"github.com/acastellana/clawcondos/internal/health"
)

// Handlers binds HTTP requests to engine and condo operations.
type Handlers struct {
	engine  *engine.Engine
	condos  *condo.Service
	checker *health.Checker
	logger  zerolog.Logger
}

// NewHandlers creates the handler set. checker may be nil, in which case the
// readiness probe always succeeds.
func NewHandlers(eng *engine.Engine, condos *condo.Service, checker *health.Checker, logger zerolog.Logger) *Handlers {
	return &Handlers{
		engine:  eng,
		condos:  condos,
		checker: checker,
		logger:  logger.With().Str("component", "rpc").Logger(),
	}
}

// respondError maps the engine error taxonomy to HTTP statuses:
// validation 400, not-found 404, boundary 403, gating 409, everything else
// 500.
func respondError(c *fiber.Ctx, err error) error {
	var (
		vErr *apperrors.ValidationError
		nErr *apperrors.NotFoundError
		bErr *apperrors.BoundaryError
		gErr *apperrors.GatingError
	)
	switch {
	case errors.As(err, &vErr):
		return problemResponse(c, fiber.StatusBadRequest,
			"validation_error", "Bad Request", vErr.Error())
	case errors.As(err, &nErr):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", nErr.Error())
	case errors.As(err, &bErr):
		return problemResponse(c, fiber.StatusForbidden,
			"boundary_violation", "Forbidden", bErr.Error())
	case errors.As(err, &gErr):
		return problemResponse(c, fiber.StatusConflict,
			"gating_error", "Conflict", gErr.Error())
	default:
		return problemResponse(c, fiber.StatusInternalServerError,
			"internal_error", "Internal Server Error", "An internal error occurred")
	}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidation("body", "malformed JSON")
	}
	return nil
}

// --- task operations ---

type updateTaskRequest struct {
	SessionKey string  `json:"session_key"`
	GoalID     string  `json:"goal_id,omitempty"`
	TaskID     string  `json:"task_id"`
	Status     string  `json:"status"`
	Summary    *string `json:"summary,omitempty"`
	GoalStatus string  `json:"goal_status,omitempty"`
}

// UpdateTask handles POST /api/v1/tasks/update.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	var req updateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.engine.UpdateTask(engine.UpdateTaskParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		TaskID:     req.TaskID,
		Status:     req.Status,
		Summary:    req.Summary,
		GoalStatus: req.GoalStatus,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

type addTasksRequest struct {
	SessionKey string            `json:"session_key"`
	GoalID     string            `json:"goal_id,omitempty"`
	Specs      []engine.TaskSpec `json:"specs"`
}

// AddTasks handles POST /api/v1/tasks/add.
func (h *Handlers) AddTasks(c *fiber.Ctx) error {
	var req addTasksRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.engine.AddTasks(engine.AddTasksParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		Specs:      req.Specs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

type spawnTaskRequest struct {
	SessionKey string `json:"session_key"`
	GoalID     string `json:"goal_id,omitempty"`
	TaskID     string `json:"task_id"`
	AgentID    string `json:"agent_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Model      string `json:"model,omitempty"`
}

// SpawnTask handles POST /api/v1/tasks/spawn.
func (h *Handlers) SpawnTask(c *fiber.Ctx) error {
	var req spawnTaskRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.engine.SpawnTask(engine.SpawnTaskParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		TaskID:     req.TaskID,
		AgentID:    req.AgentID,
		Role:       req.Role,
		Model:      req.Model,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// --- goal operations ---

type createGoalRequest struct {
	SessionKey string `json:"session_key"`
	Title      string `json:"title"`
	CondoID    string `json:"condo_id,omitempty"`
}

// CreateGoal handles POST /api/v1/goals.
func (h *Handlers) CreateGoal(c *fiber.Ctx) error {
	var req createGoalRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	goal, err := h.engine.CreateGoal(engine.CreateGoalParams{
		SessionKey: req.SessionKey,
		Title:      req.Title,
		CondoID:    req.CondoID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(goal)
}

// ListGoals handles GET /api/v1/goals?condo_id=....
func (h *Handlers) ListGoals(c *fiber.Ctx) error {
	goals, err := h.engine.ListGoals(c.Query("condo_id"))
	if err != nil {
		return respondError(c, err)
	}
	if goals == nil {
		goals = []*board.Goal{}
	}
	return c.JSON(goals)
}

// GetGoal handles GET /api/v1/goals/:id.
func (h *Handlers) GetGoal(c *fiber.Ctx) error {
	goal, err := h.engine.GetGoal(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(goal)
}

type setGoalStatusRequest struct {
	SessionKey   string `json:"session_key"`
	GoalID       string `json:"goal_id,omitempty"`
	Status       string `json:"status"`
	ExceptTaskID string `json:"except_task_id,omitempty"`
}

// SetGoalStatus handles POST /api/v1/goals/status.
func (h *Handlers) SetGoalStatus(c *fiber.Ctx) error {
	var req setGoalStatusRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	err := h.engine.SetGoalStatus(engine.SetGoalStatusParams{
		SessionKey:   req.SessionKey,
		GoalID:       req.GoalID,
		Status:       req.Status,
		ExceptTaskID: req.ExceptTaskID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": req.Status})
}

// --- notes and files ---

type appendNoteRequest struct {
	SessionKey string `json:"session_key"`
	GoalID     string `json:"goal_id,omitempty"`
	Note       string `json:"note"`
}

// AppendNote handles POST /api/v1/notes/append.
func (h *Handlers) AppendNote(c *fiber.Ctx) error {
	var req appendNoteRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	err := h.engine.AppendNote(engine.AppendNoteParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		Note:       req.Note,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type trackFilesRequest struct {
	SessionKey string            `json:"session_key"`
	GoalID     string            `json:"goal_id,omitempty"`
	Files      []engine.FileSpec `json:"files"`
}

// TrackFiles handles POST /api/v1/files/track.
func (h *Handlers) TrackFiles(c *fiber.Ctx) error {
	var req trackFilesRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.engine.TrackFiles(engine.TrackFilesParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		Files:      req.Files,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// --- plan operations ---

type planRequest struct {
	SessionKey string `json:"session_key"`
	GoalID     string `json:"goal_id,omitempty"`
	TaskID     string `json:"task_id"`
	Path       string `json:"path,omitempty"`
	Status     string `json:"status,omitempty"`
	StepIndex  *int   `json:"step_index,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

// SyncPlan handles POST /api/v1/plans/sync.
func (h *Handlers) SyncPlan(c *fiber.Ctx) error {
	var req planRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	plan, err := h.engine.SyncPlanFromFile(engine.SyncPlanParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		TaskID:     req.TaskID,
		Path:       req.Path,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(plan)
}

// SetPlanStatus handles POST /api/v1/plans/status.
func (h *Handlers) SetPlanStatus(c *fiber.Ctx) error {
	var req planRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	err := h.engine.SetPlanStatus(engine.SetPlanStatusParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		TaskID:     req.TaskID,
		Status:     board.PlanStatus(req.Status),
		Feedback:   req.Feedback,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": req.Status})
}

// UpdatePlanStep handles POST /api/v1/plans/step.
func (h *Handlers) UpdatePlanStep(c *fiber.Ctx) error {
	var req planRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.StepIndex == nil {
		return respondError(c, apperrors.NewValidation("step_index", "is required"))
	}
	err := h.engine.UpdatePlanStep(engine.UpdateStepParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		TaskID:     req.TaskID,
		StepIndex:  *req.StepIndex,
		Status:     board.StepStatus(req.Status),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ApprovePlan handles POST /api/v1/plans/approve.
func (h *Handlers) ApprovePlan(c *fiber.Ctx) error {
	var req planRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	err := h.engine.ApprovePlan(engine.ApprovePlanParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		TaskID:     req.TaskID,
		Comment:    req.Comment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": string(board.PlanApproved)})
}

// RejectPlan handles POST /api/v1/plans/reject.
func (h *Handlers) RejectPlan(c *fiber.Ctx) error {
	var req planRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	err := h.engine.RejectPlan(engine.RejectPlanParams{
		SessionKey: req.SessionKey,
		GoalID:     req.GoalID,
		TaskID:     req.TaskID,
		Feedback:   req.Feedback,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": string(board.PlanRejected)})
}

// PlanActivity handles GET /api/v1/plans/activity/:session?limit=N.
func (h *Handlers) PlanActivity(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return respondError(c, apperrors.NewValidation("limit", "must be a non-negative integer"))
		}
		limit = n
	}
	entries := h.engine.PlanActivity(c.Params("session"), limit)
	return c.JSON(fiber.Map{"entries": entries})
}

// --- condo operations ---

type condoRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// CreateCondo handles POST /api/v1/condos.
func (h *Handlers) CreateCondo(c *fiber.Ctx) error {
	var req condoRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	name, description, color := "", "", ""
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.Color != nil {
		color = *req.Color
	}
	created, err := h.condos.Create(name, description, color)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ListCondos handles GET /api/v1/condos.
func (h *Handlers) ListCondos(c *fiber.Ctx) error {
	condos, err := h.condos.List()
	if err != nil {
		return respondError(c, err)
	}
	if condos == nil {
		condos = []*board.Condo{}
	}
	return c.JSON(condos)
}

// GetCondo handles GET /api/v1/condos/:id.
func (h *Handlers) GetCondo(c *fiber.Ctx) error {
	found, err := h.condos.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(found)
}

// UpdateCondo handles PATCH /api/v1/condos/:id.
func (h *Handlers) UpdateCondo(c *fiber.Ctx) error {
	var req condoRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	updated, err := h.condos.Update(c.Params("id"), condo.UpdateFields{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// DeleteCondo handles DELETE /api/v1/condos/:id.
func (h *Handlers) DeleteCondo(c *fiber.Ctx) error {
	if err := h.condos.Delete(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz, running the registered dependency checks.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}

	results := h.checker.RunAll(c.Context())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"checks": results,
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}
