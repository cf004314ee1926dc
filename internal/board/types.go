// Package board defines the condo/goal/task/plan hierarchy and the pure
// derivations over it (task stage mapping, plan status recomputation).
// Mutation rules live in internal/engine; this package only knows the shape
// of the document and what each field means.
package board

// Condo is a named grouping of goals sharing an ownership boundary.
type Condo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	CreatedAtMs int64  `json:"created_at_ms"`
	UpdatedAtMs int64  `json:"updated_at_ms"`
}

// Goal is a unit of work containing tasks, bound to zero-or-one condo and
// reachable from one or more agent sessions.
type Goal struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Status    string  `json:"status"` // active | done
	Completed bool    `json:"completed"`
	CondoID   string  `json:"condo_id,omitempty"`
	Tasks     []*Task `json:"tasks"`
	// Sessions lists every session key that has been attached to this goal,
	// including spawned task sessions.
	Sessions          []string  `json:"sessions,omitempty"`
	NextTask          *string   `json:"next_task,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Files             []FileRef `json:"files,omitempty"`
	PMSessionKey      string    `json:"pm_session_key,omitempty"`
	PMCondoSessionKey string    `json:"pm_condo_session_key,omitempty"`
	CreatedAtMs       int64     `json:"created_at_ms"`
	UpdatedAtMs       int64     `json:"updated_at_ms"`
}

// Task is an actionable unit within a goal, optionally executed through a
// dedicated agent session and optionally carrying an execution plan.
type Task struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	// Status is an open string; pending, in-progress, done, blocked and
	// waiting are specially mapped, anything else lands in stage backlog.
	Status      string   `json:"status"`
	Done        bool     `json:"done"`
	Stage       string   `json:"stage"`
	Summary     string   `json:"summary,omitempty"`
	SessionKey  string   `json:"session_key,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Plan        *Plan    `json:"plan,omitempty"`
	CreatedAtMs int64    `json:"created_at_ms"`
	UpdatedAtMs int64    `json:"updated_at_ms"`
}

// Plan is an ordered, approvable sequence of steps attached to a task.
type Plan struct {
	Status          PlanStatus `json:"status"`
	FilePath        string     `json:"file_path,omitempty"`
	Content         string     `json:"content,omitempty"`
	Steps           []PlanStep `json:"steps"`
	Feedback        string     `json:"feedback,omitempty"`
	ApprovalComment string     `json:"approval_comment,omitempty"`
	ApprovedAtMs    int64      `json:"approved_at_ms,omitempty"`
	RejectedAtMs    int64      `json:"rejected_at_ms,omitempty"`
	UpdatedAtMs     int64      `json:"updated_at_ms"`
}

// PlanStep is one ordered, index-addressed step of a plan.
type PlanStep struct {
	Index         int        `json:"index"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        StepStatus `json:"status"`
	StartedAtMs   int64      `json:"started_at_ms,omitempty"`
	CompletedAtMs int64      `json:"completed_at_ms,omitempty"`
}

// FileRef records a file touched while working on a goal. Path is the
// deduplication key: at most one reference per distinct path per goal.
type FileRef struct {
	Path       string `json:"path"`
	TaskID     string `json:"task_id,omitempty"`
	SessionKey string `json:"session_key,omitempty"`
	AddedAtMs  int64  `json:"added_at_ms"`
	Source     string `json:"source,omitempty"`
}

// Notification is a persisted user-facing notification record.
type Notification struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	GoalID      string `json:"goal_id,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	SessionKey  string `json:"session_key,omitempty"`
	Title       string `json:"title"`
	Detail      string `json:"detail,omitempty"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// Board is the whole persisted document: every condo and goal plus the
// session binding indexes. It is loaded, mutated and saved as a unit.
type Board struct {
	Condos []*Condo `json:"condos"`
	Goals  []*Goal  `json:"goals"`
	// SessionGoals maps a session key to the goal it is bound to.
	SessionGoals map[string]string `json:"session_goals"`
	// SessionCondos maps a session key to the condo it is bound to
	// (condo-level PM sessions).
	SessionCondos map[string]string `json:"session_condos"`
	Notifications []Notification    `json:"notifications,omitempty"`
}

// NewBoard returns an empty board with initialized indexes.
func NewBoard() *Board {
	return &Board{
		SessionGoals:  make(map[string]string),
		SessionCondos: make(map[string]string),
	}
}

// Normalize re-initializes nil maps after JSON decoding an older document.
func (b *Board) Normalize() {
	if b.SessionGoals == nil {
		b.SessionGoals = make(map[string]string)
	}
	if b.SessionCondos == nil {
		b.SessionCondos = make(map[string]string)
	}
}

// FindGoal returns the goal with the given id, or nil.
func (b *Board) FindGoal(id string) *Goal {
	for _, g := range b.Goals {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// FindCondo returns the condo with the given id, or nil.
func (b *Board) FindCondo(id string) *Condo {
	for _, c := range b.Condos {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// GoalForSession returns the goal the session key is bound to, or nil.
func (b *Board) GoalForSession(sessionKey string) *Goal {
	id, ok := b.SessionGoals[sessionKey]
	if !ok {
		return nil
	}
	return b.FindGoal(id)
}

// CondoForSession returns the condo id the session key is bound to ("" if
// unbound).
func (b *Board) CondoForSession(sessionKey string) string {
	return b.SessionCondos[sessionKey]
}

// FindTask returns the task with the given id on this goal, or nil.
func (g *Goal) FindTask(id string) *Task {
	for _, t := range g.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// PendingTasks counts tasks with done == false, excluding the task with id
// exceptID (used when a task completion and a goal completion are requested
// in the same call).
func (g *Goal) PendingTasks(exceptID string) int {
	n := 0
	for _, t := range g.Tasks {
		if t.Done {
			continue
		}
		if exceptID != "" && t.ID == exceptID {
			continue
		}
		n++
	}
	return n
}

// HasSession reports whether the session key is already attached to the goal.
func (g *Goal) HasSession(key string) bool {
	for _, s := range g.Sessions {
		if s == key {
			return true
		}
	}
	return false
}
