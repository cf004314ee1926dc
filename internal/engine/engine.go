// Package engine implements the goal/task/plan mutation core: boundary
// resolution, task and goal state transitions under gating invariants, the
// plan approval state machine, and session spawning.
//
// Every operation runs inside exactly one store Update call, and every
// gating or validation check runs before the first field is mutated. A
// rejected call therefore always leaves the board unchanged.
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/acastellana/clawcondos/internal/board"
	"github.com/acastellana/clawcondos/internal/metrics"
	"github.com/acastellana/clawcondos/internal/planfile"
	"github.com/acastellana/clawcondos/internal/planlog"
)

// Store is the persistence surface the engine mutates through.
type Store interface {
	Update(fn func(b *board.Board) error) error
	View(fn func(b *board.Board) error) error
	NewID(prefix string) string
}

// Notifier persists a user-facing notification onto the board. Called inside
// the store critical section.
type Notifier interface {
	Notify(b *board.Board, n board.Notification)
}

// Messenger delivers a payload to a running agent session. Delivery is
// best-effort: the engine logs failures and never fails the operation.
type Messenger interface {
	SendToSession(sessionKey string, payload map[string]any) error
}

// RoleResolver maps a board role to the agent id that fills it.
type RoleResolver interface {
	Resolve(role string) (string, error)
}

// Engine is the mutation core. Construct once and share.
type Engine struct {
	store     Store
	logbuf    *planlog.Buffer
	notifier  Notifier
	messenger Messenger
	roles     RoleResolver
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	// readPlan is swappable so plan workflow tests can run without a file
	// on disk.
	readPlan func(path string) (*planfile.Document, error)
}

// New creates an Engine. metrics may be nil.
func New(store Store, logbuf *planlog.Buffer, notifier Notifier, messenger Messenger, roles RoleResolver, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		logbuf:    logbuf,
		notifier:  notifier,
		messenger: messenger,
		roles:     roles,
		metrics:   m,
		logger:    logger.With().Str("component", "engine").Logger(),
		readPlan:  planfile.Read,
	}
}

// observe records the op outcome. Deferred at the top of every public
// operation.
func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOp(op, status)
	e.metrics.ObserveOp(op, time.Since(start).Seconds())
}

// sendBestEffort delivers a session message after the mutation has been
// committed. Failures are logged and counted, never returned.
func (e *Engine) sendBestEffort(sessionKey string, payload map[string]any) {
	if e.messenger == nil || sessionKey == "" {
		return
	}
	if err := e.messenger.SendToSession(sessionKey, payload); err != nil {
		e.logger.Warn().Err(err).Str("session", sessionKey).Msg("session message dropped")
	}
}

// refreshGoalGauge republishes the active-goal count. Called inside the
// store critical section by operations that change goal status or add goals.
func (e *Engine) refreshGoalGauge(b *board.Board) {
	if e.metrics == nil {
		return
	}
	active := 0
	for _, g := range b.Goals {
		if g.Status == board.GoalActive {
			active++
		}
	}
	e.metrics.SetGoalsActive(float64(active))
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
