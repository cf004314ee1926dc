// Package errors provides the structured error taxonomy for the condo board.
//
// Every engine operation returns either a success payload or one of these
// typed errors; transport layers map them to status codes without string
// matching. A rejected call never mutates state, so callers can treat any
// error here as "nothing happened".
package errors

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed request parameter.
// It is raised before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidation creates a ValidationError for a named field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an absent goal, task, step, plan or condo.
type NotFoundError struct {
	Kind string // "goal", "task", "step", "plan", "condo", "session"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// BoundaryError reports a cross-goal or cross-condo access denial, including
// operations outside the cross-goal allowlist.
type BoundaryError struct {
	Op     string
	Reason string
}

func (e *BoundaryError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("boundary violation: %s", e.Reason)
	}
	return fmt.Sprintf("boundary violation in %s: %s", e.Op, e.Reason)
}

// NewBoundary creates a BoundaryError.
func NewBoundary(op, reason string) *BoundaryError {
	return &BoundaryError{Op: op, Reason: reason}
}

// GatingError reports a state-machine precondition failure: a goal-done
// request with pending tasks, or a plan approval from the wrong lifecycle
// state. Pending carries the exact remainder for goal gating (0 otherwise).
type GatingError struct {
	Reason  string
	Pending int
}

func (e *GatingError) Error() string {
	return e.Reason
}

// NewGating creates a GatingError.
func NewGating(reason string) *GatingError {
	return &GatingError{Reason: reason}
}

// NewPendingTasks creates the goal gating error with the exact pending count.
func NewPendingTasks(count int) *GatingError {
	noun := "tasks"
	if count == 1 {
		noun = "task"
	}
	return &GatingError{
		Reason:  fmt.Sprintf("%d %s still pending", count, noun),
		Pending: count,
	}
}

// DeliveryError reports a best-effort notification or session-message failure.
// It is logged and counted but never returned as an operation's failure.
type DeliveryError struct {
	Target string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// NewDelivery creates a DeliveryError wrapping the transport failure.
func NewDelivery(target string, err error) *DeliveryError {
	return &DeliveryError{Target: target, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsBoundary reports whether err is a BoundaryError.
func IsBoundary(err error) bool {
	var e *BoundaryError
	return errors.As(err, &e)
}

// IsGating reports whether err is a GatingError.
func IsGating(err error) bool {
	var e *GatingError
	return errors.As(err, &e)
}
