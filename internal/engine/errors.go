package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEligible means the worker's trophy count is below the task's
	// minimum.
	ErrNotEligible = errors.New("worker not eligible for task")
	// ErrSlotRaceLost means every worker slot was claimed before this
	// claim landed.
	ErrSlotRaceLost = errors.New("no worker slots remaining")
	// ErrAlreadyClaimed means this worker already holds a slot on the task.
	ErrAlreadyClaimed = errors.New("task already claimed by worker")
	// ErrInsufficientBalance means the agent cannot cover the task's
	// estimated price.
	ErrInsufficientBalance = errors.New("insufficient agent balance")
	// ErrAlreadyAdjudicated means the task already settled; callers get the
	// stored result instead of a re-run.
	ErrAlreadyAdjudicated = errors.New("task already adjudicated")
	// ErrNotSubmittable means the assignment is not in a state that accepts
	// a response.
	ErrNotSubmittable = errors.New("assignment not awaiting a response")
	// ErrTaskNotOpen means the task no longer accepts claims.
	ErrTaskNotOpen = errors.New("task not open for claims")
	// ErrNotTaskOwner means the caller is not the agent that posted the task.
	ErrNotTaskOwner = errors.New("task belongs to a different agent")
	// ErrNotCancellable means responses already arrived, so the task must
	// run to adjudication or expiry instead.
	ErrNotCancellable = errors.New("task already has submissions")
)

// ValidationError marks bad caller input, as opposed to state conflicts.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// CompensationFailureError means a task failed to create after the agent
// was debited, and the compensating refund also failed. The agent's funds
// are stranded until an operator reconciles.
type CompensationFailureError struct {
	TaskID  string
	AgentID string
	Amount  float64
	Cause   error
	Refund  error
}

func (e CompensationFailureError) Error() string {
	return fmt.Sprintf("task %s creation failed and refund of %.2f to agent %s also failed: create: %v; refund: %v",
		e.TaskID, e.Amount, e.AgentID, e.Cause, e.Refund)
}

func (e CompensationFailureError) Unwrap() error { return e.Cause }
