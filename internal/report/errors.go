package report

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the API layer.
var (
	// ErrAlreadyRunning is returned when a trigger (clock or manual) finds the
	// schedule's run lock held. The trigger is rejected, never queued.
	ErrAlreadyRunning = errors.New("schedule is already running")

	// ErrSchedulePaused is returned for a manual run of a paused schedule.
	ErrSchedulePaused = errors.New("schedule is paused")

	// ErrScheduleNotFound covers unknown or cross-tenant schedule ids.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrArtifactNotFound covers unknown, expired or traversal-rejected
	// artifact lookups. Expiry and absence are deliberately indistinguishable
	// to the caller.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// ValidationError rejects malformed input before any persistence. Maps to 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AuthorizationError signals an insufficient role for a report type. Maps to 403.
type AuthorizationError struct {
	Role       string
	ReportType Type
	Action     string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q may not %s %s reports", e.Role, e.Action, e.ReportType)
}

// ExecutionError wraps a data-fetch, render or store failure inside a run. It
// is recorded in history and never propagates out of the coordinator.
type ExecutionError struct {
	Stage string // "fetch", "render", "store", "timeout"
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at %s: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// DeliveryError is one recipient's terminal send failure after retries. It is
// isolated per recipient and never fails the run as a whole.
type DeliveryError struct {
	Recipient string
	Attempts  int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed after %d attempts: %v", e.Recipient, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
