package services

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// LimitReachedError means the profile has no daily allowance left.
type LimitReachedError struct{ Message string }

func (e *LimitReachedError) Error() string { return e.Message }

// InvalidPositionError rejects a single heartbeat; the session stays active.
type InvalidPositionError struct{ Reason string }

func (e *InvalidPositionError) Error() string { return "Invalid playback position" }
