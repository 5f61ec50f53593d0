package domain

import "fmt"

// ValidationError reports a missing or out-of-range field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError reports a uniqueness violation, e.g. a duplicate
// participant email within a task.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return e.Reason }

// NetworkError wraps a transport failure between client and server. The
// optimistic reconciler treats it like any other rejection; it exists so
// callers that want to distinguish transient failures can.
type NetworkError struct {
	Err error
}

func (e NetworkError) Error() string { return fmt.Sprintf("network: %v", e.Err) }
func (e NetworkError) Unwrap() error { return e.Err }
