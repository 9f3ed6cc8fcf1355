package core

import "fmt"

// The pipeline never returns raw collaborator errors. Every failure crossing
// its boundary is one of the types below, matchable with errors.As.

// DatabaseError wraps a failed row fetch or store-delegated aggregate.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// TimeoutError signals a slow query, surfaced distinctly from a generic
// database failure so callers can apply a different policy.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout during %s: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NormalizationDataError wraps a factor or population provider failure.
// A missing factor for an individual period is not an error; only a failed
// provider call is.
type NormalizationDataError struct {
	Err error
}

func (e *NormalizationDataError) Error() string {
	return fmt.Sprintf("normalization data unavailable: %v", e.Err)
}

func (e *NormalizationDataError) Unwrap() error { return e.Err }
