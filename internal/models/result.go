package models

import "time"

// Status classifies the outcome of a single cache lookup.
type Status string

const (
	StatusHit         Status = "hit"
	StatusMiss        Status = "miss"
	StatusError       Status = "error"
	StatusExpired     Status = "expired"
	StatusInvalidated Status = "invalidated"
)

// Result is the typed return value of a cache lookup. Status is StatusHit
// iff Entry is present and was live at evaluation time.
type Result struct {
	Status        Status
	Entry         *Entry
	ErrorMessage  string
	ExecutionTime time.Duration
}

// Hit builds a hit result for a live entry.
func Hit(entry *Entry, elapsed time.Duration) Result {
	return Result{Status: StatusHit, Entry: entry, ExecutionTime: elapsed}
}

// Miss builds a miss result.
func Miss(elapsed time.Duration) Result {
	return Result{Status: StatusMiss, ExecutionTime: elapsed}
}

// Expired builds a result for a key that was present but past its TTL.
func Expired(elapsed time.Duration) Result {
	return Result{Status: StatusExpired, ExecutionTime: elapsed}
}

// Errored builds a result for an internal failure that was converted at
// the layer boundary.
func Errored(msg string, elapsed time.Duration) Result {
	return Result{Status: StatusError, ErrorMessage: msg, ExecutionTime: elapsed}
}
