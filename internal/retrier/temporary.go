package retrier

import "errors"

// Temporary marks an error as transient: the failed operation may succeed
// on a later attempt.
type Temporary interface {
	Temporary() bool
}

// IsTemporary reports whether err, or any error it wraps, declares itself
// transient through the Temporary interface.
func IsTemporary(err error) bool {
	var temp Temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}
