// Package retrieval defines the interface to the external knowledge
// service consumed by the global cache layer.
package retrieval

import "context"

// Answer is a typed response from the knowledge service. Source reports
// where the data came from so routing callers can tell primary answers
// from degraded ones.
type Answer struct {
	Success    bool    `json:"success"`
	Data       any     `json:"data"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Client queries the knowledge service. Implementations must honor the
// context deadline and return an error (not panic) on transport failure;
// the global cache converts those errors into fallback lookups.
type Client interface {
	Query(ctx context.Context, query string) (Answer, error)
}

// ClientFunc adapts a plain function to the Client interface.
type ClientFunc func(ctx context.Context, query string) (Answer, error)

// Query calls the wrapped function.
func (f ClientFunc) Query(ctx context.Context, query string) (Answer, error) {
	return f(ctx, query)
}
