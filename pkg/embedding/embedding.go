// Package embedding defines the interface to the external embedding model.
// The model is a black box: text in, vector out. Callers treat failure as
// "no embedding available", never as fatal.
package embedding

import "context"

// Provider generates a vector embedding for the given text. The returned
// slice is owned by the caller. Implementations should honor the context
// deadline; the cache layers always call with a bounded timeout.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, text string) ([]float64, error)

// Embed calls the wrapped function.
func (f ProviderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}
