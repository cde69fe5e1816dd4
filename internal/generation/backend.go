package generation

import "context"

// Params are the per-request knobs a backend understands.
type Params struct {
	Temperature float64
}

// Backend is one text-generation strategy in the fallback chain.
type Backend interface {
	Name() string
	// Available is a cheap reachability probe run before the first attempt.
	Available(ctx context.Context) bool
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}
