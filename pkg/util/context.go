// Package util carries the per-invocation execution context through the
// pipeline.
package util

import (
	"context"
)

type contextKey string

const optionsKey contextKey = "runOptions"

// RunOptions is created once per invocation and read-only thereafter.
type RunOptions struct {
	Verbose bool
}

// WithOptions adds the invocation options to the context
func WithOptions(ctx context.Context, opts RunOptions) context.Context {
	return context.WithValue(ctx, optionsKey, opts)
}

// OptionsFrom returns the invocation options stored in the context, or the
// zero value when none were set.
func OptionsFrom(ctx context.Context) RunOptions {
	if ctx == nil {
		return RunOptions{}
	}
	opts, ok := ctx.Value(optionsKey).(RunOptions)
	if !ok {
		return RunOptions{}
	}
	return opts
}

// IsVerbose returns true if verbose mode is enabled in the context
func IsVerbose(ctx context.Context) bool {
	return OptionsFrom(ctx).Verbose
}
