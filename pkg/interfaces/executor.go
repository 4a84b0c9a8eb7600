package interfaces

import (
	"context"
	"time"

	"codesync/pkg/types"
)

// Executor runs source text for one language under a bounded budget
// FUNCTIONAL DISCOVERY: Run never returns a Go error - every failure is folded
// into ExecutionResult.ErrorText so it can be broadcast like a success
type Executor interface {
	// Run executes source and must return within budget plus a small grace period
	Run(ctx context.Context, source string, budget time.Duration) types.ExecutionResult
}
