package execution

import (
	"context"
	"time"

	"codesync/pkg/types"
)

// RefusingExecutor stands in for an executor that cannot run safely on this host
type RefusingExecutor struct {
	reason string
}

// NewRefusingExecutor creates an executor whose every run fails with reason
func NewRefusingExecutor(reason string) *RefusingExecutor {
	return &RefusingExecutor{reason: reason}
}

// Run implements interfaces.Executor
func (r *RefusingExecutor) Run(ctx context.Context, source string, budget time.Duration) types.ExecutionResult {
	return types.NewErrorResult("", r.reason)
}
