package interfaces

import (
	"context"

	"codesync/pkg/types"
)

// ExecutionLog records dispatched executions
// ARCHITECTURAL DISCOVERY: Append-only audit trail, never read back into room state
type ExecutionLog interface {
	// RecordExecution persists one request and its normalised result
	RecordExecution(ctx context.Context, record *types.ExecutionRecord) error

	// RecentExecutions returns the newest records of a room, newest first
	RecentExecutions(ctx context.Context, roomID string, limit int) ([]*types.ExecutionRecord, error)

	// HealthCheck verifies database connectivity and basic operations
	HealthCheck(ctx context.Context) error

	// Close closes the database connection and cleans up resources
	Close() error
}
