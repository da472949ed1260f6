package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service records lifecycle transition and token events for downstream
// audit/notification consumers. Recording is fire-and-forget from the
// caller's perspective: failures are logged, never propagated.
type Service interface {
	Record(ctx context.Context, actorID *snowflake.ID, action, targetType string, targetID *string, metadata map[string]any)
}
