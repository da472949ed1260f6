// Package usercontext carries the authenticated account identity
// through request contexts. Authentication itself happens outside this
// service; the HTTP layer trusts the identity handed to it.
package usercontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type contextKey struct{}

func WithUserID(ctx context.Context, userID snowflake.ID) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	v, ok := ctx.Value(contextKey{}).(snowflake.ID)
	if !ok || v == 0 {
		return 0, false
	}
	return v, true
}
