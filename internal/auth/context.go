package auth

import "context"

type contextKey string

const (
	contextKeyUser contextKey = "auth.user_id"
	contextKeyName contextKey = "auth.name"
)

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, userID int64, name string) context.Context {
	ctx = context.WithValue(ctx, contextKeyUser, userID)
	ctx = context.WithValue(ctx, contextKeyName, name)
	return ctx
}

// UserIDFromContext extracts the caller's user id, 0 when anonymous.
func UserIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if userID, ok := ctx.Value(contextKeyUser).(int64); ok {
		return userID
	}
	return 0
}

// NameFromContext extracts the caller's display name.
func NameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if name, ok := ctx.Value(contextKeyName).(string); ok {
		return name
	}
	return ""
}
