package contextkeys

import "context"

// Custom key type avoids collisions with other packages' context values.
type contextKey string

const (
	// UserIDKey holds the authenticated user id set by the auth middleware.
	UserIDKey = contextKey("userID")
	// OrgIDKey holds the authenticated user's organization id.
	OrgIDKey = contextKey("orgID")
)

// WithIdentity attaches the caller identity to ctx.
func WithIdentity(ctx context.Context, userID, orgID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// UserID extracts the authenticated user id, or "" when absent.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// OrgID extracts the authenticated organization id, or "" when absent.
func OrgID(ctx context.Context) string {
	v, _ := ctx.Value(OrgIDKey).(string)
	return v
}
