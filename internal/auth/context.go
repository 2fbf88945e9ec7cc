package auth

import "context"

type contextKey string

const viewerIDKey = contextKey("viewerID")

// WithViewerID stores the id of the logged-in viewer in the context.
func WithViewerID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, viewerIDKey, userID)
}

// ViewerIDFromContext returns the id of the logged-in viewer, or 0 when the
// request is anonymous.
func ViewerIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(viewerIDKey).(int); ok {
		return id
	}
	return 0
}
