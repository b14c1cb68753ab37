package openmemory

import "context"

type requestIDContextKey struct{}
type sourceContextKey struct{}

// WithRequestID attaches a caller-chosen correlation ID to ctx. It is
// stamped into audit events emitted while serving the call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// WithSource attaches a caller label (for example "ui" or "cli") to ctx
// for audit metadata.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceContextKey{}, source)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func sourceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	source, _ := ctx.Value(sourceContextKey{}).(string)
	return source
}
