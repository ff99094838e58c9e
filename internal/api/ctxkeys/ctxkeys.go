// Package ctxkeys holds the request context keys shared by middleware and handlers.
package ctxkeys

import "context"

// Key is the named type for API context keys so they never collide with plain strings.
type Key string

const (
	// AuthMethod records how the request authenticated: "open", "password" or "session".
	AuthMethod Key = "auth_method"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String reads a string value set with WithValue.
func String(ctx context.Context, key Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
