package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

type contextKey struct {
	name string
}

var guestNameKey = &contextKey{name: "guest_name"}

// WithGuestName names the guest in host function logs.
func WithGuestName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, guestNameKey, name)
}

// GuestName returns the name set with WithGuestName, falling back to the
// module name.
func GuestName(ctx context.Context, mod api.Module) string {
	if name, ok := ctx.Value(guestNameKey).(string); ok {
		return name
	}
	if mod == nil {
		return ""
	}
	return mod.Name()
}
