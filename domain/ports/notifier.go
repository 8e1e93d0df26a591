package ports

import (
	"context"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// Notifier sends fire-and-forget signals to the host.
type Notifier interface {
	InvokeNoWait(ctx context.Context, action string, params any, lctx entities.Context) error
}
