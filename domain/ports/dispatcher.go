package ports

import (
	"context"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// Dispatcher serves host actions on the host side of the boundary. It always
// returns an encoded response envelope, failed or not.
type Dispatcher interface {
	Invoke(ctx context.Context, action string, params []byte, inv entities.ContextEnvelope) []byte
}
