package ports

import (
	"context"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

// PlatformPort is the home-automation platform the bridge mirrors: it
// supplies entity state and accepts service calls.
type PlatformPort interface {
	// States returns a snapshot of all supported-domain entities.
	States(ctx context.Context) ([]model.EntityState, error)

	// Events streams state changes until ctx is cancelled. The channel is
	// closed when the stream ends.
	Events(ctx context.Context) (<-chan model.EntityState, error)

	// CallService invokes one platform service. A non-nil error means the
	// platform rejected the call or it timed out.
	CallService(ctx context.Context, call model.ServiceCall) error

	Configure(url, token string)
	IsConfigured() bool
}
