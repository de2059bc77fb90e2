package output

import (
	"context"

	"browser-agent/internal/domain/entity"
)

// BrowserSessionPort is the capability handle a run holds on its reserved
// browser session. An error wrapped in entity.SessionLostError means the
// session is dead and must not be reused.
type BrowserSessionPort interface {
	Execute(ctx context.Context, action entity.Action) (string, error)
	HealthCheck(ctx context.Context) error
	Terminate()
}

// SessionProvisioner starts a fresh browser session. Implemented by the
// browser infrastructure, consumed by the pool.
type SessionProvisioner interface {
	Provision(ctx context.Context) (BrowserSessionPort, error)
}
