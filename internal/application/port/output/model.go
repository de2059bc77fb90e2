package output

import (
	"context"

	"browser-agent/internal/domain/entity"
)

// ModelPort is the single contract all model backends implement: given the
// run's current state, propose the next action or signal completion.
type ModelPort interface {
	Decide(ctx context.Context, state entity.AgentState) (*entity.Decision, error)
}
