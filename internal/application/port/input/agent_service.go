package input

import (
	"context"
	"time"

	"browser-agent/internal/domain/entity"
)

// AgentService is the engine's public surface, consumed in-process by the
// presentation layer.
type AgentService interface {
	// Start reserves a session, creates a run for the slot and returns its
	// id immediately. The step loop executes on its own goroutine.
	Start(ctx context.Context, slot string, task entity.Task) (string, error)

	// Cancel requests cancellation. Idempotent: cancelling a terminal or
	// already-cancelling run is a no-op.
	Cancel(runID string) error

	// Status returns a read-only snapshot of the run.
	Status(runID string) (*entity.RunSnapshot, error)

	// History returns the full ordered step sequence recorded so far.
	History(runID string) ([]entity.Step, error)

	// Await blocks until the run is terminal or the timeout elapses.
	Await(ctx context.Context, runID string, timeout time.Duration) (*entity.RunResult, error)
}
