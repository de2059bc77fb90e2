package agentmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"browser-agent/internal/application/port/input"
	"browser-agent/internal/application/port/output"
	"browser-agent/internal/domain/entity"
	"browser-agent/internal/usecase/browsermanager"
	"browser-agent/internal/usecase/run"

	"github.com/google/uuid"
)

type Config struct {
	// AcquireTimeout bounds how long Start waits for a free browser session.
	AcquireTimeout time.Duration
	// MaxRunDuration is the wall-clock backstop: a run still live after
	// this long is cancelled even if no single step timed out.
	MaxRunDuration time.Duration
	// DefaultMaxSteps applies when a task does not set its own limit.
	DefaultMaxSteps int
	// Run carries the per-run loop settings.
	Run run.Config
}

func DefaultConfig() Config {
	return Config{
		AcquireTimeout:  30 * time.Second,
		MaxRunDuration:  30 * time.Minute,
		DefaultMaxSteps: 50,
		Run:             run.DefaultConfig(),
	}
}

var _ input.AgentService = (*Manager)(nil)

// Manager is the engine's entry point. It enforces one active run per slot,
// mediates session reservation and guarantees each run releases its session
// exactly once regardless of the terminal path.
type Manager struct {
	cfg      Config
	sessions *browsermanager.Manager
	model    output.ModelPort
	recorder output.RecorderPort
	logger   output.LoggerPort

	mu     sync.Mutex
	runs   map[string]*run.Run
	slots  map[string]string
	closed bool

	active sync.WaitGroup
}

func New(
	cfg Config,
	sessions *browsermanager.Manager,
	model output.ModelPort,
	recorder output.RecorderPort,
	logger output.LoggerPort,
) *Manager {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig().AcquireTimeout
	}
	if cfg.MaxRunDuration <= 0 {
		cfg.MaxRunDuration = DefaultConfig().MaxRunDuration
	}
	if cfg.DefaultMaxSteps <= 0 {
		cfg.DefaultMaxSteps = DefaultConfig().DefaultMaxSteps
	}
	return &Manager{
		cfg:      cfg,
		sessions: sessions,
		model:    model,
		recorder: recorder,
		logger:   logger,
		runs:     make(map[string]*run.Run),
		slots:    make(map[string]string),
	}
}

// Start reserves a session, creates the run and schedules its step loop on
// its own goroutine. The returned id is valid immediately for Status,
// History, Cancel and Await.
func (m *Manager) Start(ctx context.Context, slot string, task entity.Task) (string, error) {
	if err := task.Validate(); err != nil {
		return "", fmt.Errorf("invalid task: %w", err)
	}
	if task.MaxSteps == 0 {
		task.MaxSteps = m.cfg.DefaultMaxSteps
	}

	id := uuid.NewString()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", entity.ErrShuttingDown
	}
	if existing, ok := m.slots[slot]; ok {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: slot %q is running %s", entity.ErrSlotBusy, slot, existing)
	}
	// The slot is reserved before the (potentially slow) session
	// acquisition so a concurrent Start on the same slot fails fast.
	m.slots[slot] = id
	m.mu.Unlock()

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, m.cfg.AcquireTimeout)
	handle, err := m.sessions.Acquire(acquireCtx, id)
	cancelAcquire()
	if err != nil {
		m.clearSlot(slot, id)
		return "", err
	}

	release := func(clean bool) {
		m.sessions.Release(handle, clean)
	}

	r := run.New(
		id,
		task,
		m.model,
		handle.Session,
		release,
		m.recorder,
		m.logger.WithField("run_id", id),
		m.cfg.Run,
	)

	// Shutdown may have begun during the slow acquire. Registering now would
	// miss Shutdown's cancel sweep and race active.Add against active.Wait,
	// so the reserved session goes straight back instead.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.sessions.Release(handle, false)
		m.clearSlot(slot, id)
		return "", entity.ErrShuttingDown
	}
	m.runs[id] = r
	m.active.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.active.Done()

		backstop := time.AfterFunc(m.cfg.MaxRunDuration, func() {
			m.logger.Warn("Run exceeded wall-clock limit, cancelling", "run_id", id)
			r.Cancel()
		})
		defer backstop.Stop()

		r.Execute(context.Background())
		m.clearSlot(slot, id)
	}()

	m.logger.Info("Run started", "run_id", id, "slot", slot, "session_id", handle.ID)
	return id, nil
}

// Cancel requests cancellation of a run. Cancelling a terminal or
// already-cancelling run is a no-op that still reports success.
func (m *Manager) Cancel(runID string) error {
	r, ok := m.lookup(runID)
	if !ok {
		return fmt.Errorf("%w: %s", entity.ErrNotFound, runID)
	}
	r.Cancel()
	return nil
}

// Status returns a snapshot of the run without blocking on its step loop
// beyond the copy.
func (m *Manager) Status(runID string) (*entity.RunSnapshot, error) {
	r, ok := m.lookup(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, runID)
	}
	return r.Snapshot(), nil
}

// History returns the full ordered step sequence recorded so far.
func (m *Manager) History(runID string) ([]entity.Step, error) {
	r, ok := m.lookup(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, runID)
	}
	return r.History(), nil
}

// Await blocks until the run reaches a terminal phase, the timeout elapses
// or ctx is done.
func (m *Manager) Await(ctx context.Context, runID string, timeout time.Duration) (*entity.RunResult, error) {
	r, ok := m.lookup(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, runID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.Done():
		return r.Result(), nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", entity.ErrAwaitTimeout, runID, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prune drops terminal runs older than maxAge from the in-memory registry.
// Their recordings stay on disk.
func (m *Manager) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, r := range m.runs {
		res := r.Result()
		if res != nil && res.FinishedAt.Before(cutoff) {
			delete(m.runs, id)
			pruned++
		}
	}
	return pruned
}

// Shutdown cancels every live run, waits for the loops to finish and then
// drains the session pool.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	live := make([]*run.Run, 0, len(m.runs))
	for _, r := range m.runs {
		live = append(live, r)
	}
	m.mu.Unlock()

	for _, r := range live {
		r.Cancel()
	}
	m.active.Wait()
	m.sessions.Shutdown()
	m.logger.Info("Agent manager shut down")
}

func (m *Manager) lookup(runID string) (*run.Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	return r, ok
}

func (m *Manager) clearSlot(slot, runID string) {
	m.mu.Lock()
	if m.slots[slot] == runID {
		delete(m.slots, slot)
	}
	m.mu.Unlock()
}
