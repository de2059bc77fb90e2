package run

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"browser-agent/internal/application/port/output"
	"browser-agent/internal/domain/entity"
)

type Config struct {
	// StepTimeout bounds each external call (decide, act) when the task
	// does not carry its own.
	StepTimeout time.Duration
	// RetryBudget is the number of consecutive model failures tolerated
	// before the run fails.
	RetryBudget int
	// RetryBackoff is the base delay of the bounded exponential backoff
	// between decide retries.
	RetryBackoff time.Duration
	// SnapshotTail is how many trailing steps a Snapshot carries.
	SnapshotTail int
}

func DefaultConfig() Config {
	return Config{
		StepTimeout:  60 * time.Second,
		RetryBudget:  3,
		RetryBackoff: 500 * time.Millisecond,
		SnapshotTail: 5,
	}
}

const maxBackoff = 10 * time.Second

// ReleaseFunc returns the run's reserved session to the pool. clean=false
// marks the session unusable.
type ReleaseFunc func(clean bool)

// Run is one task execution. The step loop is single-threaded: only the
// goroutine inside Execute mutates phase, steps and result, so history is
// append-only without per-step locking. The mutex only guards the handoff
// to concurrent readers taking snapshots.
type Run struct {
	id       string
	task     entity.Task
	model    output.ModelPort
	session  output.BrowserSessionPort
	release  ReleaseFunc
	recorder output.RecorderPort
	logger   output.LoggerPort
	cfg      Config

	cancelled   atomic.Bool
	releaseOnce sync.Once
	done        chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	phase  entity.RunPhase
	steps  []entity.Step
	result *entity.RunResult
}

func New(
	id string,
	task entity.Task,
	model output.ModelPort,
	session output.BrowserSessionPort,
	release ReleaseFunc,
	recorder output.RecorderPort,
	logger output.LoggerPort,
	cfg Config,
) *Run {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultConfig().StepTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if cfg.SnapshotTail <= 0 {
		cfg.SnapshotTail = DefaultConfig().SnapshotTail
	}
	return &Run{
		id:       id,
		task:     task,
		model:    model,
		session:  session,
		release:  release,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
		done:     make(chan struct{}),
		phase:    entity.RunPhasePending,
	}
}

func (r *Run) ID() string { return r.id }

// Done is closed when the run reaches a terminal phase.
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel requests cancellation. The request is observed at the loop's
// checkpoints; the in-flight external call is aborted through the run
// context so a stuck call cannot delay cancellation past its timeout.
// Safe to call at any time, any number of times.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Snapshot returns a read-only copy of the run's observable state.
func (r *Run) Snapshot() *entity.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := r.cfg.SnapshotTail
	if tail > len(r.steps) {
		tail = len(r.steps)
	}
	last := make([]entity.Step, tail)
	copy(last, r.steps[len(r.steps)-tail:])

	snap := &entity.RunSnapshot{
		ID:        r.id,
		Phase:     r.phase,
		StepCount: len(r.steps),
		LastSteps: last,
	}
	if r.result != nil {
		res := *r.result
		snap.Result = &res
	}
	return snap
}

// History returns a copy of the full ordered step sequence.
func (r *Run) History() []entity.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := make([]entity.Step, len(r.steps))
	copy(steps, r.steps)
	return steps
}

// Result returns the terminal result, or nil while the run is live.
func (r *Run) Result() *entity.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return nil
	}
	res := *r.result
	return &res
}

// Execute drives the decide/act loop until a terminal phase. It must be
// called exactly once.
func (r *Run) Execute(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.cancel = cancel
	r.phase = entity.RunPhaseRunning
	r.mu.Unlock()

	r.logger.Info("Run started", "max_steps", r.task.MaxSteps)

	failures := 0
	for {
		if r.cancelled.Load() {
			r.finishCancelled()
			return
		}
		if len(r.steps) >= r.task.MaxSteps {
			r.finishFailed(entity.FailureStepLimitExceeded,
				fmt.Errorf("step limit of %d reached without a final answer", r.task.MaxSteps))
			return
		}

		step := entity.Step{Seq: len(r.steps), DecideStart: time.Now()}

		decision, err := r.decide(runCtx, &failures)
		if r.cancelled.Load() {
			// Any decided-but-not-started action is discarded.
			r.finishCancelled()
			return
		}
		if err != nil {
			step.Error = err.Error()
			r.appendStep(step)
			r.finishFailed(entity.FailureModelError, err)
			return
		}

		if decision.Done {
			r.appendStep(step)
			r.finishSucceeded(decision.FinalAnswer)
			return
		}

		step.Action = decision.Action
		step.ActStart = time.Now()
		obs, actErr := r.act(runCtx, *decision.Action)
		step.ActEnd = time.Now()

		if actErr != nil {
			step.Error = actErr.Error()
			if entity.IsSessionLost(actErr) {
				r.appendStep(step)
				r.releaseSession(false)
				r.finishFailed(entity.FailureSessionLost, actErr)
				return
			}
			// Recoverable action errors become the observation so the model
			// can react on the next decide.
			step.Observation = "Error: " + actErr.Error()
		} else {
			step.Observation = obs
		}

		if r.cancelled.Load() {
			r.appendStep(step)
			r.finishCancelled()
			return
		}

		r.appendStep(step)
		if actErr == nil {
			failures = 0
		}
	}
}

// decide calls the model with the current state, retrying transient errors
// with bounded exponential backoff until the budget is spent.
func (r *Run) decide(ctx context.Context, failures *int) (*entity.Decision, error) {
	state := entity.AgentState{Task: r.task, Steps: r.History()}

	for attempt := 0; ; attempt++ {
		decideCtx, cancel := context.WithTimeout(ctx, r.stepTimeout())
		decision, err := r.model.Decide(decideCtx, state)
		cancel()
		if err == nil {
			if decision == nil || (!decision.Done && decision.Action == nil) {
				err = fmt.Errorf("model returned neither an action nor a final answer")
			} else {
				return decision, nil
			}
		}
		if r.cancelled.Load() || ctx.Err() != nil {
			return nil, err
		}

		*failures++
		r.logger.Warn("Model decide failed", "attempt", attempt+1, "consecutive_failures", *failures, "error", err)
		if *failures > r.cfg.RetryBudget {
			return nil, fmt.Errorf("retry budget of %d exhausted: %w", r.cfg.RetryBudget, err)
		}

		backoff := r.cfg.RetryBackoff << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(backoff):
		}
	}
}

func (r *Run) act(ctx context.Context, action entity.Action) (string, error) {
	actCtx, cancel := context.WithTimeout(ctx, r.stepTimeout())
	defer cancel()
	return r.session.Execute(actCtx, action)
}

func (r *Run) stepTimeout() time.Duration {
	if r.task.StepTimeout > 0 {
		return r.task.StepTimeout
	}
	return r.cfg.StepTimeout
}

func (r *Run) appendStep(step entity.Step) {
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
	if r.recorder != nil {
		r.recorder.RecordStep(r.id, step)
	}
}

// releaseSession hands the reserved session back exactly once, whichever
// terminal path gets there first.
func (r *Run) releaseSession(clean bool) {
	r.releaseOnce.Do(func() {
		if r.release != nil {
			r.release(clean)
		}
	})
}

func (r *Run) finishSucceeded(answer string) {
	r.releaseSession(true)
	r.setResult(entity.RunResult{
		Phase:       entity.RunPhaseSucceeded,
		FinalAnswer: answer,
		FinishedAt:  time.Now(),
	})
	r.logger.Info("Run succeeded", "steps", len(r.steps))
}

func (r *Run) finishFailed(reason entity.FailureReason, err error) {
	r.releaseSession(reason != entity.FailureSessionLost)
	r.setResult(entity.RunResult{
		Phase:      entity.RunPhaseFailed,
		Reason:     reason,
		Error:      err.Error(),
		FinishedAt: time.Now(),
	})
	r.logger.Error("Run failed", "reason", string(reason), "error", err)
}

func (r *Run) finishCancelled() {
	r.releaseSession(true)
	r.setResult(entity.RunResult{
		Phase:      entity.RunPhaseCancelled,
		FinishedAt: time.Now(),
	})
	r.logger.Info("Run cancelled", "steps", len(r.steps))
}

func (r *Run) setResult(result entity.RunResult) {
	r.mu.Lock()
	r.phase = result.Phase
	r.result = &result
	r.mu.Unlock()
	close(r.done)
}
