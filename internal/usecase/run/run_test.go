package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"browser-agent/internal/domain/entity"
	"browser-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedModel returns canned decisions in order, then keeps returning the
// last one.
type scriptedModel struct {
	mu        sync.Mutex
	decisions []func() (*entity.Decision, error)
	calls     int
}

func (m *scriptedModel) Decide(ctx context.Context, state entity.AgentState) (*entity.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.calls
	if idx >= len(m.decisions) {
		idx = len(m.decisions) - 1
	}
	m.calls++
	return m.decisions[idx]()
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func actionDecision(name string) func() (*entity.Decision, error) {
	return func() (*entity.Decision, error) {
		return &entity.Decision{Action: &entity.Action{Name: name, Arguments: "{}"}}, nil
	}
}

func doneDecision(answer string) func() (*entity.Decision, error) {
	return func() (*entity.Decision, error) {
		return &entity.Decision{Done: true, FinalAnswer: answer}, nil
	}
}

type fakeSession struct {
	mu      sync.Mutex
	execute func(action entity.Action) (string, error)
	calls   int
}

func (s *fakeSession) Execute(ctx context.Context, action entity.Action) (string, error) {
	s.mu.Lock()
	s.calls++
	fn := s.execute
	s.mu.Unlock()
	if fn == nil {
		return "ok", nil
	}
	return fn(action)
}

func (s *fakeSession) HealthCheck(ctx context.Context) error { return nil }
func (s *fakeSession) Terminate()                            {}

type releaseTracker struct {
	mu    sync.Mutex
	calls []bool
}

func (t *releaseTracker) fn(clean bool) {
	t.mu.Lock()
	t.calls = append(t.calls, clean)
	t.mu.Unlock()
}

func (t *releaseTracker) snapshot() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]bool, len(t.calls))
	copy(out, t.calls)
	return out
}

func testConfig() Config {
	return Config{
		StepTimeout:  time.Second,
		RetryBudget:  3,
		RetryBackoff: time.Millisecond,
		SnapshotTail: 5,
	}
}

func newTestRun(t *testing.T, task entity.Task, model *scriptedModel, session *fakeSession, release *releaseTracker) *Run {
	t.Helper()
	return New("run-1", task, model, session, release.fn, nil, logger.NewNop(), testConfig())
}

func TestRunSucceedsOnImmediateFinalAnswer(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		doneDecision("42"),
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "answer", MaxSteps: 10}, model, session, release)
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseSucceeded, res.Phase)
	assert.Equal(t, "42", res.FinalAnswer)
	assert.Len(t, r.History(), 1)
	assert.Equal(t, []bool{true}, release.snapshot())

	select {
	case <-r.Done():
	default:
		t.Fatal("done channel should be closed after a terminal phase")
	}
}

func TestRunExecutesActionsUntilDone(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		actionDecision("navigate"),
		actionDecision("extract_text"),
		doneDecision("found it"),
	}}
	session := &fakeSession{execute: func(action entity.Action) (string, error) {
		return "observed " + action.Name, nil
	}}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "browse", MaxSteps: 10}, model, session, release)
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseSucceeded, res.Phase)

	steps := r.History()
	require.Len(t, steps, 3)
	assert.Equal(t, "navigate", steps[0].Action.Name)
	assert.Equal(t, "observed navigate", steps[0].Observation)
	assert.Equal(t, "extract_text", steps[1].Action.Name)
	assert.Nil(t, steps[2].Action, "final step carries no action")
}

func TestRunFailsAtStepLimit(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		actionDecision("scroll"),
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "loop forever", MaxSteps: 3}, model, session, release)
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseFailed, res.Phase)
	assert.Equal(t, entity.FailureStepLimitExceeded, res.Reason)
	assert.Len(t, r.History(), 3)
	assert.Equal(t, []bool{true}, release.snapshot(), "step-limit failure releases the session clean")
}

func TestRunFailsWhenRetryBudgetExhausted(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		func() (*entity.Decision, error) { return nil, errors.New("upstream 500") },
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "flaky model", MaxSteps: 10}, model, session, release)
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseFailed, res.Phase)
	assert.Equal(t, entity.FailureModelError, res.Reason)
	assert.Contains(t, res.Error, "retry budget")
	// Initial attempt plus RetryBudget retries.
	assert.Equal(t, 4, model.callCount())
}

func TestRunRecoversFromTransientModelErrors(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		func() (*entity.Decision, error) { return nil, errors.New("timeout") },
		func() (*entity.Decision, error) { return nil, errors.New("timeout") },
		doneDecision("recovered"),
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "retry me", MaxSteps: 10}, model, session, release)
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseSucceeded, res.Phase)
	assert.Equal(t, "recovered", res.FinalAnswer)
}

func TestRecoverableActionErrorBecomesObservation(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		actionDecision("click"),
		doneDecision("gave up on the button"),
	}}
	session := &fakeSession{execute: func(action entity.Action) (string, error) {
		return "", errors.New("element not found")
	}}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "click something", MaxSteps: 10}, model, session, release)
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseSucceeded, res.Phase)

	steps := r.History()
	require.Len(t, steps, 2)
	assert.Equal(t, "Error: element not found", steps[0].Observation)
	assert.Equal(t, "element not found", steps[0].Error)
}

func TestSessionLostFailsRunAndReleasesUnclean(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		actionDecision("navigate"),
	}}
	session := &fakeSession{execute: func(action entity.Action) (string, error) {
		return "", &entity.SessionLostError{Err: errors.New("browser gone")}
	}}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "doomed", MaxSteps: 10}, model, session, release)
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseFailed, res.Phase)
	assert.Equal(t, entity.FailureSessionLost, res.Reason)
	assert.Equal(t, []bool{false}, release.snapshot(), "a lost session must be released unclean, once")

	steps := r.History()
	require.Len(t, steps, 1)
	assert.Contains(t, steps[0].Error, "browser gone")
}

func TestCancelBeforeExecute(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		actionDecision("navigate"),
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "never runs", MaxSteps: 10}, model, session, release)
	r.Cancel()
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseCancelled, res.Phase)
	assert.Equal(t, 0, model.callCount())
	assert.Empty(t, r.History())
	assert.Equal(t, []bool{true}, release.snapshot())
}

func TestCancelDuringRunDiscardsPendingAction(t *testing.T) {
	decideStarted := make(chan struct{})
	var r *Run

	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		func() (*entity.Decision, error) {
			close(decideStarted)
			// Cancellation lands while the model call is in flight; the
			// returned action must never reach the session.
			time.Sleep(20 * time.Millisecond)
			return &entity.Decision{Action: &entity.Action{Name: "click", Arguments: "{}"}}, nil
		},
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	r = newTestRun(t, entity.Task{Instruction: "cancel mid-decide", MaxSteps: 10}, model, session, release)

	go func() {
		<-decideStarted
		r.Cancel()
	}()
	r.Execute(context.Background())

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseCancelled, res.Phase)
	session.mu.Lock()
	assert.Equal(t, 0, session.calls, "decided action must be discarded after cancellation")
	session.mu.Unlock()
}

func TestCancelIsIdempotent(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		doneDecision("done"),
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "idempotent", MaxSteps: 10}, model, session, release)
	r.Execute(context.Background())

	r.Cancel()
	r.Cancel()

	res := r.Result()
	require.NotNil(t, res)
	assert.Equal(t, entity.RunPhaseSucceeded, res.Phase, "cancel after a terminal phase does not rewrite the result")
	assert.Equal(t, []bool{true}, release.snapshot(), "release stays exactly-once")
}

func TestHistoryOrderingAndTimestamps(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		actionDecision("navigate"),
		actionDecision("scroll"),
		actionDecision("extract_text"),
		doneDecision("done"),
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "ordering", MaxSteps: 10}, model, session, release)
	r.Execute(context.Background())

	steps := r.History()
	require.Len(t, steps, 4)
	for i, step := range steps {
		assert.Equal(t, i, step.Seq, "seq must be dense and zero-based")
		if step.Action != nil {
			assert.False(t, step.ActStart.Before(step.DecideStart))
			assert.False(t, step.ActEnd.Before(step.ActStart))
		}
		if i > 0 {
			assert.False(t, step.DecideStart.Before(steps[i-1].DecideStart))
		}
	}
}

func TestSnapshotCarriesTailOnly(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		actionDecision("scroll"),
	}}
	session := &fakeSession{}
	release := &releaseTracker{}

	cfg := testConfig()
	cfg.SnapshotTail = 2
	r := New("run-1", entity.Task{Instruction: "snapshot", MaxSteps: 6}, model, session, release.fn, nil, logger.NewNop(), cfg)
	r.Execute(context.Background())

	snap := r.Snapshot()
	assert.Equal(t, "run-1", snap.ID)
	assert.Equal(t, entity.RunPhaseFailed, snap.Phase)
	assert.Equal(t, 6, snap.StepCount)
	require.Len(t, snap.LastSteps, 2)
	assert.Equal(t, 4, snap.LastSteps[0].Seq)
	assert.Equal(t, 5, snap.LastSteps[1].Seq)
	require.NotNil(t, snap.Result)
}

func TestSnapshotWhilePending(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		doneDecision("unused"),
	}}
	r := newTestRun(t, entity.Task{Instruction: "pending", MaxSteps: 1}, model, &fakeSession{}, &releaseTracker{})

	snap := r.Snapshot()
	assert.Equal(t, entity.RunPhasePending, snap.Phase)
	assert.Zero(t, snap.StepCount)
	assert.Nil(t, snap.Result)
	assert.Nil(t, r.Result())
}

func TestConcurrentReadersDuringExecution(t *testing.T) {
	model := &scriptedModel{decisions: []func() (*entity.Decision, error){
		actionDecision("scroll"),
	}}
	session := &fakeSession{execute: func(action entity.Action) (string, error) {
		time.Sleep(time.Millisecond)
		return "ok", nil
	}}
	release := &releaseTracker{}

	r := newTestRun(t, entity.Task{Instruction: "readers", MaxSteps: 20}, model, session, release)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Execute(context.Background())
	}()

	for i := 0; i < 50; i++ {
		_ = r.Snapshot()
		_ = r.History()
		time.Sleep(time.Millisecond)
	}
	wg.Wait()

	steps := r.History()
	for i, step := range steps {
		require.Equal(t, i, step.Seq, fmt.Sprintf("step %d out of order", i))
	}
}
