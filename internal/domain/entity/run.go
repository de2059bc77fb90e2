package entity

import "time"

type RunPhase string

const (
	RunPhasePending   RunPhase = "pending"
	RunPhaseRunning   RunPhase = "running"
	RunPhaseSucceeded RunPhase = "succeeded"
	RunPhaseFailed    RunPhase = "failed"
	RunPhaseCancelled RunPhase = "cancelled"
)

// Terminal reports whether the phase is final. No transitions leave a
// terminal phase.
func (p RunPhase) Terminal() bool {
	switch p {
	case RunPhaseSucceeded, RunPhaseFailed, RunPhaseCancelled:
		return true
	}
	return false
}

type FailureReason string

const (
	FailureModelError        FailureReason = "model_error"
	FailureSessionLost       FailureReason = "session_lost"
	FailureStepLimitExceeded FailureReason = "step_limit_exceeded"
)

// Step is one decide/act cycle. Once appended to a run's history a Step is
// immutable.
type Step struct {
	Seq         int       `json:"seq"`
	Action      *Action   `json:"action,omitempty"`
	Observation string    `json:"observation,omitempty"`
	Error       string    `json:"error,omitempty"`
	DecideStart time.Time `json:"decide_start"`
	ActStart    time.Time `json:"act_start,omitzero"`
	ActEnd      time.Time `json:"act_end,omitzero"`
}

// RunResult is set exactly once, when the run enters a terminal phase.
type RunResult struct {
	Phase       RunPhase
	FinalAnswer string
	Reason      FailureReason
	Error       string
	FinishedAt  time.Time
}

// RunSnapshot is a read-only copy of a run's observable state. LastSteps
// holds the tail of the history, newest last.
type RunSnapshot struct {
	ID        string
	Phase     RunPhase
	StepCount int
	LastSteps []Step
	Result    *RunResult
}
