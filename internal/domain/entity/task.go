package entity

import (
	"fmt"
	"strings"
	"time"
)

// Task is the immutable input for one agent run. It is created by the caller
// and never mutated afterwards.
type Task struct {
	Instruction string
	MaxSteps    int
	StepTimeout time.Duration
	Constraints map[string]string
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Instruction) == "" {
		return fmt.Errorf("task instruction is empty")
	}
	if t.MaxSteps < 0 {
		return fmt.Errorf("task max steps must not be negative, got %d", t.MaxSteps)
	}
	if t.StepTimeout < 0 {
		return fmt.Errorf("task step timeout must not be negative, got %s", t.StepTimeout)
	}
	return nil
}
