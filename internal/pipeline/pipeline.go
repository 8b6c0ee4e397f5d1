// Package pipeline runs multi-step operations in order and stops at the
// first failing step.
package pipeline

import (
	"context"
	"fmt"
)

type Step struct {
	Name string
	Run  func(ctx context.Context) error
	// Skip, when set and true, leaves the step out without failing.
	Skip func() bool
}

// StepError names the step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Run executes steps in order. It returns the names of the steps that
// completed; on failure the later steps are not started.
func Run(ctx context.Context, steps ...Step) ([]string, error) {
	done := make([]string, 0, len(steps))
	for _, step := range steps {
		if step.Skip != nil && step.Skip() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return done, &StepError{Step: step.Name, Err: err}
		}
		if err := step.Run(ctx); err != nil {
			return done, &StepError{Step: step.Name, Err: err}
		}
		done = append(done, step.Name)
	}
	return done, nil
}
