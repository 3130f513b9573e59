// Package saga runs ordered steps and undoes the completed ones, newest first,
// when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Step is one unit of work. Compensate may be nil when there is nothing to undo.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step failed. Err is the step's own error and is what
// errors.Is and errors.As see.
type StepError struct {
	Saga            string
	Step            string
	Index           int
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %q failed (%v), compensation also failed: %v", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %q failed: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Cause returns the failing step's error when err is a *StepError, and err
// itself otherwise.
func Cause(err error) error {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Err
	}
	return err
}

type Saga struct {
	name   string
	steps  []Step
	logger zerolog.Logger
}

func New(name string, logger zerolog.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Then adds a step with nothing to compensate.
func (s *Saga) Then(name string, execute func(ctx context.Context) error) *Saga {
	return s.AddStep(Step{Name: name, Execute: execute})
}

// Execute runs the steps in order. On failure it compensates every completed
// step in reverse and returns a *StepError. Compensation runs even when ctx has
// been canceled.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.Execute(ctx)
		if err == nil {
			continue
		}

		stepErr := &StepError{Saga: s.name, Step: step.Name, Index: i, Err: err}
		stepErr.CompensationErr = s.compensate(context.WithoutCancel(ctx), i)
		if stepErr.CompensationErr != nil {
			s.logger.Error().Err(stepErr.CompensationErr).Str("saga", s.name).Str("step", step.Name).Msg("compensation failed")
		}
		return stepErr
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, failed int) error {
	var errs []error
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compensate step %q: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
