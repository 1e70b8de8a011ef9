package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Step is one unit of a workflow. Run performs the step; Compensate reverses
// it and is invoked only when the step succeeded but a later step failed.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Alerter receives compensation failures. An uncompensated balance movement
// is an un-reconciled ledger state, so these must reach an operator-visible
// channel, not just the log.
type Alerter interface {
	CompensationFailed(ctx context.Context, workflow, step string, err error)
}

// StepError is the terminal error of a workflow: the first step that failed.
type StepError struct {
	Workflow string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("workflow %s: step %s: %v", e.Workflow, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// CompensationFailure records one compensation that did not complete.
type CompensationFailure struct {
	Step string
	Err  error
}

// CompensationError aggregates every compensation that failed while unwinding
// a workflow.
type CompensationError struct {
	Workflow string
	Failures []CompensationFailure
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("workflow %s: %d compensation(s) failed, ledger may need manual reconciliation", e.Workflow, len(e.Failures))
}

// Executor runs named workflows as ordered step sequences with reverse-order
// compensation on failure.
type Executor struct {
	alerter Alerter
}

func NewExecutor(alerter Alerter) *Executor {
	return &Executor{alerter: alerter}
}

// Run executes steps strictly in order. On the first failure it compensates
// all previously succeeded steps, most-recent-first, then returns the step
// error. Compensation failures are escalated through the Alerter and joined
// onto the returned error.
func (e *Executor) Run(ctx context.Context, workflow string, steps []Step) error {
	for i, step := range steps {
		if err := step.Run(ctx); err != nil {
			stepErr := &StepError{Workflow: workflow, Step: step.Name, Err: err}
			log.Warn().
				Str("workflow", workflow).
				Str("step", step.Name).
				Err(err).
				Msg("workflow step failed, compensating")

			if compErr := e.compensate(ctx, workflow, steps[:i]); compErr != nil {
				return errors.Join(stepErr, compErr)
			}
			return stepErr
		}

		log.Debug().
			Str("workflow", workflow).
			Str("step", step.Name).
			Msg("workflow step completed")
	}
	return nil
}

// compensate unwinds already-succeeded steps in reverse order. A started saga
// always runs to full compensation, so a canceled caller context must not cut
// the unwind short.
func (e *Executor) compensate(ctx context.Context, workflow string, done []Step) error {
	cctx := context.WithoutCancel(ctx)

	var failures []CompensationFailure
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}

		if err := step.Compensate(cctx); err != nil {
			failures = append(failures, CompensationFailure{Step: step.Name, Err: err})
			log.Error().
				Str("workflow", workflow).
				Str("step", step.Name).
				Err(err).
				Msg("workflow compensation failed")
			if e.alerter != nil {
				e.alerter.CompensationFailed(cctx, workflow, step.Name, err)
			}
			continue
		}

		log.Info().
			Str("workflow", workflow).
			Str("step", step.Name).
			Msg("workflow step compensated")
	}

	if len(failures) > 0 {
		return &CompensationError{Workflow: workflow, Failures: failures}
	}
	return nil
}
