package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/payauth/pkg/saga"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestSaga_AllStepsSucceed(t *testing.T) {
	var executed []string

	err := saga.New("test-saga", zerolog.Nop()).
		Then("step1", func(ctx context.Context) error { executed = append(executed, "exec1"); return nil }).
		Then("step2", func(ctx context.Context) error { executed = append(executed, "exec2"); return nil }).
		Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"exec1", "exec2"}, executed)
}

func TestSaga_FailureCompensatesCompletedStepsInReverse(t *testing.T) {
	var trail []string

	err := saga.New("test-saga", zerolog.Nop()).
		AddStep(saga.Step{
			Name:       "step1",
			Execute:    func(ctx context.Context) error { trail = append(trail, "exec1"); return nil },
			Compensate: func(ctx context.Context) error { trail = append(trail, "comp1"); return nil },
		}).
		AddStep(saga.Step{
			Name:       "step2",
			Execute:    func(ctx context.Context) error { trail = append(trail, "exec2"); return nil },
			Compensate: func(ctx context.Context) error { trail = append(trail, "comp2"); return nil },
		}).
		AddStep(saga.Step{
			Name:       "step3",
			Execute:    func(ctx context.Context) error { return errBoom },
			Compensate: func(ctx context.Context) error { trail = append(trail, "comp3"); return nil },
		}).
		Then("step4", func(ctx context.Context) error { trail = append(trail, "exec4"); return nil }).
		Execute(context.Background())

	require.Error(t, err)
	assert.Equal(t, []string{"exec1", "exec2", "comp2", "comp1"}, trail)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "step3", stepErr.Step)
	assert.Equal(t, 2, stepErr.Index)
	assert.NoError(t, stepErr.CompensationErr)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, errBoom, saga.Cause(err))
}

func TestSaga_CompensationErrorsAreCollected(t *testing.T) {
	err := saga.New("test-saga", zerolog.Nop()).
		AddStep(saga.Step{
			Name:       "step1",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("comp1 failed") },
		}).
		AddStep(saga.Step{
			Name:       "step2",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("comp2 failed") },
		}).
		Then("step3", func(ctx context.Context) error { return errBoom }).
		Execute(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "comp1 failed")
	assert.Contains(t, err.Error(), "comp2 failed")
	assert.ErrorIs(t, err, errBoom)
}

func TestSaga_CompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compCtxErr error

	err := saga.New("test-saga", zerolog.Nop()).
		AddStep(saga.Step{
			Name:       "step1",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compCtxErr = ctx.Err(); return nil },
		}).
		Then("step2", func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		}).
		Execute(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, compCtxErr)
}

func TestSaga_NoSteps(t *testing.T) {
	assert.NoError(t, saga.New("empty", zerolog.Nop()).Execute(context.Background()))
}

func TestCause_PassesThroughPlainErrors(t *testing.T) {
	assert.Equal(t, errBoom, saga.Cause(errBoom))
	assert.Nil(t, saga.Cause(nil))
}
