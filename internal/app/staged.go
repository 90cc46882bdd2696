package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// Stage names one step of a staged change.
type Stage string

const (
	StageDecode Stage = "decode"
	StagePlan   Stage = "plan"
	StageVerify Stage = "verify"
	StageCommit Stage = "commit"
)

// StageError records the stage a staged change stopped at. The store is
// untouched unless Stage is StageCommit.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage err stopped at, if err came from a staged change.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}

	return "", false
}

// stagedChange is a multi-record store mutation. Decode, Plan and Verify
// must not touch the store; only Commit may. A nil Verify accepts any plan.
type stagedChange[In, Rec, Plan, Out any] struct {
	name   string
	decode func(In) (Rec, error)
	plan   func(Rec) Plan
	verify func(Rec, Plan) error
	commit func(context.Context, Plan) Out
}

func (c stagedChange[In, Rec, Plan, Out]) run(ctx context.Context, in In) (Out, error) {
	var zero Out

	logger := logging.FromContext(ctx).With(slog.String("change", c.name))
	start := time.Now()

	fail := func(stage Stage, err error) (Out, error) {
		logger.WarnContext(ctx, "staged change rejected",
			slog.String("stage", string(stage)),
			slog.Any("error", err),
		)

		return zero, &StageError{Stage: stage, Err: err}
	}

	rec, err := c.decode(in)
	if err != nil {
		return fail(StageDecode, err)
	}

	plan := c.plan(rec)

	if c.verify != nil {
		if err := c.verify(rec, plan); err != nil {
			return fail(StageVerify, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(StageCommit, err)
	}

	out := c.commit(ctx, plan)

	logger.DebugContext(ctx, "staged change committed", slog.Duration("duration", time.Since(start)))

	return out, nil
}
