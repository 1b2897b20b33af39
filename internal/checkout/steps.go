package checkout

import (
	"context"
	"errors"

	"github.com/LightDreamhs/MyPetShop3.0/internal/upstream"
)

type StepName string

const (
	StepCreateRecord  StepName = "create_record"
	StepPostLedger    StepName = "post_ledger"
	StepDeductBalance StepName = "deduct_balance"
	StepCreateSale    StepName = "create_sale"
)

// Step is one upstream write in a checkout plan. A failed Required step
// aborts the plan. A failed optional step is reported, and when
// HaltOnFailure is set every later step is skipped.
type Step struct {
	Name          StepName
	Required      bool
	HaltOnFailure bool
	Run           func(ctx context.Context) error
}

// errStepSkipped marks a step whose precondition could not be met. The step
// is reported as skipped and later steps still run.
var errStepSkipped = errors.New("step skipped")

type StepFailure struct {
	Step    StepName `json:"step"`
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Err     error    `json:"-"`
}

type outcome struct {
	committed []StepName
	failed    []StepFailure
	skipped   []StepName
	// fatal is the error of a failed required step.
	fatal error
}

// runSteps executes steps in order.
func runSteps(ctx context.Context, steps []Step) outcome {
	var out outcome
	halted := false
	for _, step := range steps {
		if halted {
			out.skipped = append(out.skipped, step.Name)
			continue
		}
		if err := step.Run(ctx); err != nil {
			if errors.Is(err, errStepSkipped) {
				out.skipped = append(out.skipped, step.Name)
				continue
			}
			out.failed = append(out.failed, newStepFailure(step.Name, err))
			if step.Required {
				out.fatal = err
				halted = true
				continue
			}
			if step.HaltOnFailure {
				halted = true
			}
			continue
		}
		out.committed = append(out.committed, step.Name)
	}
	return out
}

func newStepFailure(name StepName, err error) StepFailure {
	failure := StepFailure{Step: name, Message: upstream.ErrorMessage(err, "operation failed"), Err: err}
	var reqErr *upstream.RequestError
	if errors.As(err, &reqErr) {
		failure.Kind = string(reqErr.Kind)
	}
	return failure
}

func (o outcome) failure(name StepName) (StepFailure, bool) {
	for _, f := range o.failed {
		if f.Step == name {
			return f, true
		}
	}
	return StepFailure{}, false
}

func (o outcome) wasSkipped(name StepName) bool {
	for _, s := range o.skipped {
		if s == name {
			return true
		}
	}
	return false
}
