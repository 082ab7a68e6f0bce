package factoring

import (
	"context"
)

// Settlement step names reported in SettlementError.Step.
const (
	StepPaySeller    = "pay_seller"
	StepPayPlatform  = "pay_platform"
	StepDeliverToken = "deliver_token"
	StepCommit       = "commit"
)

// settlementStep is one external effect of a settlement together with the
// action that reverses it.
type settlementStep struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// settlementPlan executes steps in order. When a step fails, the steps that
// already completed are undone in reverse order.
type settlementPlan struct {
	steps []settlementStep
	done  []settlementStep
}

func (p *settlementPlan) add(name string, do, undo func(ctx context.Context) error) {
	p.steps = append(p.steps, settlementStep{name: name, do: do, undo: undo})
}

// execute runs every step. On failure it compensates and returns the
// failed step.
func (p *settlementPlan) execute(ctx context.Context) *SettlementError {
	for _, step := range p.steps {
		if err := step.do(ctx); err != nil {
			return p.abort(ctx, step.name, err)
		}
		p.done = append(p.done, step)
	}
	return nil
}

// abort undoes every completed step, newest first. Undo runs detached from
// ctx cancellation so that a cancelled request still compensates.
func (p *settlementPlan) abort(ctx context.Context, step string, cause error) *SettlementError {
	ctx = context.WithoutCancel(ctx)
	serr := &SettlementError{Step: step, Err: cause}
	for i := len(p.done) - 1; i >= 0; i-- {
		s := p.done[i]
		if err := s.undo(ctx); err != nil {
			serr.Compensation.Add(&compensationError{step: s.name, err: err})
		}
	}
	p.done = nil
	return serr
}

type compensationError struct {
	step string
	err  error
}

func (e *compensationError) Error() string {
	return "undo " + e.step + ": " + e.err.Error()
}

func (e *compensationError) Unwrap() error { return e.err }
