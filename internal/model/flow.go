package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBrokenFlowPath is returned when consecutive steps of a path do not link.
var ErrBrokenFlowPath = errors.New("flow path is not linked")

// FlowStep is one hop of a flow path.
type FlowStep struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// FlowPath is an ordered sequence of hops where every step starts at the
// address the previous step ended at. The zero value is an empty path.
type FlowPath struct {
	steps []FlowStep
}

// NewFlowPath builds a path from steps, failing with ErrBrokenFlowPath
// when step[i].To != step[i+1].From.
func NewFlowPath(steps ...FlowStep) (FlowPath, error) {
	p := FlowPath{steps: append([]FlowStep(nil), steps...)}
	if err := p.Validate(); err != nil {
		return FlowPath{}, err
	}
	return p, nil
}

// Validate checks the linking invariant.
func (p FlowPath) Validate() error {
	for i := 1; i < len(p.steps); i++ {
		if p.steps[i-1].To != p.steps[i].From {
			return fmt.Errorf("%w: step %d ends at %s but step %d starts at %s",
				ErrBrokenFlowPath, i-1, p.steps[i-1].To, i, p.steps[i].From)
		}
	}
	return nil
}

// Append returns a copy of p extended by step. The receiver is unchanged,
// so sibling branches of a traversal can share a prefix.
func (p FlowPath) Append(step FlowStep) (FlowPath, error) {
	if n := len(p.steps); n > 0 && p.steps[n-1].To != step.From {
		return FlowPath{}, fmt.Errorf("%w: cannot append %s->%s after %s",
			ErrBrokenFlowPath, step.From, step.To, p.steps[n-1].To)
	}
	steps := make([]FlowStep, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	return FlowPath{steps: append(steps, step)}, nil
}

// Prepend returns a copy of p with step placed first. Used when walking
// inbound edges, where each hop goes further back in time.
func (p FlowPath) Prepend(step FlowStep) (FlowPath, error) {
	if len(p.steps) > 0 && step.To != p.steps[0].From {
		return FlowPath{}, fmt.Errorf("%w: cannot prepend %s->%s before %s",
			ErrBrokenFlowPath, step.From, step.To, p.steps[0].From)
	}
	steps := make([]FlowStep, 0, len(p.steps)+1)
	steps = append(steps, step)
	return FlowPath{steps: append(steps, p.steps...)}, nil
}

// Len returns the number of steps.
func (p FlowPath) Len() int { return len(p.steps) }

// String renders "from->to(amount)->to(amount)...".
func (p FlowPath) String() string {
	if len(p.steps) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.steps[0].From)
	for _, s := range p.steps {
		b.WriteString("->")
		b.WriteString(s.To)
		b.WriteByte('(')
		b.WriteString(strconv.FormatFloat(s.Amount, 'f', -1, 64))
		b.WriteByte(')')
	}
	return b.String()
}

// MarshalJSON encodes the path as its step list.
func (p FlowPath) MarshalJSON() ([]byte, error) {
	steps := p.steps
	if steps == nil {
		steps = []FlowStep{}
	}
	return json.Marshal(steps)
}
