package engine

import (
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
)

type outputKey struct {
	instanceID api.ID
	name       string
}

// flowState is the run-scoped state of a single flow. Each flow owns its
// own flowState; nothing in it is shared across flows or runs.
type flowState struct {
	outputs  map[outputKey]string
	executed map[api.ID]bool
	passed   map[api.ID]bool
}

func newFlowState() *flowState {
	return &flowState{
		outputs:  map[outputKey]string{},
		executed: map[api.ID]bool{},
		passed:   map[api.ID]bool{},
	}
}

// record stores the declared outputs a passing step produced.
func (st *flowState) record(cs *compiledStep, out keyword.Values) {
	st.executed[cs.step.ID] = true
	st.passed[cs.step.ID] = true
	for _, spec := range cs.instance.keyword.Outputs {
		if v, ok := out[spec.Name]; ok {
			st.outputs[outputKey{cs.instance.inst.ID, spec.Name}] = v
		}
	}
}

func (st *flowState) fail(cs *compiledStep) {
	st.executed[cs.step.ID] = true
}

// connectionValue returns the value wired into input name, if any. When
// several connections target the same input, the one whose source ran last
// wins.
func (st *flowState) connectionValue(cs *compiledStep, name string) (string, bool, error) {
	var (
		value string
		found bool
		last  = -1
	)
	for _, cc := range cs.incoming {
		if cc.toParam != name {
			continue
		}
		if !st.executed[cc.from.step.ID] {
			return "", false, &api.WiringError{
				ConnectionID: cc.conn.ID,
				FromStepID:   cc.conn.FromStepID,
				ToStepID:     cc.conn.ToStepID,
				Reason:       "source step has not executed",
			}
		}
		if !st.passed[cc.from.step.ID] || cc.from.index < last {
			continue
		}
		v, ok := st.outputs[outputKey{cc.from.instance.inst.ID, cc.fromParam}]
		if !ok {
			continue
		}
		value, found, last = v, true, cc.from.index
	}
	return value, found, nil
}

// resolveInputs builds the input map for a step: connection values first,
// then literals, then keyword defaults.
func (st *flowState) resolveInputs(cs *compiledStep) (keyword.Values, error) {
	kw := cs.instance.keyword
	in := keyword.Values{}

	names := make([]string, 0, len(kw.Inputs)+len(cs.instance.inputs))
	for _, spec := range kw.Inputs {
		names = append(names, spec.Name)
	}
	for _, p := range cs.instance.inst.Params {
		if p.Direction == api.DirectionInput {
			if _, declared := kw.Input(p.Name); !declared {
				names = append(names, p.Name)
			}
		}
	}

	for _, name := range names {
		v, ok, err := st.connectionValue(cs, name)
		if err != nil {
			return nil, err
		}
		if ok {
			in[name] = v
			continue
		}
		if p, ok := cs.instance.inputs[name]; ok && p.Value.Present() {
			in[name] = p.Value.Value
			continue
		}
		if spec, ok := kw.Input(name); ok && spec.HasDefault {
			in[name] = spec.Default
		}
	}

	for _, name := range names {
		spec, declared := kw.Input(name)
		v, has := in[name]
		if !has {
			p := cs.instance.inputs[name]
			if spec.Required || (p != nil && p.IsMandatory) {
				return nil, &api.MissingRequiredParameterError{StepID: cs.step.ID, ParamName: name}
			}
			continue
		}
		if declared && !spec.Allows(v) {
			return nil, &api.InvalidChoiceError{
				StepID:    cs.step.ID,
				ParamName: name,
				Value:     v,
				Choices:   spec.Choices,
			}
		}
	}
	return in, nil
}
