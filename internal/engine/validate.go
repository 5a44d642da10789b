package engine

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
)

// compiledPlan is a validated plan with every reference resolved.
type compiledPlan struct {
	plan  *api.ExecutionPlan
	flows []*compiledFlow
}

type compiledInstance struct {
	inst    *api.KeywordInstance
	keyword *keyword.Keyword
	params  map[api.ID]*api.Param
	inputs  map[string]*api.Param
}

type compiledFlow struct {
	flow  *api.Flow
	steps []*compiledStep
}

type compiledStep struct {
	step     api.Step
	index    int
	instance *compiledInstance
	incoming []*compiledConnection
}

type compiledConnection struct {
	conn      api.Connection
	from      *compiledStep
	fromParam string
	toParam   string
}

// issues accumulates validation problems.
type issues []string

func (is *issues) add(format string, args ...any) {
	*is = append(*is, fmt.Sprintf(format, args...))
}

// compile validates plan against reg. All problems are collected into a
// single *api.PlanValidationError.
func compile(plan *api.ExecutionPlan, reg *keyword.Registry) (*compiledPlan, error) {
	var errs issues

	instances := compileInstances(plan, reg, &errs)

	cp := &compiledPlan{plan: plan}
	flowIDs := map[api.ID]bool{}
	for i := range plan.Flows {
		f := &plan.Flows[i]
		if f.ResultID() == "" {
			errs.add("flow %d has no id", i)
		} else if flowIDs[f.ResultID()] {
			errs.add("duplicate flow id %s", f.ResultID())
		}
		flowIDs[f.ResultID()] = true

		switch f.RunMode {
		case "", api.RunModeDefault, api.RunModeContinueOnError:
		default:
			errs.add("flow %s: unknown runMode %q", f.ResultID(), f.RunMode)
		}

		cp.flows = append(cp.flows, compileFlow(f, instances, &errs))
	}

	if len(errs) > 0 {
		return nil, &api.PlanValidationError{Issues: errs}
	}

	slices.SortStableFunc(cp.flows, func(a, b *compiledFlow) int {
		if c := cmp.Compare(a.flow.SequenceOrder, b.flow.SequenceOrder); c != 0 {
			return c
		}
		return compareIDs(a.flow.ResultID(), b.flow.ResultID())
	})
	return cp, nil
}

func compileInstances(plan *api.ExecutionPlan, reg *keyword.Registry, errs *issues) map[api.ID]*compiledInstance {
	instances := make(map[api.ID]*compiledInstance, len(plan.KeywordInstances))
	paramIDs := map[api.ID]bool{}

	for i := range plan.KeywordInstances {
		inst := &plan.KeywordInstances[i]
		if inst.ID == "" {
			errs.add("keyword instance %d has no id", i)
			continue
		}
		if _, dup := instances[inst.ID]; dup {
			errs.add("duplicate keyword instance id %s", inst.ID)
			continue
		}

		ci := &compiledInstance{
			inst:   inst,
			params: map[api.ID]*api.Param{},
			inputs: map[string]*api.Param{},
		}
		instances[inst.ID] = ci

		kw, err := reg.Lookup(inst.KeywordName)
		if err != nil {
			var unknown *keyword.UnknownKeywordError
			if errors.As(err, &unknown) {
				errs.add("instance %s: unknown keyword %q", inst.ID, inst.KeywordName)
			} else {
				errs.add("instance %s: %v", inst.ID, err)
			}
		}
		ci.keyword = kw

		outputs := map[string]bool{}
		for j := range inst.Params {
			p := &inst.Params[j]
			switch {
			case p.ID == "":
				errs.add("instance %s: param %q has no id", inst.ID, p.Name)
				continue
			case paramIDs[p.ID]:
				errs.add("duplicate param id %s", p.ID)
				continue
			}
			paramIDs[p.ID] = true
			ci.params[p.ID] = p

			switch p.Direction {
			case api.DirectionInput:
				if _, dup := ci.inputs[p.Name]; dup {
					errs.add("instance %s: duplicate input param %q", inst.ID, p.Name)
					continue
				}
				ci.inputs[p.Name] = p
			case api.DirectionOutput:
				if outputs[p.Name] {
					errs.add("instance %s: duplicate output param %q", inst.ID, p.Name)
				}
				outputs[p.Name] = true
			default:
				errs.add("param %s: unknown direction %q", p.ID, p.Direction)
			}
		}

		if kw != nil {
			checkLiterals(ci, errs)
		}
	}
	return instances
}

// checkLiterals rejects literal values the keyword would never accept.
func checkLiterals(ci *compiledInstance, errs *issues) {
	for _, p := range ci.inst.Params {
		if p.Direction != api.DirectionInput {
			continue
		}
		spec, ok := ci.keyword.Input(p.Name)
		if !ok || !p.Value.Present() {
			continue
		}
		if !spec.Allows(p.Value.Value) {
			errs.add("param %s: value %q is not one of %v", p.ID, p.Value.Value, spec.Choices)
		}
	}
}

func compileFlow(f *api.Flow, instances map[api.ID]*compiledInstance, errs *issues) *compiledFlow {
	cf := &compiledFlow{flow: f}
	byID := map[api.ID]*compiledStep{}
	fid := f.ResultID()

	for _, s := range f.Steps {
		if s.ID == "" {
			errs.add("flow %s: step without id", fid)
			continue
		}
		if _, dup := byID[s.ID]; dup {
			errs.add("flow %s: duplicate step id %s", fid, s.ID)
			continue
		}
		ci, ok := instances[s.InstanceID]
		if !ok {
			errs.add("flow %s: step %s references unknown instance %s", fid, s.ID, s.InstanceID)
			continue
		}
		cs := &compiledStep{step: s, instance: ci}
		byID[s.ID] = cs
		cf.steps = append(cf.steps, cs)
	}

	slices.SortStableFunc(cf.steps, func(a, b *compiledStep) int {
		if c := cmp.Compare(a.step.SequenceOrder, b.step.SequenceOrder); c != 0 {
			return c
		}
		return compareIDs(a.step.ID, b.step.ID)
	})
	for i, cs := range cf.steps {
		cs.index = i
	}

	for _, c := range f.Connections {
		cc, ok := compileConnection(fid, c, byID, errs)
		if ok {
			byID[c.ToStepID].incoming = append(byID[c.ToStepID].incoming, cc)
		}
	}

	for _, cs := range cf.steps {
		checkRequired(fid, cs, errs)
	}
	return cf
}

func compileConnection(fid api.ID, c api.Connection, steps map[api.ID]*compiledStep, errs *issues) (*compiledConnection, bool) {
	from, okFrom := steps[c.FromStepID]
	to, okTo := steps[c.ToStepID]
	if !okFrom || !okTo {
		errs.add("flow %s: connection %s references unknown step", fid, c.ID)
		return nil, false
	}

	ok := true
	fromParam, found := from.instance.params[c.FromParamID]
	switch {
	case !found:
		errs.add("flow %s: connection %s: param %s is not on step %s", fid, c.ID, c.FromParamID, from.step.ID)
		ok = false
	case fromParam.Direction != api.DirectionOutput:
		errs.add("flow %s: connection %s: param %s is not an OUTPUT param", fid, c.ID, c.FromParamID)
		ok = false
	case from.instance.keyword != nil && !from.instance.keyword.HasOutput(fromParam.Name):
		errs.add("flow %s: connection %s: keyword %q has no output %q",
			fid, c.ID, from.instance.keyword.Name, fromParam.Name)
		ok = false
	}

	toParam, found := to.instance.params[c.ToParamID]
	switch {
	case !found:
		errs.add("flow %s: connection %s: param %s is not on step %s", fid, c.ID, c.ToParamID, to.step.ID)
		ok = false
	case toParam.Direction != api.DirectionInput:
		errs.add("flow %s: connection %s: param %s is not an INPUT param", fid, c.ID, c.ToParamID)
		ok = false
	}

	if from.step.SequenceOrder >= to.step.SequenceOrder {
		errs.add("flow %s: connection %s: step %s (sequenceOrder %d) must run before step %s (sequenceOrder %d)",
			fid, c.ID, from.step.ID, from.step.SequenceOrder, to.step.ID, to.step.SequenceOrder)
		ok = false
	}

	if !ok {
		return nil, false
	}
	return &compiledConnection{
		conn:      c,
		from:      from,
		fromParam: fromParam.Name,
		toParam:   toParam.Name,
	}, true
}

// checkRequired reports mandatory inputs that can never receive a value.
func checkRequired(fid api.ID, cs *compiledStep, errs *issues) {
	kw := cs.instance.keyword
	if kw == nil {
		return
	}

	wired := map[string]bool{}
	for _, cc := range cs.incoming {
		wired[cc.toParam] = true
	}

	satisfied := func(name string) bool {
		if wired[name] {
			return true
		}
		if p, ok := cs.instance.inputs[name]; ok && p.Value.Present() {
			return true
		}
		spec, ok := kw.Input(name)
		return ok && spec.HasDefault
	}

	for _, spec := range kw.Inputs {
		if spec.Required && !satisfied(spec.Name) {
			errs.add("flow %s: step %s: required input %q has no value, default or connection",
				fid, cs.step.ID, spec.Name)
		}
	}
	for _, p := range cs.instance.inst.Params {
		if p.Direction != api.DirectionInput || !p.IsMandatory {
			continue
		}
		if spec, ok := kw.Input(p.Name); ok && spec.Required {
			continue
		}
		if !satisfied(p.Name) {
			errs.add("flow %s: step %s: mandatory input %q has no value, default or connection",
				fid, cs.step.ID, p.Name)
		}
	}
}

func compareIDs(a, b api.ID) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
