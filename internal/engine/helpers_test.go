package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
)

// callLog records which steps actually ran, in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func atoi2(in keyword.Values, a, b string) (int, int, error) {
	x, err := strconv.Atoi(in[a])
	if err != nil {
		return 0, 0, fmt.Errorf("%s is not a number: %q", a, in[a])
	}
	y, err := strconv.Atoi(in[b])
	if err != nil {
		return 0, 0, fmt.Errorf("%s is not a number: %q", b, in[b])
	}
	return x, y, nil
}

// newTestRegistry returns a frozen registry with the keywords used across
// the engine tests.
func newTestRegistry(t *testing.T, log *callLog, extra ...*keyword.Keyword) *keyword.Registry {
	t.Helper()

	kws := []*keyword.Keyword{
		{
			Name:    "Add Numbers",
			Inputs:  []keyword.ParamSpec{keyword.In("num1", keyword.Required()), keyword.In("num2", keyword.Required())},
			Outputs: []keyword.OutputSpec{keyword.Out("result")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				log.add("add")
				a, b, err := atoi2(in, "num1", "num2")
				if err != nil {
					return nil, err
				}
				return keyword.Values{"result": strconv.Itoa(a + b)}, nil
			},
		},
		{
			Name:    "Divide Numbers",
			Inputs:  []keyword.ParamSpec{keyword.In("dividend", keyword.Required()), keyword.In("divisor", keyword.Required())},
			Outputs: []keyword.OutputSpec{keyword.Out("result")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				log.add("divide")
				a, b, err := atoi2(in, "dividend", "divisor")
				if err != nil {
					return nil, err
				}
				if b == 0 {
					return nil, errors.New("Cannot divide by zero")
				}
				return keyword.Values{"result": strconv.Itoa(a / b)}, nil
			},
		},
		{
			Name: "Validate Sum",
			Inputs: []keyword.ParamSpec{
				keyword.In("incoming_sum", keyword.Required()),
				keyword.In("validation", keyword.Required()),
			},
			Outputs: []keyword.OutputSpec{keyword.Out("valid")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				log.add("validate:" + in["incoming_sum"])
				if in["incoming_sum"] != in["validation"] {
					return nil, fmt.Errorf("sum %s does not match expected %s", in["incoming_sum"], in["validation"])
				}
				return keyword.Values{"valid": "true"}, nil
			},
		},
		{
			Name:    "Record",
			Inputs:  []keyword.ParamSpec{keyword.In("label"), keyword.In("value")},
			Outputs: []keyword.OutputSpec{keyword.Out("echo")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				entry := in["label"]
				if v, ok := in["value"]; ok {
					entry += "=" + v
				}
				if v, ok := in["extra"]; ok {
					entry += ";extra=" + v
				}
				log.add(entry)
				return keyword.Values{"echo": in["value"]}, nil
			},
		},
		{
			Name:    "Greet",
			Inputs:  []keyword.ParamSpec{keyword.In("name", keyword.Default("World"))},
			Outputs: []keyword.OutputSpec{keyword.Out("greeting")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				return keyword.Values{"greeting": "Hello, " + in["name"]}, nil
			},
		},
		{
			Name: "Set Priority",
			Inputs: []keyword.ParamSpec{
				keyword.In("priority", keyword.Required(), keyword.Choices("LOW", "MEDIUM", "HIGH", "CRITICAL")),
			},
			Outputs: []keyword.OutputSpec{keyword.Out("message")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				log.add("priority:" + in["priority"])
				return keyword.Values{"message": "Priority set to: " + in["priority"]}, nil
			},
		},
		{
			Name:   "Sleep",
			Inputs: []keyword.ParamSpec{keyword.In("ms", keyword.Required())},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				ms, err := strconv.Atoi(in["ms"])
				if err != nil {
					return nil, err
				}
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
					log.add("slept:" + in["ms"])
					return keyword.Values{}, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
		{
			Name:   "Stubborn Sleep",
			Inputs: []keyword.ParamSpec{keyword.In("ms", keyword.Required())},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				ms, _ := strconv.Atoi(in["ms"])
				time.Sleep(time.Duration(ms) * time.Millisecond)
				return keyword.Values{}, nil
			},
		},
		{
			Name: "Boom",
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				panic("kaboom")
			},
		},
	}

	reg := keyword.NewRegistry()
	for _, kw := range append(kws, extra...) {
		if err := reg.Register(kw); err != nil {
			t.Fatalf("Register(%s) failed: %v", kw.Name, err)
		}
	}
	reg.Freeze()
	return reg
}

func inParam(id, name, value string) api.Param {
	p := api.Param{ID: api.ID(id), Name: name, Direction: api.DirectionInput}
	if value != "" {
		p.Value = api.NewText(value)
	}
	return p
}

func mandatoryParam(id, name string) api.Param {
	p := inParam(id, name, "")
	p.IsMandatory = true
	return p
}

func outParam(id, name string) api.Param {
	return api.Param{ID: api.ID(id), Name: name, Direction: api.DirectionOutput}
}

func instance(id, keywordName string, params ...api.Param) api.KeywordInstance {
	return api.KeywordInstance{ID: api.ID(id), Name: id, KeywordName: keywordName, Params: params}
}

func step(id, instanceID string, order int) api.Step {
	return api.Step{ID: api.ID(id), InstanceID: api.ID(instanceID), SequenceOrder: order}
}

func conn(id, fromStep, toStep, fromParam, toParam string) api.Connection {
	return api.Connection{
		ID:          api.ID(id),
		FromStepID:  api.ID(fromStep),
		ToStepID:    api.ID(toStep),
		FromParamID: api.ID(fromParam),
		ToParamID:   api.ID(toParam),
	}
}

func flow(id string, order int, mode api.RunMode, steps []api.Step, conns ...api.Connection) api.Flow {
	return api.Flow{
		ID:            api.ID(id),
		FlowID:        api.ID("flow-" + id),
		SequenceOrder: order,
		RunMode:       mode,
		Name:          "Flow " + id,
		Steps:         steps,
		Connections:   conns,
	}
}

func recordInstance(id, label string) api.KeywordInstance {
	return instance(id, "Record", inParam(id+"-label", "label", label), inParam(id+"-value", "value", ""), outParam(id+"-echo", "echo"))
}

// scenarioAPlan adds 5 and 3 and wires the sum into a validation step.
func scenarioAPlan() *api.ExecutionPlan {
	return &api.ExecutionPlan{
		Version: 1,
		Name:    "scenario-a",
		KeywordInstances: []api.KeywordInstance{
			instance("add_numbers", "Add Numbers",
				inParam("p1", "num1", "5"),
				inParam("p2", "num2", "3"),
				outParam("p3", "result"),
			),
			instance("validate_sum", "Validate Sum",
				inParam("p4", "incoming_sum", ""),
				inParam("p5", "validation", "8"),
			),
		},
		Flows: []api.Flow{
			flow("1", 1, api.RunModeDefault,
				[]api.Step{step("1", "add_numbers", 1), step("2", "validate_sum", 2)},
				conn("c1", "1", "2", "p3", "p4"),
			),
		},
	}
}

// divisionPlan runs add, a division by zero, then a recording step.
func divisionPlan(mode api.RunMode) *api.ExecutionPlan {
	return &api.ExecutionPlan{
		Name: "division",
		KeywordInstances: []api.KeywordInstance{
			instance("add", "Add Numbers", inParam("a1", "num1", "1"), inParam("a2", "num2", "2"), outParam("a3", "result")),
			instance("div", "Divide Numbers", inParam("d1", "dividend", "10"), inParam("d2", "divisor", "0"), outParam("d3", "result")),
			recordInstance("rec", "after"),
			instance("div2", "Divide Numbers", inParam("e1", "dividend", "x"), inParam("e2", "divisor", "1")),
		},
		Flows: []api.Flow{
			flow("1", 1, mode, []api.Step{
				step("1", "add", 1),
				step("2", "div", 2),
				step("3", "rec", 3),
				step("4", "div2", 4),
			}),
		},
	}
}

func mustExecute(t *testing.T, eng api.Engine, plan *api.ExecutionPlan, runID api.ID) *api.RunResult {
	t.Helper()
	res, err := eng.Execute(context.Background(), plan, "test", runID)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res == nil {
		t.Fatalf("Execute returned nil result")
	}
	return res
}

func onlyFlow(t *testing.T, res *api.RunResult) api.FlowResult {
	t.Helper()
	if res.Error != nil {
		t.Fatalf("unexpected run error: %+v", res.Error)
	}
	if len(res.FlowResults) != 1 {
		t.Fatalf("expected 1 flow result, got %d", len(res.FlowResults))
	}
	return res.FlowResults[0]
}
