package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/petrijr/keycase/pkg/api"
)

func TestCompile_CollectsAllIssues(t *testing.T) {
	reg := newTestRegistry(t, &callLog{})

	plan := &api.ExecutionPlan{
		Name: "broken",
		KeywordInstances: []api.KeywordInstance{
			instance("a", "Add Numbers", inParam("p1", "num1", "1"), inParam("p2", "num2", "2"), outParam("p3", "result")),
			instance("a", "Add Numbers"),
			instance("u", "Unknown Keyword", inParam("p1", "x", "1")),
			instance("d", "Record", api.Param{ID: "p9", Name: "label", Direction: "SIDEWAYS"}),
		},
		Flows: []api.Flow{
			{
				ID:      "1",
				RunMode: "sometimes",
				Steps: []api.Step{
					step("1", "a", 1),
					step("1", "a", 2),
					step("2", "ghost", 3),
					step("3", "a", 4),
				},
				Connections: []api.Connection{
					conn("c1", "1", "404", "p3", "p1"),
					conn("c2", "3", "1", "p3", "p1"),
					conn("c3", "1", "3", "p1", "p3"),
				},
			},
		},
	}

	_, err := compile(plan, reg)
	var pve *api.PlanValidationError
	if !errors.As(err, &pve) || !errors.Is(err, api.ErrPlanValidation) {
		t.Fatalf("expected PlanValidationError, got %v", err)
	}

	all := strings.Join(pve.Issues, "\n")
	for _, want := range []string{
		"duplicate keyword instance id a",
		`unknown keyword "Unknown Keyword"`,
		"duplicate param id p1",
		`unknown direction "SIDEWAYS"`,
		`unknown runMode "sometimes"`,
		"duplicate step id 1",
		"unknown instance ghost",
		"connection c1 references unknown step",
		"connection c2: step 3 (sequenceOrder 4) must run before step 1",
		"param p1 is not an OUTPUT param",
		"param p3 is not an INPUT param",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("missing issue %q in:\n%s", want, all)
		}
	}
}

func TestCompile_SortsFlowsAndSteps(t *testing.T) {
	reg := newTestRegistry(t, &callLog{})
	plan := &api.ExecutionPlan{
		KeywordInstances: []api.KeywordInstance{recordInstance("r", "x")},
		Flows: []api.Flow{
			flow("b", 2, "", []api.Step{step("2", "r", 5), step("10", "r", 1), step("1", "r", 5)}),
			flow("a", 2, "", nil),
			flow("c", 1, "", nil),
		},
	}

	cp, err := compile(plan, reg)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var flows []api.ID
	for _, cf := range cp.flows {
		flows = append(flows, cf.flow.ResultID())
	}
	if strings.Join(idStrings(flows), ",") != "flow-c,flow-a,flow-b" {
		t.Fatalf("unexpected flow order: %v", flows)
	}

	var steps []api.ID
	for i, cs := range cp.flows[2].steps {
		if cs.index != i {
			t.Fatalf("step %s has index %d, want %d", cs.step.ID, cs.index, i)
		}
		steps = append(steps, cs.step.ID)
	}
	if strings.Join(idStrings(steps), ",") != "10,1,2" {
		t.Fatalf("unexpected step order: %v", steps)
	}
}

func TestCompile_MixedStepIDTiesAreStable(t *testing.T) {
	reg := newTestRegistry(t, &callLog{})
	for _, order := range [][]api.ID{
		{"2", "10", "1a"},
		{"1a", "2", "10"},
		{"10", "1a", "2"},
	} {
		var steps []api.Step
		for _, id := range order {
			steps = append(steps, step(string(id), "r", 1))
		}
		plan := &api.ExecutionPlan{
			KeywordInstances: []api.KeywordInstance{recordInstance("r", "x")},
			Flows:            []api.Flow{flow("1", 1, "", steps)},
		}

		cp, err := compile(plan, reg)
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}
		var got []api.ID
		for _, cs := range cp.flows[0].steps {
			got = append(got, cs.step.ID)
		}
		if strings.Join(idStrings(got), ",") != "2,10,1a" {
			t.Fatalf("declared %v: unexpected step order %v", order, got)
		}
	}
}

func TestCompile_MandatoryPlanParam(t *testing.T) {
	reg := newTestRegistry(t, &callLog{})
	plan := &api.ExecutionPlan{
		KeywordInstances: []api.KeywordInstance{
			instance("r", "Record", mandatoryParam("r1", "label")),
		},
		Flows: []api.Flow{flow("1", 1, "", []api.Step{step("1", "r", 1)})},
	}

	_, err := compile(plan, reg)
	var pve *api.PlanValidationError
	if !errors.As(err, &pve) {
		t.Fatalf("expected PlanValidationError, got %v", err)
	}
	if len(pve.Issues) != 1 || !strings.Contains(pve.Issues[0], `mandatory input "label"`) {
		t.Fatalf("unexpected issues: %v", pve.Issues)
	}

	plan.KeywordInstances[0].Params[0].Value = api.NewText("filled")
	if _, err := compile(plan, reg); err != nil {
		t.Fatalf("expected literal to satisfy mandatory param, got %v", err)
	}
}

func TestCompile_DefaultSatisfiesRequired(t *testing.T) {
	reg := newTestRegistry(t, &callLog{})
	plan := &api.ExecutionPlan{
		KeywordInstances: []api.KeywordInstance{
			instance("g", "Greet", mandatoryParam("g1", "name")),
		},
		Flows: []api.Flow{flow("1", 1, "", []api.Step{step("1", "g", 1)})},
	}
	if _, err := compile(plan, reg); err != nil {
		t.Fatalf("expected keyword default to satisfy mandatory param, got %v", err)
	}
}

func idStrings(ids []api.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
