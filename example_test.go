package keycase_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/petrijr/keycase"
	"github.com/petrijr/keycase/pkg/keyword"
	"github.com/petrijr/keycase/pkg/keywords"
)

// calculatePlan adds 5 and 3 and validates the sum against want.
func calculatePlan(want string) *keycase.ExecutionPlan {
	return &keycase.ExecutionPlan{
		Name: "Calculator Test",
		KeywordInstances: []keycase.KeywordInstance{
			{ID: "1", KeywordName: "calculator_postman", Params: []keycase.Param{
				{ID: "1", Name: "num1", Direction: "INPUT", Value: keycase.NewText("5")},
				{ID: "2", Name: "num2", Direction: "INPUT", Value: keycase.NewText("3")},
				{ID: "3", Name: "return_sum", Direction: "OUTPUT"},
			}},
			{ID: "2", KeywordName: "calc_validation", Params: []keycase.Param{
				{ID: "4", Name: "incoming_sum", Direction: "INPUT", IsMandatory: true},
				{ID: "5", Name: "validation", Direction: "INPUT", Value: keycase.NewText(want)},
			}},
		},
		Flows: []keycase.Flow{{
			ID:   "1",
			Name: "Calculate and Validate",
			Steps: []keycase.Step{
				{ID: "1", InstanceID: "1", SequenceOrder: 0},
				{ID: "2", InstanceID: "2", SequenceOrder: 1},
			},
			Connections: []keycase.Connection{
				{ID: "1", FromStepID: "1", ToStepID: "2", FromParamID: "3", ToParamID: "4"},
			},
		}},
	}
}

// Example_execute runs a plan against the built-in keyword library.
func Example_execute() {
	ctx := context.Background()

	reg := keycase.NewRegistry()
	if err := keywords.RegisterAll(reg); err != nil {
		log.Fatal(err)
	}
	reg.Freeze()

	eng := keycase.NewInMemoryEngine(reg)

	for _, want := range []string{"8", "9"} {
		res, err := keycase.Execute(ctx, eng, calculatePlan(want), "example", "")
		if err != nil {
			log.Fatal(err)
		}
		fr := res.FlowResults[0]
		if fr.Passed() {
			fmt.Printf("%s: %s\n", fr.Name, fr.Status)
		} else {
			fmt.Printf("%s: %s at step %s: %s\n", fr.Name, fr.Status, *fr.FailedOnStepID, *fr.Message)
		}
	}

	// Output:
	// Calculate and Validate: PASSED
	// Calculate and Validate: FAILED at step 2: Validation failed: expected 9, got 8
}

// Example_keywordBuilder declares a keyword with the fluent builder and shows
// its schema.
func Example_keywordBuilder() {
	reg := keycase.NewRegistry()

	keycase.NewKeyword("Shout").
		Describe("Uppercases text").
		Input("text", keyword.Required()).
		Input("suffix", keyword.Default("!")).
		Output("result").
		Handle(func(ctx context.Context, in keycase.Values) (keycase.Values, error) {
			return keycase.Values{"result": strings.ToUpper(in["text"]) + in["suffix"]}, nil
		}).
		MustRegister(reg)

	s, err := reg.Describe("Shout")
	if err != nil {
		log.Fatal(err)
	}
	for _, in := range s.Inputs {
		fmt.Printf("%s required=%v\n", in.Name, in.Required)
	}

	// Output:
	// text required=true
	// suffix required=false
}

// Example_localRunner executes a plan asynchronously through an in-process
// queue and worker.
func Example_localRunner() {
	ctx := context.Background()

	reg := keycase.NewRegistry()
	if err := keywords.RegisterAll(reg); err != nil {
		log.Fatal(err)
	}
	reg.Freeze()

	runner := keycase.NewLocalRunner(reg)

	if err := runner.StartWorkers(ctx, 1); err != nil {
		log.Fatal(err)
	}
	defer runner.Stop()

	if _, err := runner.ExecuteAsync(ctx, "example", calculatePlan("8"), "async-1"); err != nil {
		log.Fatal(err)
	}

	// In a real application a Reporter receives the result; here the worker
	// just gets a moment to run.
}
