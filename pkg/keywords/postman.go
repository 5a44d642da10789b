package keywords

import (
	"context"
	"fmt"

	"github.com/petrijr/keycase/pkg/keyword"
)

// registerPostman adds the keywords used by the sample controller plans.
func registerPostman(reg *keyword.Registry) error {
	kws := []*keyword.Keyword{
		{
			Name:        "calculator_postman",
			Description: "Add two numbers and expose the sum as return_sum",
			Inputs: []keyword.ParamSpec{
				keyword.In("num1", keyword.Required()),
				keyword.In("num2", keyword.Required()),
			},
			Outputs: []keyword.OutputSpec{keyword.Out("return_sum", "The sum")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				a, b, err := numbers(in, "num1", "num2")
				if err != nil {
					return nil, err
				}
				return keyword.Values{"return_sum": formatNumber(a + b)}, nil
			},
		},
		{
			Name:        "calc_validation",
			Description: "Fail unless incoming_sum equals validation",
			Inputs: []keyword.ParamSpec{
				keyword.In("incoming_sum", keyword.Required()),
				keyword.In("validation", keyword.Required()),
			},
			Outputs: []keyword.OutputSpec{keyword.Out("valid")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				if !sameValue(in["incoming_sum"], in["validation"]) {
					return nil, fmt.Errorf("Validation failed: expected %s, got %s", in["validation"], in["incoming_sum"])
				}
				return keyword.Values{"valid": "true"}, nil
			},
		},
	}

	for _, kw := range kws {
		if err := reg.Register(kw); err != nil {
			return err
		}
	}
	return nil
}

// sameValue compares numerically when both sides are numbers, so "8" and
// "8.0" match.
func sameValue(a, b string) bool {
	x, errA := parseNumber("a", a)
	y, errB := parseNumber("b", b)
	if errA == nil && errB == nil {
		return x == y
	}
	return a == b
}
