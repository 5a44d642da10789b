package keywords

import (
	"context"
	"errors"

	"github.com/petrijr/keycase"
	"github.com/petrijr/keycase/pkg/keyword"
)

// ErrDivideByZero is returned by Calculator Divide for a zero divisor.
var ErrDivideByZero = errors.New("Cannot divide by zero")

func binaryOp(op func(a, b float64) (float64, error), a, b string) keycase.Handler {
	return func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
		x, y, err := numbers(in, a, b)
		if err != nil {
			return nil, err
		}
		r, err := op(x, y)
		if err != nil {
			return nil, err
		}
		return keyword.Values{"result": formatNumber(r)}, nil
	}
}

func registerCalculator(reg *keyword.Registry) error {
	add := func(a, b float64) (float64, error) { return a + b, nil }
	sub := func(a, b float64) (float64, error) { return a - b, nil }
	mul := func(a, b float64) (float64, error) { return a * b, nil }
	div := func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	}

	builders := []*keycase.KeywordBuilder{
		keycase.NewKeyword("Calculator Add").
			Describe("Add two numbers together").
			Input("num1", keyword.Required(), keyword.Describe("First number to add")).
			Input("num2", keyword.Required(), keyword.Describe("Second number to add")).
			Output("result", "The sum of the two numbers").
			Handle(binaryOp(add, "num1", "num2")),
		keycase.NewKeyword("Calculator Subtract").
			Describe("Subtract one number from another").
			Input("num1", keyword.Required(), keyword.Describe("Number to subtract from")).
			Input("num2", keyword.Required(), keyword.Describe("Number to subtract")).
			Output("result", "The difference").
			Handle(binaryOp(sub, "num1", "num2")),
		keycase.NewKeyword("Calculator Multiply").
			Describe("Multiply two numbers").
			Input("num1", keyword.Required(), keyword.Describe("First factor")).
			Input("num2", keyword.Required(), keyword.Describe("Second factor")).
			Output("result", "The product").
			Handle(binaryOp(mul, "num1", "num2")),
		keycase.NewKeyword("Calculator Divide").
			Describe("Divide one number by another").
			Input("dividend", keyword.Required(), keyword.Describe("Number to divide")).
			Input("divisor", keyword.Required(), keyword.Describe("Number to divide by")).
			Output("result", "The quotient").
			Handle(binaryOp(div, "dividend", "divisor")),
	}

	for _, b := range builders {
		if err := b.Register(reg); err != nil {
			return err
		}
	}
	return nil
}
