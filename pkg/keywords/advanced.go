package keywords

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/petrijr/keycase/pkg/keyword"
)

// QuickCalculationInput is the input of Quick Calculation. Unknown
// operations fall back to addition.
type QuickCalculationInput struct {
	A         string `param:"a" desc:"First operand"`
	B         string `param:"b" desc:"Second operand"`
	Operation string `param:"operation" default:"add" desc:"add, subtract or multiply"`
}

type QuickCalculationOutput struct {
	Result string `param:"result"`
}

func quickCalculation(ctx context.Context, in QuickCalculationInput) (QuickCalculationOutput, error) {
	a, err := parseNumber("a", in.A)
	if err != nil {
		return QuickCalculationOutput{}, err
	}
	b, err := parseNumber("b", in.B)
	if err != nil {
		return QuickCalculationOutput{}, err
	}

	var r float64
	switch in.Operation {
	case "subtract":
		r = a - b
	case "multiply":
		r = a * b
	default:
		r = a + b
	}
	return QuickCalculationOutput{Result: formatNumber(r)}, nil
}

// messageID derives a stable id from recipient and message.
func messageID(recipient, message string) string {
	sum := md5.Sum([]byte(recipient + message))
	return "MSG-" + strings.ToUpper(hex.EncodeToString(sum[:])[:8])
}

func registerAdvanced(reg *keyword.Registry) error {
	quick, err := keyword.Typed("Quick Calculation", quickCalculation)
	if err != nil {
		return err
	}
	quick.Description = "Perform a calculation with parameters derived from its input struct"

	kws := []*keyword.Keyword{
		{
			Name:        "Set Priority",
			Description: "Set a priority level from predefined choices",
			Inputs: []keyword.ParamSpec{
				keyword.In("priority", keyword.Required(),
					keyword.Choices("LOW", "MEDIUM", "HIGH", "CRITICAL"),
					keyword.Describe("Priority level")),
			},
			Outputs: []keyword.OutputSpec{keyword.Out("message", "Confirmation message")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				return keyword.Values{"message": "Priority set to: " + in["priority"]}, nil
			},
		},
		{
			Name:        "Get User Info",
			Description: "Retrieve user information",
			Inputs:      []keyword.ParamSpec{keyword.In("user_id", keyword.Required(), keyword.Describe("User identifier"))},
			Outputs: []keyword.OutputSpec{
				keyword.Out("username", "User's name"),
				keyword.Out("email", "User's email"),
				keyword.Out("active", "Account status (true/false)"),
			},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				id := in["user_id"]
				return keyword.Values{
					"username": "user_" + id,
					"email":    "user_" + id + "@example.com",
					"active":   "true",
				}, nil
			},
		},
		{
			Name:        "Send Message",
			Description: "Send a message with required and optional parameters",
			Inputs: []keyword.ParamSpec{
				keyword.In("recipient", keyword.Required(), keyword.Describe("Recipient address")),
				keyword.In("message", keyword.Required(), keyword.Describe("Message content")),
				keyword.In("subject", keyword.Default("No Subject"), keyword.Describe("Optional subject")),
				keyword.In("priority", keyword.Default("NORMAL"), keyword.Describe("Optional priority")),
			},
			Outputs: []keyword.OutputSpec{
				keyword.Out("status", "Send status"),
				keyword.Out("message_id", "Generated message ID"),
			},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				return keyword.Values{
					"status":     "sent",
					"message_id": messageID(in["recipient"], in["message"]),
				}, nil
			},
		},
		quick,
		{
			Name:        "Validate Range",
			Description: "Validate that a value falls within a range",
			Inputs: []keyword.ParamSpec{
				keyword.In("value", keyword.Required(), keyword.Describe("Value to validate")),
				keyword.In("min_value", keyword.Required(), keyword.Describe("Minimum allowed value")),
				keyword.In("max_value", keyword.Required(), keyword.Describe("Maximum allowed value")),
			},
			Outputs: []keyword.OutputSpec{
				keyword.Out("valid", "Whether value is in range (true/false)"),
				keyword.Out("message", "Validation message"),
			},
			Handler: validateRange,
		},
	}

	for _, kw := range kws {
		if err := reg.Register(kw); err != nil {
			return err
		}
	}
	return nil
}

func validateRange(ctx context.Context, in keyword.Values) (keyword.Values, error) {
	val, err := parseNumber("value", in["value"])
	if err != nil {
		return nil, err
	}
	lo, hi, err := numbers(in, "min_value", "max_value")
	if err != nil {
		return nil, err
	}

	valid := lo <= val && val <= hi
	where := "within"
	if !valid {
		where = "outside"
	}
	return keyword.Values{
		"valid": fmt.Sprint(valid),
		"message": fmt.Sprintf("Value %s is %s range [%s, %s]",
			formatNumber(val), where, formatNumber(lo), formatNumber(hi)),
	}, nil
}
