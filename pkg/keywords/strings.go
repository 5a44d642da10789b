package keywords

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/petrijr/keycase/pkg/keyword"
)

func registerStrings(reg *keyword.Registry) error {
	kws := []*keyword.Keyword{
		{
			Name:        "String Concat",
			Description: "Concatenate two strings with an optional separator",
			Inputs: []keyword.ParamSpec{
				keyword.In("text1", keyword.Required(), keyword.Describe("First text")),
				keyword.In("text2", keyword.Required(), keyword.Describe("Second text")),
				keyword.In("separator", keyword.Default(" "), keyword.Describe("Separator between texts")),
			},
			Outputs: []keyword.OutputSpec{keyword.Out("result", "Concatenated string")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				return keyword.Values{"result": in["text1"] + in["separator"] + in["text2"]}, nil
			},
		},
		{
			Name:        "String Upper",
			Description: "Convert text to uppercase",
			Inputs:      []keyword.ParamSpec{keyword.In("text", keyword.Required(), keyword.Describe("Text to convert"))},
			Outputs:     []keyword.OutputSpec{keyword.Out("result", "Uppercase text")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				return keyword.Values{"result": strings.ToUpper(in["text"])}, nil
			},
		},
		{
			Name:        "String Lower",
			Description: "Convert text to lowercase",
			Inputs:      []keyword.ParamSpec{keyword.In("text", keyword.Required(), keyword.Describe("Text to convert"))},
			Outputs:     []keyword.OutputSpec{keyword.Out("result", "Lowercase text")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				return keyword.Values{"result": strings.ToLower(in["text"])}, nil
			},
		},
		{
			Name:        "String Length",
			Description: "Get the length of a string",
			Inputs:      []keyword.ParamSpec{keyword.In("text", keyword.Required(), keyword.Describe("Text to measure"))},
			Outputs:     []keyword.OutputSpec{keyword.Out("length", "Length of the text")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				return keyword.Values{"length": strconv.Itoa(utf8.RuneCountInString(in["text"]))}, nil
			},
		},
		{
			Name:        "String Contains",
			Description: "Check if a string contains another string",
			Inputs: []keyword.ParamSpec{
				keyword.In("text", keyword.Required(), keyword.Describe("Text to search in")),
				keyword.In("search", keyword.Required(), keyword.Describe("Text to search for")),
			},
			Outputs: []keyword.OutputSpec{keyword.Out("found", "Whether search text was found (true/false)")},
			Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
				return keyword.Values{"found": strconv.FormatBool(strings.Contains(in["text"], in["search"]))}, nil
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
