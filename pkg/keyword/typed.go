package keyword

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Struct tags read by Typed.
const (
	tagParam   = "param"
	tagDefault = "default"
	tagChoices = "choices"
	tagDesc    = "desc"
)

var ErrUnsupportedType = errors.New("typed keywords need struct types with string fields")

// Typed builds a Keyword from a function over plain structs. Param specs are
// derived once, here, from the struct fields of I and O:
//
//	type AddInput struct {
//	    A  string `param:"a"`
//	    B  string `param:"b"`
//	    Op string `param:"operation" default:"add" choices:"add,subtract"`
//	}
//	type AddOutput struct {
//	    Result string `param:"result"`
//	}
//
// Fields without a default tag are required inputs. Every field must be a
// string; values stay opaque text.
func Typed[I, O any](
	name string, fn func(context.Context, I) (O, error),
) (*Keyword, error) {
	if fn == nil {
		return nil, fmt.Errorf("keyword %q: %w", name, ErrNilHandler)
	}

	inputs, err := deriveInputs(reflect.TypeFor[I]())
	if err != nil {
		return nil, fmt.Errorf("keyword %q: %w", name, err)
	}
	outputs, err := deriveOutputs(reflect.TypeFor[O]())
	if err != nil {
		return nil, fmt.Errorf("keyword %q: %w", name, err)
	}

	handler := func(ctx context.Context, in Values) (Values, error) {
		var typedIn I
		if err := decodeValues(in, &typedIn); err != nil {
			return nil, err
		}
		typedOut, err := fn(ctx, typedIn)
		if err != nil {
			return nil, err
		}
		out := Values{}
		if err := decodeValues(typedOut, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	return &Keyword{
		Name:    name,
		Inputs:  inputs,
		Outputs: outputs,
		Handler: handler,
	}, nil
}

// MustTyped is like Typed but panics on error.
func MustTyped[I, O any](name string, fn func(context.Context, I) (O, error)) *Keyword {
	kw, err := Typed(name, fn)
	if err != nil {
		panic(err)
	}
	return kw
}

func decodeValues(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: tagParam,
		Result:  out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func deriveInputs(t reflect.Type) ([]ParamSpec, error) {
	fields, err := stringFields(t)
	if err != nil {
		return nil, err
	}

	specs := make([]ParamSpec, 0, len(fields))
	for _, f := range fields {
		spec := ParamSpec{
			Name:        paramName(f),
			Description: f.Tag.Get(tagDesc),
		}
		if def, ok := f.Tag.Lookup(tagDefault); ok {
			spec.Default = def
			spec.HasDefault = true
		} else {
			spec.Required = true
		}
		if choices := f.Tag.Get(tagChoices); choices != "" {
			for _, c := range strings.Split(choices, ",") {
				spec.Choices = append(spec.Choices, strings.TrimSpace(c))
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func deriveOutputs(t reflect.Type) ([]OutputSpec, error) {
	fields, err := stringFields(t)
	if err != nil {
		return nil, err
	}

	specs := make([]OutputSpec, 0, len(fields))
	for _, f := range fields {
		specs = append(specs, OutputSpec{
			Name:        paramName(f),
			Description: f.Tag.Get(tagDesc),
		})
	}
	return specs, nil
}

func stringFields(t reflect.Type) ([]reflect.StructField, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedType, t)
	}

	var out []reflect.StructField
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get(tagParam) == "-" {
			continue
		}
		if f.Type.Kind() != reflect.String {
			return nil, fmt.Errorf("%w: field %s is %s", ErrUnsupportedType, f.Name, f.Type)
		}
		out = append(out, f)
	}
	return out, nil
}

func paramName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get(tagParam), ","); name != "" {
		return name
	}
	return f.Name
}
