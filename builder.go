package keycase

import (
	"context"
	"fmt"

	"github.com/petrijr/keycase/pkg/keyword"
)

// KeywordBuilder provides a fluent API for declaring keywords:
//
//	keycase.NewKeyword("Add Numbers").
//	    Describe("Adds two integers").
//	    Input("num1", keyword.Required()).
//	    Input("num2", keyword.Required()).
//	    Output("result").
//	    Handle(add).
//	    MustRegister(reg)
type KeywordBuilder struct {
	kw keyword.Keyword
}

// NewKeyword creates a new keyword builder with the given name.
func NewKeyword(name string) *KeywordBuilder {
	if name == "" {
		panic("keycase: keyword name must not be empty")
	}
	return &KeywordBuilder{kw: keyword.Keyword{Name: name}}
}

// Name returns the keyword name.
func (b *KeywordBuilder) Name() string {
	return b.kw.Name
}

// Describe sets the keyword description shown by Registry.Describe.
func (b *KeywordBuilder) Describe(text string) *KeywordBuilder {
	b.kw.Description = text
	return b
}

// Input appends an input param. Inputs are optional unless keyword.Required
// is given; keyword.Default makes them optional with a default.
func (b *KeywordBuilder) Input(name string, opts ...keyword.Option) *KeywordBuilder {
	b.kw.Inputs = append(b.kw.Inputs, keyword.In(name, opts...))
	return b
}

// Output appends an output param.
func (b *KeywordBuilder) Output(name string, description ...string) *KeywordBuilder {
	b.kw.Outputs = append(b.kw.Outputs, keyword.Out(name, description...))
	return b
}

// Handle sets the function invoked for this keyword.
func (b *KeywordBuilder) Handle(fn func(ctx context.Context, in Values) (Values, error)) *KeywordBuilder {
	if fn == nil {
		panic(fmt.Sprintf("keycase: keyword %q has nil handler", b.kw.Name))
	}
	b.kw.Handler = fn
	return b
}

// Build returns a copy of the declared keyword.
func (b *KeywordBuilder) Build() *Keyword {
	kw := b.kw
	kw.Inputs = append([]keyword.ParamSpec(nil), b.kw.Inputs...)
	kw.Outputs = append([]keyword.OutputSpec(nil), b.kw.Outputs...)
	return &kw
}

// Register adds the keyword to reg.
func (b *KeywordBuilder) Register(reg *Registry) error {
	return reg.Register(b.Build())
}

// MustRegister is like Register but panics on error.
func (b *KeywordBuilder) MustRegister(reg *Registry) {
	if err := b.Register(reg); err != nil {
		panic(err)
	}
}
