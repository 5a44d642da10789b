package keyword

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Values maps param names to opaque text values. Keywords receive their
// resolved inputs and return their outputs as Values.
type Values map[string]string

// Handler is the callable behind a keyword.
type Handler func(ctx context.Context, in Values) (Values, error)

// ParamSpec describes one input a keyword accepts.
type ParamSpec struct {
	Name        string
	Description string
	Required    bool
	Default     string
	HasDefault  bool
	Choices     []string
}

// OutputSpec describes one output a keyword produces.
type OutputSpec struct {
	Name        string
	Description string
}

// Keyword is a named, invocable unit of automation. A Keyword must not be
// modified after it has been registered.
type Keyword struct {
	Name        string
	Description string
	Inputs      []ParamSpec
	Outputs     []OutputSpec
	Handler     Handler
}

var (
	ErrEmptyName         = errors.New("name must not be empty")
	ErrNilHandler        = errors.New("handler must not be nil")
	ErrDuplicateParam    = errors.New("duplicate param name")
	ErrDefaultNotAllowed = errors.New("default value requires an optional input")
	ErrDefaultNotChoice  = errors.New("default value is not one of the choices")
)

// Input returns the spec of the named input.
func (k *Keyword) Input(name string) (ParamSpec, bool) {
	for _, in := range k.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return ParamSpec{}, false
}

// HasOutput reports whether the keyword declares the named output.
func (k *Keyword) HasOutput(name string) bool {
	for _, out := range k.Outputs {
		if out.Name == name {
			return true
		}
	}
	return false
}

// Validate checks the keyword's declaration.
func (k *Keyword) Validate() error {
	if k.Name == "" {
		return fmt.Errorf("keyword: %w", ErrEmptyName)
	}
	if k.Handler == nil {
		return fmt.Errorf("keyword %q: %w", k.Name, ErrNilHandler)
	}

	seen := map[string]bool{}
	for _, in := range k.Inputs {
		if err := in.validate(); err != nil {
			return fmt.Errorf("keyword %q: %w", k.Name, err)
		}
		if seen[in.Name] {
			return fmt.Errorf("keyword %q: %w: %q", k.Name, ErrDuplicateParam, in.Name)
		}
		seen[in.Name] = true
	}

	seen = map[string]bool{}
	for _, out := range k.Outputs {
		if out.Name == "" {
			return fmt.Errorf("keyword %q: output %w", k.Name, ErrEmptyName)
		}
		if seen[out.Name] {
			return fmt.Errorf("keyword %q: %w: output %q", k.Name, ErrDuplicateParam, out.Name)
		}
		seen[out.Name] = true
	}
	return nil
}

func (p ParamSpec) validate() error {
	if p.Name == "" {
		return fmt.Errorf("input %w", ErrEmptyName)
	}
	if p.HasDefault && p.Required {
		return fmt.Errorf("input %q: %w", p.Name, ErrDefaultNotAllowed)
	}
	if p.HasDefault && !p.Allows(p.Default) {
		return fmt.Errorf("input %q: %w", p.Name, ErrDefaultNotChoice)
	}
	return nil
}

// Allows reports whether v is acceptable for this input. Inputs without
// choices accept anything.
func (p ParamSpec) Allows(v string) bool {
	return len(p.Choices) == 0 || slices.Contains(p.Choices, v)
}

// Option customizes a ParamSpec.
type Option func(*ParamSpec)

// Required marks an input as mandatory.
func Required() Option {
	return func(p *ParamSpec) { p.Required = true }
}

// Default makes an input optional with the given default value.
func Default(v string) Option {
	return func(p *ParamSpec) {
		p.Default = v
		p.HasDefault = true
		p.Required = false
	}
}

// Choices restricts an input to a fixed set of values.
func Choices(values ...string) Option {
	return func(p *ParamSpec) { p.Choices = slices.Clone(values) }
}

// Describe sets the input's description.
func Describe(text string) Option {
	return func(p *ParamSpec) { p.Description = text }
}

// In builds a ParamSpec. Inputs are optional unless Required is given.
func In(name string, opts ...Option) ParamSpec {
	p := ParamSpec{Name: name}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Out builds an OutputSpec.
func Out(name string, description ...string) OutputSpec {
	o := OutputSpec{Name: name}
	if len(description) > 0 {
		o.Description = description[0]
	}
	return o
}
