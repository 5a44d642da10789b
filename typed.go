package keycase

import (
	"context"

	"github.com/petrijr/keycase/pkg/keyword"
)

// Typed builds a keyword from a function over string-field structs. See
// keyword.Typed for the struct tags it understands.
func Typed[I, O any](name string, fn func(context.Context, I) (O, error)) (*Keyword, error) {
	return keyword.Typed(name, fn)
}

// RegisterTyped builds a typed keyword and adds it to reg.
func RegisterTyped[I, O any](reg *Registry, name string, fn func(context.Context, I) (O, error)) error {
	kw, err := keyword.Typed(name, fn)
	if err != nil {
		return err
	}
	return reg.Register(kw)
}
