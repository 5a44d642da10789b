package keyword

import (
	"context"
	"fmt"
)

// Invocation is a single keyword call made on behalf of a plan step.
type Invocation struct {
	RunID   string
	FlowID  string
	StepID  string
	Keyword *Keyword
	Inputs  Values
}

// Invoker performs keyword invocations. The engine invokes local handlers by
// default; remote invokers forward the call and wait for its completion.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Values, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, inv Invocation) (Values, error)

func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) (Values, error) {
	return f(ctx, inv)
}

// LocalInvoker calls the keyword's handler in-process. A panicking handler
// is reported as an error.
type LocalInvoker struct{}

var _ Invoker = LocalInvoker{}

func (LocalInvoker) Invoke(ctx context.Context, inv Invocation) (out Values, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return inv.Keyword.Handler(ctx, inv.Inputs)
}
