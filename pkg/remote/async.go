package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/petrijr/keycase/pkg/keyword"
)

type (
	// Dispatcher delivers an invocation to whoever will execute it. It
	// must not block until completion; the result arrives through
	// AsyncInvoker.Complete.
	Dispatcher interface {
		Dispatch(ctx context.Context, invocationID string, inv keyword.Invocation) error
	}

	// DispatcherFunc adapts a function to the Dispatcher interface.
	DispatcherFunc func(ctx context.Context, invocationID string, inv keyword.Invocation) error

	// AsyncInvoker suspends each step on a future until Complete delivers
	// the outputs or an error message.
	AsyncInvoker struct {
		dispatcher Dispatcher

		mu      sync.Mutex
		pending map[string]chan outcome
	}

	outcome struct {
		out keyword.Values
		err error
	}
)

var ErrUnknownInvocation = errors.New("invocation not pending")

var _ keyword.Invoker = (*AsyncInvoker)(nil)

func (f DispatcherFunc) Dispatch(ctx context.Context, invocationID string, inv keyword.Invocation) error {
	return f(ctx, invocationID, inv)
}

func NewAsyncInvoker(d Dispatcher) *AsyncInvoker {
	return &AsyncInvoker{
		dispatcher: d,
		pending:    make(map[string]chan outcome),
	}
}

// Invoke dispatches inv and waits for Complete or ctx. A step whose ctx
// ends is forgotten; a later Complete for it returns ErrUnknownInvocation.
func (a *AsyncInvoker) Invoke(ctx context.Context, inv keyword.Invocation) (keyword.Values, error) {
	id := uuid.NewString()
	ch := make(chan outcome, 1)

	a.mu.Lock()
	a.pending[id] = ch
	a.mu.Unlock()
	defer a.forget(id)

	if err := a.dispatcher.Dispatch(ctx, id, inv); err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", inv.Keyword.Name, err)
	}

	select {
	case o := <-ch:
		return o.out, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Complete resolves a pending invocation. A non-empty errMsg fails the step
// with that message.
func (a *AsyncInvoker) Complete(invocationID string, outputs keyword.Values, errMsg string) error {
	a.mu.Lock()
	ch, ok := a.pending[invocationID]
	delete(a.pending, invocationID)
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInvocation, invocationID)
	}

	if errMsg != "" {
		ch <- outcome{err: errors.New(errMsg)}
		return nil
	}
	if outputs == nil {
		outputs = keyword.Values{}
	}
	ch <- outcome{out: outputs}
	return nil
}

// Pending returns the number of invocations awaiting completion.
func (a *AsyncInvoker) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *AsyncInvoker) forget(id string) {
	a.mu.Lock()
	delete(a.pending, id)
	a.mu.Unlock()
}
