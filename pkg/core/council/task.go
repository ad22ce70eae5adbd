package council

import (
	"context"
	"sync"
)

// Task is a handle on background work started with Go. It can be canceled
// and waited on.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Go runs fn in a new goroutine with a context derived from parent that
// Cancel will cancel.
func Go(parent context.Context, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		err := fn(ctx)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}()
	return t
}

// Cancel asks the task to stop. It does not wait.
func (t *Task) Cancel() {
	if t != nil {
		t.cancel()
	}
}

// Done is closed when the task returns.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task returns or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the task's result, or nil while it is still running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
