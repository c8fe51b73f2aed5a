package state

import "fmt"

// Phase is the stage a mutation has reached.
type Phase int

const (
	// Pending: the mutation was accepted and, for optimistic updates, is
	// already visible in memory.
	Pending Phase = iota
	// Committed: the mutation is final and the state has been saved.
	Committed
	// Failed: the mutation was rejected or rolled back.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Result is the outcome of a mutator. Value is set when Phase is Committed;
// Err is set when Phase is Failed.
type Result[T any] struct {
	Phase Phase
	Value T
	Err   error
}

// Get returns the committed value or the failure.
func (r Result[T]) Get() (T, error) {
	if r.Phase == Failed {
		var zero T
		return zero, r.Err
	}
	return r.Value, nil
}

// OK reports whether the mutation committed.
func (r Result[T]) OK() bool {
	return r.Phase == Committed
}

func committed[T any](v T) Result[T] {
	return Result[T]{Phase: Committed, Value: v}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Phase: Failed, Err: err}
}

// Event reports one phase transition of a mutation to observers.
type Event struct {
	Op    string
	Phase Phase
	Err   error
}
