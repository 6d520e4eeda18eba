package assemblage

import "context"

// Initializer is implemented by assemblages that need post-construction
// setup. OnInit runs exactly once per singleton, after the constructor
// returned and after every transitive singleton dependency completed its own
// OnInit.
type Initializer interface {
	OnInit(ctx context.Context) error
}

// Disposer is implemented by assemblages that hold resources. OnDispose runs
// exactly once per singleton at container teardown, in reverse OnInit order.
type Disposer interface {
	OnDispose(ctx context.Context) error
}
