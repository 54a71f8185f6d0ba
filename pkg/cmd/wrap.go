package cmd

import "context"

// Unwrappable is implemented by wrapped commands so adapters can reach the
// inner command, e.g. to type-assert a provider interface.
type Unwrappable interface {
	Command
	Unwrap() Command
}

type wrapped struct {
	inner Command
	run   func(ctx context.Context, inv *Invocation) error
}

func (w *wrapped) Name() string        { return w.inner.Name() }
func (w *wrapped) Description() string { return w.inner.Description() }
func (w *wrapped) Unwrap() Command     { return w.inner }

func (w *wrapped) Run(ctx context.Context, inv *Invocation) error {
	return w.run(ctx, inv)
}

// Wrap returns a command that runs run instead of c.Run. Name and Description
// come from c, and Unwrap exposes it.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	if run == nil {
		run = c.Run
	}
	return &wrapped{inner: c, run: run}
}

// Root unwraps c until it reaches a command that is not Unwrappable.
func Root(c Command) Command {
	for {
		u, ok := c.(Unwrappable)
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}
