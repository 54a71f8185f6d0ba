// Package cmd is a transport-agnostic command core: a command has a name, a
// description and Run(ctx, invocation). Registration and dispatch for a concrete
// transport (Discord slash commands here) live in adapters that wrap this.
package cmd

import "context"

// Invocation carries the input of one command run. Adapters put their own
// context (session, event, storage) in Data.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
