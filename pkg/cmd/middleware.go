package cmd

// Middleware wraps a command (logging, access checks).
type Middleware func(Command) Command

// Apply wraps c so that the first middleware is the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
