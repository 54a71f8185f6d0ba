package middleware

import (
	"context"

	"github.com/keshon/domme-music/pkg/cmd"
)

// WithGuildOnly refuses slash commands sent outside a guild.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if v, ok := slashContext(inv); ok && v.Event.GuildID == "" {
				return respond(v.Session, v.Event, "This command only works in a server.")
			}
			return c.Run(ctx, inv)
		})
	}
}
