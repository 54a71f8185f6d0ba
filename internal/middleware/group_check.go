package middleware

import (
	"context"

	"github.com/keshon/domme-music/pkg/cmd"
)

// WithGroupAccessCheck refuses commands whose group is disabled for the guild.
func WithGroupAccessCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := slashContext(inv)
			if !ok || v.Storage == nil || v.Event.GuildID == "" {
				return c.Run(ctx, inv)
			}
			m, ok := meta(c)
			if !ok || m.Group() == "" {
				return c.Run(ctx, inv)
			}

			disabled, err := v.Storage.IsGroupDisabled(v.Event.GuildID, m.Group())
			if err != nil {
				v.Log.Warn().Err(err).Str("group", m.Group()).Msg("group check failed, allowing")
				return c.Run(ctx, inv)
			}
			if disabled {
				return respond(v.Session, v.Event, "This command is disabled on this server.\nUse `/maintenance commands` to enable it.")
			}
			return c.Run(ctx, inv)
		})
	}
}
