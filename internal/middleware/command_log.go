package middleware

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/rs/zerolog"
)

// WithCommandLogger logs each slash command run and appends it to the guild's history.
func WithCommandLogger() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			v, ok := slashContext(inv)
			if !ok {
				return err
			}
			rec := historyRecord(v, c.Name())

			level := zerolog.InfoLevel
			if err != nil {
				level = zerolog.WarnLevel
			}
			v.Log.WithLevel(level).Err(err).
				Str("command", rec.Command).
				Str("param", rec.Param).
				Str("guild", v.Event.GuildID).
				Str("user", rec.Username).
				Dur("took", time.Since(start)).
				Msg("command")

			if v.Storage != nil && v.Event.GuildID != "" {
				if serr := v.Storage.AppendCommandToHistory(v.Event.GuildID, rec); serr != nil {
					v.Log.Warn().Err(serr).Str("command", rec.Command).Msg("store command history")
				}
			}
			return err
		})
	}
}

func historyRecord(v *command.SlashInteractionContext, name string) storage.CommandHistoryRecord {
	rec := storage.CommandHistoryRecord{
		ChannelID: v.Event.ChannelID,
		Command:   name,
		Datetime:  time.Now(),
	}
	if u := v.User(); u != nil {
		rec.UserID, rec.Username = u.ID, u.Username
	}

	if v.Event.Type == discordgo.InteractionApplicationCommand {
		sub, opts := command.Options(v.Event)
		if sub != "" {
			rec.Command += " " + sub
		}
		var params []string
		for key, o := range opts {
			if o.Type == discordgo.ApplicationCommandOptionString {
				params = append(params, key+"="+o.StringValue())
			}
		}
		slices.Sort(params)
		rec.Param = strings.Join(params, " ")
	}

	if v.Session != nil && v.Session.State != nil {
		if ch, err := v.Session.State.Channel(rec.ChannelID); err == nil {
			rec.ChannelName = ch.Name
		}
		if g, err := v.Session.State.Guild(v.Event.GuildID); err == nil {
			rec.GuildName = g.Name
		}
	}
	return rec
}
