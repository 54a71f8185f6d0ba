// Package middleware holds pkg/cmd middlewares for Discord slash commands.
package middleware

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/bot"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/pkg/cmd"
)

// respond tells the invoking user why a command did not run. Replaced in tests.
var respond = func(s *discordgo.Session, e *discordgo.InteractionCreate, msg string) error {
	return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: msg})
}

func slashContext(inv *cmd.Invocation) (*command.SlashInteractionContext, bool) {
	v, ok := inv.Data.(*command.SlashInteractionContext)
	return v, ok && v.Event != nil
}

func meta(c cmd.Command) (command.DiscordMeta, bool) {
	m, ok := cmd.Root(c).(command.DiscordMeta)
	return m, ok
}
