package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
	"github.com/keshon/domme-music/internal/bot"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/version"
)

type AboutCommand struct{}

func (c *AboutCommand) Name() string             { return "about" }
func (c *AboutCommand) Description() string      { return "Discover the origin of this bot" }
func (c *AboutCommand) Group() string            { return "core" }
func (c *AboutCommand) Category() string         { return "🕯️ Information" }
func (c *AboutCommand) UserPermissions() []int64 { return []int64{} }

func (c *AboutCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *AboutCommand) Run(_ context.Context, data any) error {
	slash, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	return bot.RespondEmbedEphemeral(slash.Session, slash.Event, aboutEmbed())
}

func aboutEmbed() *discordgo.MessageEmbed {
	buildDate := "unknown"
	if version.BuildDate != "" {
		if t, err := time.Parse(time.RFC3339, version.BuildDate); err == nil {
			buildDate = t.Format(time.DateOnly)
		} else {
			buildDate = "invalid date"
		}
	}

	goVer := "unknown"
	if version.GoVersion != "" {
		goVer = strings.TrimPrefix(version.GoVersion, "go")
	}

	return embed.NewEmbed().
		SetColor(bot.EmbedColor).
		SetDescription(fmt.Sprintf("ℹ️ **About %s**\n\n%s", version.AppName, version.AppDescription)).
		AddField("Repository", "https://github.com/keshon/domme-music").
		AddField("Release", fmt.Sprintf("%s (Go %s)", buildDate, goVer)).
		MessageEmbed
}
