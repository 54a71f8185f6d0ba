package core

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/bot"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/pkg/cmd"
)

type HelpCommand struct {
	Registry *cmd.Registry
	AppName  string
}

func (c *HelpCommand) Name() string             { return "help" }
func (c *HelpCommand) Description() string      { return "Get a list of available commands" }
func (c *HelpCommand) Group() string            { return "core" }
func (c *HelpCommand) Category() string         { return "🕯️ Information" }
func (c *HelpCommand) UserPermissions() []int64 { return []int64{} }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *HelpCommand) Run(_ context.Context, data any) error {
	slash, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	return bot.RespondEmbedEphemeral(slash.Session, slash.Event, &discordgo.MessageEmbed{
		Title:       c.AppName + " Help",
		Description: buildHelp(c.Registry.All()),
	})
}

// buildHelp lists commands by category, expanding subcommands.
func buildHelp(all []cmd.Command) string {
	byCategory := make(map[string][]cmd.Command)
	for _, c := range all {
		cat := ""
		if m, ok := cmd.Root(c).(command.DiscordMeta); ok {
			cat = m.Category()
		}
		byCategory[cat] = append(byCategory[cat], c)
	}

	cats := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, cat)
	}
	slices.SortFunc(cats, func(a, b string) int {
		return cmp.Or(cmp.Compare(config.CategoryWeights[a], config.CategoryWeights[b]), strings.Compare(a, b))
	})

	var sb strings.Builder
	for _, cat := range cats {
		if cat != "" {
			fmt.Fprintf(&sb, "**%s**\n", cat)
		}
		for _, c := range byCategory[cat] {
			writeCommand(&sb, c)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func writeCommand(sb *strings.Builder, c cmd.Command) {
	sp, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		fmt.Fprintf(sb, "`/%s` - %s\n", c.Name(), c.Description())
		return
	}
	def := sp.SlashDefinition()
	var subs int
	for _, o := range def.Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			fmt.Fprintf(sb, "`/%s %s` - %s\n", def.Name, o.Name, o.Description)
			subs++
		}
	}
	if subs == 0 {
		fmt.Fprintf(sb, "`/%s` - %s\n", def.Name, def.Description)
	}
}
