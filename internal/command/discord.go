// Package command adapts Discord slash commands to the transport-agnostic pkg/cmd core.
package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/rs/zerolog"
)

// SlashInteractionContext is what the bot passes as cmd.Invocation.Data for slash commands.
type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
	Log     zerolog.Logger
}

// User returns whoever invoked the interaction, in or out of a guild.
func (c *SlashInteractionContext) User() *discordgo.User {
	if c.Event.Member != nil && c.Event.Member.User != nil {
		return c.Event.Member.User
	}
	return c.Event.User
}

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// DiscordMeta lets middleware read Group/Category/Permissions through wrappers.
type DiscordMeta interface {
	Group() string
	Category() string
	UserPermissions() []int64
}

// DiscordCommand is what individual Discord commands implement.
type DiscordCommand interface {
	DiscordMeta
	Name() string
	Description() string
	Run(ctx context.Context, data any) error
}

// DiscordAdapter makes a DiscordCommand a cmd.Command.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string             { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string      { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string            { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string         { return a.Cmd.Category() }
func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	return a.Cmd.Run(ctx, inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// RegisterCommand adds a Discord command to reg with middlewares applied, outermost first.
func RegisterCommand(reg *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) {
	reg.Register(cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...))
}

// Options flattens the options of the first subcommand, keyed by name.
func Options(e *discordgo.InteractionCreate) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	data := e.ApplicationCommandData()
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	if len(data.Options) == 0 {
		return "", opts
	}
	sub := data.Options[0]
	if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
		for _, o := range data.Options {
			opts[o.Name] = o
		}
		return "", opts
	}
	for _, o := range sub.Options {
		opts[o.Name] = o
	}
	return sub.Name, opts
}
