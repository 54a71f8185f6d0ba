package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/keshon/domme-music/internal/bot"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/pkg/cmd"
)

// Status is what /maintenance status reports about the running process.
type Status interface {
	RendererConnected() bool
	ActiveQueues(ctx context.Context) int
	Jobs() string
}

// CommandSyncer re-registers a guild's slash commands after a toggle.
type CommandSyncer interface {
	SyncCommands(guildID string) error
}

type MaintenanceCommand struct {
	Registry *cmd.Registry
	Status   Status
	Syncer   CommandSyncer
}

func (c *MaintenanceCommand) Name() string        { return "maintenance" }
func (c *MaintenanceCommand) Description() string { return "Bot maintenance commands" }
func (c *MaintenanceCommand) Group() string       { return "core" }
func (c *MaintenanceCommand) Category() string    { return "🛠️ Maintenance" }
func (c *MaintenanceCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionAdministrator}
}

func (c *MaintenanceCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "ping",
				Description: "Check bot latency",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show renderer, queue and storage status",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "commands",
				Description: "Enable or disable a command group on this server",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "group",
						Description: "Command group",
						Required:    true,
						Choices:     c.groupChoices(),
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "enabled",
						Description: "Whether the group is enabled",
						Required:    true,
					},
				},
			},
		},
	}
}

func (c *MaintenanceCommand) Run(ctx context.Context, data any) error {
	slash, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := slash.Session, slash.Event

	sub, opts := command.Options(e)
	switch sub {
	case "ping":
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "Pong! 🏓",
			Description: fmt.Sprintf("Latency: %dms", s.HeartbeatLatency().Milliseconds()),
		})
	case "status":
		// counting active queues asks the renderer about every guild
		if err := bot.RespondDeferred(s, e, true); err != nil {
			return fmt.Errorf("defer status response: %w", err)
		}
		return bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "📊 Status",
			Description: c.statusText(ctx, slash),
		})
	case "commands":
		group := opts["group"].StringValue()
		enabled := opts["enabled"].BoolValue()
		return c.toggle(slash, group, enabled)
	default:
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Unknown subcommand: %s", sub),
		})
	}
}

func (c *MaintenanceCommand) statusText(ctx context.Context, slash *command.SlashInteractionContext) string {
	var sb strings.Builder
	if c.Status != nil {
		renderer := "🔴 disconnected"
		if c.Status.RendererConnected() {
			renderer = "🟢 connected"
		}
		fmt.Fprintf(&sb, "**Renderer:** %s\n", renderer)
		fmt.Fprintf(&sb, "**Active queues:** %d\n", c.Status.ActiveQueues(ctx))
		fmt.Fprintf(&sb, "**Jobs:** %s\n", c.Status.Jobs())
	}
	if slash.Storage != nil {
		st := slash.Storage.Stats()
		fmt.Fprintf(&sb, "**Storage:** %d guilds, %s\n", st.Keys, humanize.Bytes(uint64(st.Size)))
		if groups, err := slash.Storage.DisabledGroups(slash.Event.GuildID); err == nil && len(groups) > 0 {
			fmt.Fprintf(&sb, "**Disabled here:** %s\n", strings.Join(groups, ", "))
		}
	}
	return strings.TrimSpace(sb.String())
}

func (c *MaintenanceCommand) toggle(slash *command.SlashInteractionContext, group string, enabled bool) error {
	s, e := slash.Session, slash.Event
	if group == c.Group() {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "The core group can't be disabled."})
	}
	if slash.Storage == nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Storage is not available."})
	}

	var err error
	if enabled {
		err = slash.Storage.EnableGroup(e.GuildID, group)
	} else {
		err = slash.Storage.DisableGroup(e.GuildID, group)
	}
	if err != nil {
		return fmt.Errorf("toggle group %s: %w", group, err)
	}

	if c.Syncer != nil {
		if err := c.Syncer.SyncCommands(e.GuildID); err != nil {
			slash.Log.Warn().Err(err).Str("guild", e.GuildID).Msg("command sync after toggle failed")
		}
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("Group `%s` is now %s.", group, state),
	})
}

// groupChoices lists the groups of registered commands, core excluded.
func (c *MaintenanceCommand) groupChoices() []*discordgo.ApplicationCommandOptionChoice {
	var groups []string
	if c.Registry != nil {
		for _, rc := range c.Registry.All() {
			m, ok := cmd.Root(rc).(command.DiscordMeta)
			if !ok || m.Group() == "" || m.Group() == c.Group() || slices.Contains(groups, m.Group()) {
				continue
			}
			groups = append(groups, m.Group())
		}
	}
	slices.Sort(groups)

	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(groups))
	for i, g := range groups {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{Name: g, Value: g}
	}
	return choices
}
