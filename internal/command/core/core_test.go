package core

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommand struct {
	name, group, category string
	subs                  []string
}

func (f *fakeCommand) Name() string             { return f.name }
func (f *fakeCommand) Description() string      { return f.name + " things" }
func (f *fakeCommand) Group() string            { return f.group }
func (f *fakeCommand) Category() string         { return f.category }
func (f *fakeCommand) UserPermissions() []int64 { return nil }
func (f *fakeCommand) Run(context.Context, any) error {
	return nil
}

func (f *fakeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	def := &discordgo.ApplicationCommand{Name: f.name, Description: f.Description()}
	for _, s := range f.subs {
		def.Options = append(def.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        s,
			Description: s + " it",
		})
	}
	return def
}

func registry(cmds ...command.DiscordCommand) *cmd.Registry {
	reg := cmd.NewRegistry()
	for _, c := range cmds {
		command.RegisterCommand(reg, c, func(next cmd.Command) cmd.Command {
			return cmd.Wrap(next, nil)
		})
	}
	return reg
}

func TestBuildHelp_OrdersCategoriesByWeight(t *testing.T) {
	reg := registry(
		&fakeCommand{name: "maintenance", group: "core", category: "🛠️ Maintenance", subs: []string{"ping"}},
		&fakeCommand{name: "music", group: "music", category: "🎵 Music", subs: []string{"play", "stop"}},
		&fakeCommand{name: "help", group: "core", category: "🕯️ Information"},
	)

	out := buildHelp(reg.All())

	info := strings.Index(out, "**🕯️ Information**")
	music := strings.Index(out, "**🎵 Music**")
	maint := strings.Index(out, "**🛠️ Maintenance**")
	require.True(t, info >= 0 && music >= 0 && maint >= 0, out)
	assert.Less(t, info, music)
	assert.Less(t, music, maint)

	assert.Contains(t, out, "`/help` - help things")
	assert.Contains(t, out, "`/music play` - play it")
	assert.Contains(t, out, "`/music stop` - stop it")
	assert.NotContains(t, out, "`/music` -")
}

func TestGroupChoices_ExcludesCore(t *testing.T) {
	reg := registry(
		&fakeCommand{name: "help", group: "core"},
		&fakeCommand{name: "music", group: "music"},
		&fakeCommand{name: "radio", group: "music"},
	)
	m := &MaintenanceCommand{Registry: reg}

	choices := m.groupChoices()
	require.Len(t, choices, 1)
	assert.Equal(t, "music", choices[0].Value)
}

type fakeStatus struct{ connected bool }

func (f fakeStatus) RendererConnected() bool          { return f.connected }
func (f fakeStatus) ActiveQueues(context.Context) int { return 3 }
func (f fakeStatus) Jobs() string                     { return "renderer: running" }

func TestStatusText(t *testing.T) {
	m := &MaintenanceCommand{Status: fakeStatus{connected: true}}
	out := m.statusText(context.Background(), &command.SlashInteractionContext{Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{GuildID: "g"}}})

	assert.Contains(t, out, "🟢 connected")
	assert.Contains(t, out, "**Active queues:** 3")
	assert.Contains(t, out, "renderer: running")
}

func TestAboutEmbed(t *testing.T) {
	e := aboutEmbed()
	assert.Contains(t, e.Description, "About")
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "Release", e.Fields[1].Name)
}
