package middleware

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCommand struct {
	perms []int64
	ran   int
	err   error
}

func (c *stubCommand) Name() string             { return "music" }
func (c *stubCommand) Description() string      { return "stub" }
func (c *stubCommand) Group() string            { return "music" }
func (c *stubCommand) Category() string         { return "🎵 Music" }
func (c *stubCommand) UserPermissions() []int64 { return c.perms }
func (c *stubCommand) Run(context.Context, any) error {
	c.ran++
	return c.err
}

func captureResponses(t *testing.T) *[]string {
	t.Helper()
	var got []string
	prev := respond
	respond = func(_ *discordgo.Session, _ *discordgo.InteractionCreate, msg string) error {
		got = append(got, msg)
		return nil
	}
	t.Cleanup(func() { respond = prev })
	return &got
}

func slashEvent(guildID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: "chan",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "music",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name: "play",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{{
					Name:  "input",
					Type:  discordgo.ApplicationCommandOptionString,
					Value: "never gonna",
				}},
			}},
		},
	}}
}

func newStore(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "db.json"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func invoke(t *testing.T, c cmd.Command, guildID string, store *storage.Storage) error {
	t.Helper()
	return c.Run(context.Background(), &cmd.Invocation{Data: &command.SlashInteractionContext{
		Event:   slashEvent(guildID),
		Storage: store,
		Log:     zerolog.Nop(),
	}})
}

func TestWithGuildOnly(t *testing.T) {
	got := captureResponses(t)
	inner := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithGuildOnly())

	require.NoError(t, invoke(t, c, "", nil))
	assert.Zero(t, inner.ran)
	assert.Len(t, *got, 1)

	require.NoError(t, invoke(t, c, "g1", nil))
	assert.Equal(t, 1, inner.ran)
}

func TestWithGroupAccessCheck(t *testing.T) {
	got := captureResponses(t)
	store := newStore(t)
	inner := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithGroupAccessCheck())

	require.NoError(t, invoke(t, c, "g1", store))
	assert.Equal(t, 1, inner.ran)

	require.NoError(t, store.DisableGroup("g1", "music"))
	require.NoError(t, invoke(t, c, "g1", store))
	assert.Equal(t, 1, inner.ran)
	require.Len(t, *got, 1)
	assert.Contains(t, (*got)[0], "disabled")

	// other guilds are unaffected
	require.NoError(t, invoke(t, c, "g2", store))
	assert.Equal(t, 2, inner.ran)
}

func TestWithCommandLogger_StoresHistory(t *testing.T) {
	store := newStore(t)
	boom := errors.New("boom")
	inner := &stubCommand{err: boom}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithCommandLogger())

	assert.ErrorIs(t, invoke(t, c, "g1", store), boom)

	history, err := store.CommandsHistory("g1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "music play", history[0].Command)
	assert.Equal(t, "input=never gonna", history[0].Param)
	assert.Equal(t, "alice", history[0].Username)
	assert.Equal(t, "chan", history[0].ChannelID)
}

func TestWithUserPermissionCheck(t *testing.T) {
	got := captureResponses(t)
	var perms int64
	prev := channelPermissions
	channelPermissions = func(*discordgo.Session, string, string) (int64, error) { return perms, nil }
	t.Cleanup(func() { channelPermissions = prev })

	inner := &stubCommand{perms: []int64{discordgo.PermissionManageGuild}}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithUserPermissionCheck(&config.Config{}))

	require.NoError(t, invoke(t, c, "g1", nil))
	assert.Zero(t, inner.ran)
	require.Len(t, *got, 1)
	assert.Contains(t, (*got)[0], "Manage Server")

	perms = discordgo.PermissionManageGuild
	require.NoError(t, invoke(t, c, "g1", nil))
	assert.Equal(t, 1, inner.ran)

	perms = 0
	dev := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithUserPermissionCheck(&config.Config{DeveloperID: "u1"}))
	require.NoError(t, invoke(t, dev, "g1", nil))
	assert.Equal(t, 2, inner.ran)
}

func TestWithUserPermissionCheck_NoRequirements(t *testing.T) {
	inner := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithUserPermissionCheck(nil))
	require.NoError(t, invoke(t, c, "g1", nil))
	assert.Equal(t, 1, inner.ran)
}
