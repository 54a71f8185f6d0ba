package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]string{"DISCORD_TOKEN=abc"})
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.DiscordToken)
	assert.Equal(t, "datastore.json", cfg.StoragePath)
	assert.True(t, cfg.InitSlashCommands)
	assert.Equal(t, "ws://127.0.0.1:7070/ws", cfg.RendererURL)
	assert.Equal(t, 500*time.Millisecond, cfg.JoinSettleDelay)
	assert.Equal(t, 5*time.Second, cfg.StatusTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]string{
		"DISCORD_TOKEN=abc",
		"STORAGE_PATH=/tmp/store.json",
		"RENDERER_URL=ws://renderer:9000/ws",
		"JOIN_SETTLE_DELAY=1s",
		"STATUS_TIMEOUT=0s",
		"INIT_SLASH_COMMANDS=false",
		"LOG_LEVEL=debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/store.json", cfg.StoragePath)
	assert.Equal(t, "ws://renderer:9000/ws", cfg.RendererURL)
	assert.Equal(t, time.Second, cfg.JoinSettleDelay)
	assert.Zero(t, cfg.StatusTimeout)
	assert.False(t, cfg.InitSlashCommands)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_MissingToken(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestParse_NegativeDelay(t *testing.T) {
	_, err := Parse([]string{"DISCORD_TOKEN=abc", "JOIN_SETTLE_DELAY=-1s"})
	assert.Error(t, err)
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]string{"DISCORD_TOKEN=abc", "STATUS_TIMEOUT=soon"})
	assert.Error(t, err)
}

func TestParse_BlacklistAndDeveloper(t *testing.T) {
	cfg, err := Parse([]string{"DISCORD_TOKEN=abc", "DISCORD_GUILD_BLACKLIST=1,2", "DEVELOPER_ID=42"})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, cfg.GuildBlacklist)
	assert.True(t, cfg.IsDeveloper("42"))
	assert.False(t, cfg.IsDeveloper(""))
}
