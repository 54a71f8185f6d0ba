package main

import (
	"strings"
	"testing"

	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/discord"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderListsSubcommandsByCategory(t *testing.T) {
	reg := cmd.NewRegistry()
	discord.RegisterCommands(reg, &config.Config{}, discord.Services{})

	out, err := render("# {{.AppName}}\n\n{{.CommandSections}}", collect(reg))
	require.NoError(t, err)
	s := string(out)

	assert.True(t, strings.HasPrefix(s, "# Domme Music"))
	assert.Contains(t, s, "* **`/music play`**")
	assert.Contains(t, s, "* **`/maintenance status`**")
	assert.Contains(t, s, "* **`/help`**")
	assert.Less(t, strings.Index(s, "### 🕯️ Information"), strings.Index(s, "### 🎵 Music"))
}
