package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/pkg/cmd"
)

var permissionNames = map[int64]string{
	discordgo.PermissionAdministrator:    "Administrator",
	discordgo.PermissionManageGuild:      "Manage Server",
	discordgo.PermissionManageChannels:   "Manage Channels",
	discordgo.PermissionManageMessages:   "Manage Messages",
	discordgo.PermissionVoiceConnect:     "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:       "Speak",
	discordgo.PermissionVoiceMoveMembers: "Move Members",
}

// channelPermissions is replaced in tests.
var channelPermissions = func(s *discordgo.Session, userID, channelID string) (int64, error) {
	return s.UserChannelPermissions(userID, channelID)
}

// WithUserPermissionCheck requires the invoking member to hold at least one of the
// command's UserPermissions. Administrators and the configured developer always pass.
func WithUserPermissionCheck(cfg *config.Config) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := slashContext(inv)
			if !ok || v.Event.GuildID == "" || v.Event.Member == nil || v.Event.Member.User == nil {
				return c.Run(ctx, inv)
			}
			m, ok := meta(c)
			if !ok || len(m.UserPermissions()) == 0 {
				return c.Run(ctx, inv)
			}
			user := v.Event.Member.User
			if cfg != nil && cfg.IsDeveloper(user.ID) {
				return c.Run(ctx, inv)
			}

			perms, err := channelPermissions(v.Session, user.ID, v.Event.ChannelID)
			if err != nil {
				return fmt.Errorf("get permissions of %s: %w", user.ID, err)
			}
			if perms&discordgo.PermissionAdministrator != 0 {
				return c.Run(ctx, inv)
			}
			for _, p := range m.UserPermissions() {
				if perms&p != 0 {
					return c.Run(ctx, inv)
				}
			}

			return respond(v.Session, v.Event, fmt.Sprintf(
				"You need at least one of these permissions to run this command:\n`%s`",
				strings.Join(describePermissions(m.UserPermissions()), "`, `"),
			))
		})
	}
}

func describePermissions(perms []int64) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		if name, ok := permissionNames[p]; ok {
			out[i] = name
		} else {
			out[i] = fmt.Sprintf("0x%x", p)
		}
	}
	return out
}
