package discord

import (
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/command/core"
	"github.com/keshon/domme-music/internal/command/music"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/middleware"
	"github.com/keshon/domme-music/internal/version"
	"github.com/keshon/domme-music/pkg/cmd"
)

// Services are what the slash commands call into. Any of them may be nil
// when only the definitions are needed.
type Services struct {
	Queues   music.Queues
	Resolver music.Resolver
	Voice    music.VoiceLocator
	Status   core.Status
	Syncer   core.CommandSyncer
}

// RegisterCommands adds every slash command to reg with the standard middleware chain.
func RegisterCommands(reg *cmd.Registry, cfg *config.Config, svc Services) {
	chain := func(guildOnly bool) []cmd.Middleware {
		mws := []cmd.Middleware{middleware.WithGroupAccessCheck()}
		if guildOnly {
			mws = append(mws, middleware.WithGuildOnly())
		}
		return append(mws,
			middleware.WithUserPermissionCheck(cfg),
			middleware.WithCommandLogger(),
		)
	}

	command.RegisterCommand(reg, &music.MusicCommand{
		Queues:   svc.Queues,
		Resolver: svc.Resolver,
		Voice:    svc.Voice,
	}, chain(true)...)

	command.RegisterCommand(reg, &core.HelpCommand{Registry: reg, AppName: version.AppName}, chain(false)...)
	command.RegisterCommand(reg, &core.AboutCommand{}, chain(false)...)
	command.RegisterCommand(reg, &core.MaintenanceCommand{
		Registry: reg,
		Status:   svc.Status,
		Syncer:   svc.Syncer,
	}, chain(true)...)
}
