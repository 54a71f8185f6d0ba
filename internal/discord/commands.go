package discord

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// commandAPI is the part of *discordgo.Session used to manage guild commands.
type commandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, c *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// commandSyncer keeps a guild's registered slash commands in line with the
// registry, skipping disabled groups. Hashes of what was last registered are
// kept in storage so unchanged commands are not re-created.
type commandSyncer struct {
	api      commandAPI
	appID    func() (string, error)
	registry *cmd.Registry
	storage  *storage.Storage
	limiter  *rate.Limiter
	log      zerolog.Logger
}

func newCommandSyncer(api commandAPI, appID func() (string, error), reg *cmd.Registry, store *storage.Storage, log zerolog.Logger) *commandSyncer {
	return &commandSyncer{
		api:      api,
		appID:    appID,
		registry: reg,
		storage:  store,
		// stay well under Discord's per-route limit
		limiter: rate.NewLimiter(rate.Limit(40), 1),
		log:     log,
	}
}

func (cs *commandSyncer) sync(ctx context.Context, guildID string) error {
	appID, err := cs.appID()
	if err != nil {
		return err
	}

	remote, err := cs.api.ApplicationCommands(appID, guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}

	wanted, err := cs.definitions(guildID)
	if err != nil {
		return err
	}
	hashes, err := cs.storage.CommandHashes(guildID)
	if err != nil {
		return err
	}

	remoteNames := make(map[string]bool, len(remote))
	for _, rc := range remote {
		remoteNames[rc.Name] = true
		if _, ok := wanted[rc.Name]; ok {
			continue
		}
		if err := cs.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := cs.api.ApplicationCommandDelete(appID, guildID, rc.ID, discordgo.WithContext(ctx)); err != nil {
			cs.log.Error().Err(err).Str("guild", guildID).Str("command", rc.Name).Msg("delete command failed")
			continue
		}
		cs.log.Info().Str("guild", guildID).Str("command", rc.Name).Msg("deleted obsolete command")
		delete(hashes, rc.Name)
	}
	// hashes of commands deleted by hand in Discord are stale
	for name := range hashes {
		if !remoteNames[name] {
			delete(hashes, name)
		}
	}

	names := make([]string, 0, len(wanted))
	for name := range wanted {
		names = append(names, name)
	}
	sort.Strings(names)

	var created int
	for _, name := range names {
		def := wanted[name]
		h := hashCommand(def)
		if hashes[name] == h {
			continue
		}
		if err := cs.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := cs.api.ApplicationCommandCreate(appID, guildID, def, discordgo.WithContext(ctx)); err != nil {
			cs.log.Error().Err(err).Str("guild", guildID).Str("command", name).Msg("register command failed")
			continue
		}
		hashes[name] = h
		created++
	}

	if created > 0 {
		cs.log.Info().Str("guild", guildID).Int("count", created).Msg("registered commands")
	}
	return cs.storage.SetCommandHashes(guildID, hashes)
}

// definitions returns the slash definitions for guildID keyed by name.
func (cs *commandSyncer) definitions(guildID string) (map[string]*discordgo.ApplicationCommand, error) {
	disabled, err := cs.storage.DisabledGroups(guildID)
	if err != nil {
		return nil, err
	}
	off := make(map[string]bool, len(disabled))
	for _, g := range disabled {
		off[g] = true
	}

	defs := make(map[string]*discordgo.ApplicationCommand)
	for _, c := range cs.registry.All() {
		if meta, ok := cmd.Root(c).(command.DiscordMeta); ok && off[meta.Group()] {
			continue
		}
		if def := commandDefinition(c); def != nil {
			defs[def.Name] = def
		}
	}
	return defs, nil
}

// commandDefinition extracts the slash definition of a registered command,
// walking through middleware wrappers.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def == nil {
		return nil
	}
	if def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// hashCommand returns a deterministic SHA-1 of a command's stable fields.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if o.MinValue != nil {
			entry["min"] = *o.MinValue
		}
		if o.MaxValue != 0 {
			entry["max"] = o.MaxValue
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
