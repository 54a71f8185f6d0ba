package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/bot"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/rs/zerolog"
)

var ErrNotInVoice = errors.New("user not in any voice channel")

// syncTimeout bounds one guild's command sync.
const syncTimeout = 2 * time.Minute

// Bot is the Discord gateway side: it dispatches slash commands from the
// registry and keeps guild commands registered.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	registry *cmd.Registry
	commands *commandSyncer
	log      zerolog.Logger

	// ctx is the Run context, handed to command invocations.
	ctx context.Context
}

// New creates the session without opening it, so callers can build things on
// top of Session() before Run.
func New(cfg *config.Config, store *storage.Storage, reg *cmd.Registry, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMessages

	b := &Bot{
		dg:       dg,
		cfg:      cfg,
		storage:  store,
		registry: reg,
		log:      log,
		ctx:      context.Background(),
	}
	b.commands = newCommandSyncer(dg, b.appID, reg, store, log.With().Str("component", "commands").Logger())
	return b, nil
}

func (b *Bot) Session() *discordgo.Session {
	return b.dg
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("❎ shutdown signal received, closing gateway")
	return nil
}

// SyncCommands re-registers guildID's commands, honoring disabled groups.
func (b *Bot) SyncCommands(guildID string) error {
	ctx, cancel := context.WithTimeout(b.ctx, syncTimeout)
	defer cancel()
	return b.commands.sync(ctx, guildID)
}

// UserVoiceChannel returns the voice channel userID is connected to in guildID.
func (b *Bot) UserVoiceChannel(guildID, userID string) (string, error) {
	return userVoiceChannel(b.dg.State, guildID, userID)
}

func userVoiceChannel(state *discordgo.State, guildID, userID string) (string, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", ErrNotInVoice
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("✅ Discord bot is running")
}

// onGuildCreate fires for every guild after connect and when the bot is added.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log := b.log.With().Str("guild", g.ID).Str("name", g.Name).Logger()

	if b.isGuildBlacklisted(g.ID) {
		log.Info().Msg("leaving blacklisted guild")
		if err := s.GuildLeave(g.ID); err != nil {
			log.Error().Err(err).Msg("failed to leave guild")
		}
		return
	}

	if !b.cfg.InitSlashCommands {
		log.Debug().Msg("registering slash commands skipped")
		return
	}
	if err := b.SyncCommands(g.ID); err != nil {
		log.Error().Err(err).Msg("failed to register commands")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.CommandType != discordgo.ChatApplicationCommand && data.CommandType != 0 {
		return
	}

	c := b.registry.Get(data.Name)
	if c == nil {
		b.log.Warn().Str("command", data.Name).Msg("unknown command")
		return
	}

	inv := &cmd.Invocation{Data: &command.SlashInteractionContext{
		Session: s,
		Event:   i,
		Storage: b.storage,
		Log:     b.log,
	}}
	if err := c.Run(b.ctx, inv); err != nil {
		b.log.Error().Err(err).Str("command", data.Name).Str("guild", i.GuildID).Msg("command failed")
		embed := &discordgo.MessageEmbed{Description: fmt.Sprintf("Error running command: %v", err)}
		// the command may have already responded or deferred
		if rerr := bot.RespondEmbedEphemeral(s, i, embed); rerr != nil {
			_ = bot.FollowupEmbedEphemeral(s, i, embed)
		}
	}
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.GuildBlacklist, guildID)
}

// appID returns the bot's application ID, fetching it if State has none yet.
func (b *Bot) appID() (string, error) {
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}
