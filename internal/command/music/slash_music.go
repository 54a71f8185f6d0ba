package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/bot"
	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/internal/music/track"
)

// opTimeout bounds one queue operation; play may resolve a catalog track and join voice.
const opTimeout = 30 * time.Second

// Queues hands out the queue that belongs to a guild. *queue.Registry implements it.
type Queues interface {
	Get(guildID string) *queue.Queue
}

// Resolver turns user input into tracks. *sources.Resolver implements it.
type Resolver interface {
	ResolveFrom(ctx context.Context, selected, input string) ([]track.Track, error)
	FromAttachments(ctx context.Context, atts []sources.Attachment) ([]track.Track, error)
}

// VoiceLocator finds the voice channel a member is in.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, error)
}

type MusicCommand struct {
	Queues   Queues
	Resolver Resolver
	Voice    VoiceLocator
}

func (c *MusicCommand) Name() string             { return "music" }
func (c *MusicCommand) Description() string      { return "Control music playback" }
func (c *MusicCommand) Group() string            { return "music" }
func (c *MusicCommand) Category() string         { return "🎵 Music" }
func (c *MusicCommand) UserPermissions() []int64 { return []int64{} }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options:     opts,
		}
	}

	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("play", "Play a link, a search query or an uploaded file",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "input",
					Description: "Link or search query",
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "file",
					Description: "Audio or video file to play",
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "source",
					Description: "Force a source instead of autodetecting it",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "YouTube", Value: sources.SourceYouTube},
						{Name: "Spotify", Value: sources.SourceSpotify},
						{Name: "Direct link", Value: sources.SourceUpload},
					},
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "next",
					Description: "Play right after the current track",
				},
			),
			sub("next", "Skip to the next track"),
			sub("stop", "Stop playback and clear the queue"),
			sub("pause", "Pause playback"),
			sub("resume", "Resume playback"),
			sub("loop", "Set the loop mode",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "Loop mode",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Off", Value: queue.LoopNone.String()},
						{Name: "Current track", Value: queue.LoopOne.String()},
						{Name: "Whole queue", Value: queue.LoopAll.String()},
					},
				},
			),
			sub("queue", "Show the queue"),
			sub("nowplaying", "Show the current track"),
			sub("shuffle", "Shuffle the upcoming tracks"),
			sub("remove", "Remove a track from the queue",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "position",
					Description: "Position as shown by /music queue",
					Required:    true,
					MinValue:    ptr(1.0),
				},
			),
			sub("history", "Show recently played tracks"),
			sub("channel", "Post now-playing messages in this channel"),
		},
	}
}

func (c *MusicCommand) Run(ctx context.Context, data any) error {
	slash, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := slash.Session, slash.Event

	name, opts := command.Options(e)
	if name == "" {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Missing subcommand."})
	}

	switch name {
	case "history":
		return c.runHistory(slash)
	case "play":
		if stringOpt(opts, "input") == "" && len(attachments(e, opts)) == 0 {
			return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
				Title:       "🎵 Error",
				Description: "Give me a link, a search query or a file.",
			})
		}
	case "loop":
		if _, err := queue.ParseLoopMode(stringOpt(opts, "mode")); err != nil {
			return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: err.Error()})
		}
	case "next", "stop", "pause", "resume", "queue", "nowplaying", "shuffle", "remove", "channel":
	default:
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Unknown subcommand: %s", name),
		})
	}

	// queue operations can wait on the renderer and on Discord, so acknowledge first
	if err := bot.RespondDeferred(s, e, name == "nowplaying" || name == "channel"); err != nil {
		return fmt.Errorf("defer %s response: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	q := c.Queues.Get(e.GuildID)

	switch name {
	case "play":
		return c.runPlay(ctx, slash, q, opts)
	case "next":
		return c.simple(ctx, slash, "⏭️ Skipped.", q.Skip)
	case "stop":
		return c.simple(ctx, slash, "⏹️ Playback stopped. Queue cleared.", q.Reset)
	case "pause":
		return c.simple(ctx, slash, "⏸️ Paused.", q.Pause)
	case "resume":
		return c.simple(ctx, slash, "▶️ Resumed.", q.Resume)
	case "loop":
		mode, _ := queue.ParseLoopMode(stringOpt(opts, "mode"))
		return c.simple(ctx, slash, loopMessage(mode), func(ctx context.Context) error {
			return q.SetLoopMode(ctx, mode)
		})
	case "queue":
		return c.runQueue(ctx, slash, q)
	case "nowplaying":
		return c.runNowPlaying(ctx, slash, q)
	case "shuffle":
		n, err := q.Shuffle(ctx)
		if err != nil {
			return c.followupFail(slash, err)
		}
		if n < 2 {
			return bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing to shuffle."})
		}
		return bot.FollowupEmbed(s, e, &discordgo.MessageEmbed{Description: fmt.Sprintf("🔀 Shuffled %d upcoming tracks.", n)})
	case "remove":
		return c.runRemove(ctx, slash, q, int(intOpt(opts, "position")))
	default:
		return c.runChannel(ctx, slash, q)
	}
}

func (c *MusicCommand) runPlay(ctx context.Context, slash *command.SlashInteractionContext, q *queue.Queue, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) error {
	s, e := slash.Session, slash.Event
	input := stringOpt(opts, "input")
	atts := attachments(e, opts)

	user := slash.User()
	voiceID, err := c.Voice.UserVoiceChannel(e.GuildID, user.ID)
	if err != nil {
		return bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Voice Error",
			Description: "Join a voice channel first.",
		})
	}

	var tracks []track.Track
	if len(atts) > 0 {
		tracks, err = c.Resolver.FromAttachments(ctx, atts)
	} else {
		tracks, err = c.Resolver.ResolveFrom(ctx, stringOpt(opts, "source"), input)
	}
	if err != nil {
		slash.Log.Info().Err(err).Str("input", input).Msg("resolve failed")
		return bot.FollowupEmbed(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Error",
			Description: fmt.Sprintf("Failed to resolve track: %v", err),
		})
	}

	notify := e.ChannelID
	if slash.Storage != nil {
		if ch, err := slash.Storage.MusicChannel(e.GuildID); err == nil && ch != "" {
			notify = ch
		}
	}
	if err := q.SetVoiceChannel(ctx, voiceID); err != nil {
		return c.followupFail(slash, err)
	}
	if err := q.SetNotificationChannel(ctx, notify); err != nil {
		return c.followupFail(slash, err)
	}

	first, err := q.QueueTracks(ctx, tracks, user.ID, boolOpt(opts, "next"))
	if err != nil {
		return c.followupFail(slash, err)
	}
	return bot.FollowupEmbed(s, e, &discordgo.MessageEmbed{
		Title:       "🎶 Added to queue",
		Description: addedMessage(tracks, first),
	})
}

func (c *MusicCommand) runQueue(ctx context.Context, slash *command.SlashInteractionContext, q *queue.Queue) error {
	snap := q.Snapshot()
	if len(snap.Entries) == 0 {
		return bot.FollowupEmbedEphemeral(slash.Session, slash.Event, &discordgo.MessageEmbed{Description: "The queue is empty."})
	}

	remaining, err := q.RemainingTime(ctx)
	if err != nil {
		slash.Log.Debug().Err(err).Msg("remaining time")
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Queue",
		Description: formatQueue(snap.Entries, snap.Cursor, time.Now()),
		Footer: &discordgo.MessageEmbedFooter{
			Text: queueFooter(len(snap.Entries), snap.Length, snap.Loop, remaining),
		},
	}
	return bot.FollowupEmbed(slash.Session, slash.Event, embed)
}

func (c *MusicCommand) runNowPlaying(ctx context.Context, slash *command.SlashInteractionContext, q *queue.Queue) error {
	s, e := slash.Session, slash.Event
	if err := q.SetNotificationChannel(ctx, e.ChannelID); err != nil {
		return c.followupFail(slash, err)
	}
	if err := q.UpdateNowPlaying(ctx); err != nil {
		return c.followupFail(slash, err)
	}
	return bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Now-playing message updated."})
}

func (c *MusicCommand) runRemove(ctx context.Context, slash *command.SlashInteractionContext, q *queue.Queue, position int) error {
	removed, err := q.Remove(ctx, position-1)
	if err != nil {
		return c.followupFail(slash, err)
	}
	return bot.FollowupEmbed(slash.Session, slash.Event, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🗑️ Removed **%s**.", removed.Title()),
	})
}

func (c *MusicCommand) runHistory(slash *command.SlashInteractionContext) error {
	s, e := slash.Session, slash.Event
	if slash.Storage == nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "History is not available."})
	}
	history, err := slash.Storage.TrackHistory(e.GuildID)
	if err != nil {
		return c.fail(slash, err)
	}
	if len(history) == 0 {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Nothing played yet."})
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Title:       "🕘 Recently played",
		Description: formatHistory(history, time.Now()),
	})
}

func (c *MusicCommand) runChannel(ctx context.Context, slash *command.SlashInteractionContext, q *queue.Queue) error {
	s, e := slash.Session, slash.Event
	if slash.Storage != nil {
		if err := slash.Storage.SetMusicChannel(e.GuildID, e.ChannelID); err != nil {
			return c.followupFail(slash, err)
		}
	}
	if err := q.SetNotificationChannel(ctx, e.ChannelID); err != nil {
		return c.followupFail(slash, err)
	}
	return bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("Now-playing messages will be posted in <#%s>.", e.ChannelID),
	})
}

func (c *MusicCommand) simple(ctx context.Context, slash *command.SlashInteractionContext, ok string, op func(context.Context) error) error {
	if err := op(ctx); err != nil {
		return c.followupFail(slash, err)
	}
	return bot.FollowupEmbed(slash.Session, slash.Event, &discordgo.MessageEmbed{Description: ok})
}

func (c *MusicCommand) fail(slash *command.SlashInteractionContext, err error) error {
	msg, known := userMessage(err)
	if !known {
		slash.Log.Warn().Err(err).Str("guild", slash.Event.GuildID).Msg("music command failed")
	}
	return bot.RespondEmbedEphemeral(slash.Session, slash.Event, &discordgo.MessageEmbed{Description: msg})
}

func (c *MusicCommand) followupFail(slash *command.SlashInteractionContext, err error) error {
	msg, known := userMessage(err)
	if !known {
		slash.Log.Warn().Err(err).Str("guild", slash.Event.GuildID).Msg("music command failed")
	}
	return bot.FollowupEmbedEphemeral(slash.Session, slash.Event, &discordgo.MessageEmbed{Description: msg})
}

// userMessage maps queue errors to text. known is false for unexpected errors.
func userMessage(err error) (msg string, known bool) {
	switch {
	case errors.Is(err, queue.ErrNothingPlaying):
		return "Nothing is playing.", true
	case errors.Is(err, queue.ErrNoVoiceDestination):
		return "Join a voice channel first.", true
	case errors.Is(err, queue.ErrNoNotificationTarget):
		return "No channel is set for now-playing messages.", true
	case errors.Is(err, queue.ErrIndexOutOfRange):
		return "There is no track at that position.", true
	case errors.Is(err, queue.ErrNoTracks):
		return "Nothing to add.", true
	case errors.Is(err, context.DeadlineExceeded):
		return "The player took too long to answer, try again.", false
	default:
		return fmt.Sprintf("Something went wrong: %v", err), false
	}
}

func loopMessage(mode queue.LoopMode) string {
	switch mode {
	case queue.LoopOne:
		return "🔂 Looping the current track."
	case queue.LoopAll:
		return "🔁 Looping the whole queue."
	default:
		return "Loop is off."
	}
}

func addedMessage(tracks []track.Track, first int) string {
	if len(tracks) == 1 {
		t := tracks[0]
		return fmt.Sprintf("%s %s `%s` at position %d", t.Kind().Emoji(), linkTitle(t), track.DisplayDuration(t), first+1)
	}
	return fmt.Sprintf("%d tracks, starting at position %d", len(tracks), first+1)
}

func linkTitle(t track.Track) string {
	title := strings.ReplaceAll(t.Title(), "]", "\\]")
	if t.URL() == "" {
		return "**" + title + "**"
	}
	return fmt.Sprintf("[%s](%s)", title, t.URL())
}

func attachments(e *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) []sources.Attachment {
	o, ok := opts["file"]
	if !ok {
		return nil
	}
	resolved := e.ApplicationCommandData().Resolved
	if resolved == nil {
		return nil
	}
	id, _ := o.Value.(string)
	a, ok := resolved.Attachments[id]
	if !ok {
		return nil
	}
	return []sources.Attachment{{FileName: a.Filename, URL: a.URL, ContentType: a.ContentType, Size: a.Size}}
}

func stringOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionString {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

func boolOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionBoolean {
		return o.BoolValue()
	}
	return false
}

func intOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionInteger {
		return o.IntValue()
	}
	return 0
}

func ptr[T any](v T) *T { return &v }
