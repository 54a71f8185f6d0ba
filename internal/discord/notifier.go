package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
	"github.com/keshon/domme-music/internal/bot"
	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/internal/music/track"
	"github.com/rs/zerolog"
)

// messenger is the subset of *discordgo.Session the notifier uses.
type messenger interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Notifier posts queue status to text channels as embeds.
type Notifier struct {
	s   messenger
	log zerolog.Logger
}

var _ queue.Notifier = (*Notifier)(nil)

func NewNotifier(s messenger, log zerolog.Logger) *Notifier {
	return &Notifier{s: s, log: log}
}

func (n *Notifier) UpdateNowPlaying(ctx context.Context, channelID string, prev queue.MessageRef, view queue.NowPlaying) (queue.MessageRef, error) {
	e := nowPlayingEmbed(view)
	opt := discordgo.WithContext(ctx)

	if !prev.IsZero() {
		if prev.ChannelID == channelID {
			msg, err := n.s.ChannelMessageEditEmbed(prev.ChannelID, prev.MessageID, e, opt)
			if err == nil {
				return queue.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
			}
			if !isUnknownMessage(err) {
				n.log.Warn().Err(err).Str("message", prev.MessageID).Msg("edit now playing failed, posting new one")
			}
		} else if err := n.s.ChannelMessageDelete(prev.ChannelID, prev.MessageID, opt); err != nil && !isUnknownMessage(err) {
			n.log.Debug().Err(err).Msg("remove old now playing")
		}
	}

	msg, err := n.s.ChannelMessageSendEmbed(channelID, e, opt)
	if err != nil {
		return queue.MessageRef{}, fmt.Errorf("send now playing to %s: %w", channelID, err)
	}
	return queue.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (n *Notifier) Clear(ctx context.Context, ref queue.MessageRef) error {
	if ref.IsZero() {
		return nil
	}
	err := n.s.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil && !isUnknownMessage(err) {
		return fmt.Errorf("delete now playing: %w", err)
	}
	return nil
}

func (n *Notifier) Error(ctx context.Context, channelID, message string) error {
	e := embed.NewEmbed().
		SetDescription("⚠️ " + message).
		SetColor(bot.EmbedColor).
		MessageEmbed
	if _, err := n.s.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send error to %s: %w", channelID, err)
	}
	return nil
}

func nowPlayingEmbed(v queue.NowPlaying) *discordgo.MessageEmbed {
	title := "▶️ Now playing"
	if v.Paused {
		title = "⏸️ Paused"
	}
	if emoji := v.Loop.Emoji(); emoji != "" {
		title += " " + emoji
	}

	var desc strings.Builder
	desc.WriteString(v.Kind.Emoji() + " ")
	if v.URL != "" {
		fmt.Fprintf(&desc, "[%s](%s)", v.Title, v.URL)
	} else {
		desc.WriteString("**" + v.Title + "**")
	}
	if v.Author != "" {
		desc.WriteString("\n" + v.Author)
	}

	duration := v.Duration
	if v.Position > 0 && v.Duration != track.LiveLabel {
		duration = track.FormatClock(v.Position) + " / " + v.Duration
	}

	e := embed.NewEmbed().
		SetTitle(title).
		SetDescription(desc.String()).
		AddField("Duration", duration).
		SetColor(bot.EmbedColor)
	if v.RequesterID != "" {
		e.AddField("Requested by", "<@"+v.RequesterID+">")
	}
	if v.Loop != queue.LoopNone {
		e.AddField("Loop", v.Loop.String())
	}
	if v.CoverArt != "" {
		e.SetThumbnail(v.CoverArt)
	}
	if v.QueueLength > 1 {
		e.SetFooter(fmt.Sprintf("Track %d of %d", v.Index+1, v.QueueLength))
	}
	return e.InlineAllFields().MessageEmbed
}

func isUnknownMessage(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeUnknownMessage {
		return true
	}
	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}
