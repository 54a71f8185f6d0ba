package queue

import (
	"context"
	"time"

	"github.com/keshon/domme-music/internal/music/track"
)

// MessageRef points at a status message previously posted by a Notifier.
type MessageRef struct {
	ChannelID string
	MessageID string
}

func (r MessageRef) IsZero() bool { return r.MessageID == "" }

// NowPlaying is the status view of the current track.
type NowPlaying struct {
	Title       string
	Kind        track.Kind
	Duration    string
	Author      string
	RequesterID string
	Loop        LoopMode
	Paused      bool
	URL         string
	CoverArt    string
	Position    time.Duration
	QueueLength int
	Index       int
}

// Notifier renders queue status to users.
type Notifier interface {
	// UpdateNowPlaying edits prev in place when it still exists, otherwise posts a new
	// message in channelID. It returns the message now showing the view.
	UpdateNowPlaying(ctx context.Context, channelID string, prev MessageRef, view NowPlaying) (MessageRef, error)
	// Clear removes a status message.
	Clear(ctx context.Context, ref MessageRef) error
	// Error posts a one-line error.
	Error(ctx context.Context, channelID, message string) error
}

type nopNotifier struct{}

func (nopNotifier) UpdateNowPlaying(context.Context, string, MessageRef, NowPlaying) (MessageRef, error) {
	return MessageRef{}, nil
}
func (nopNotifier) Clear(context.Context, MessageRef) error { return nil }
func (nopNotifier) Error(context.Context, string, string) error { return nil }
