package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/internal/music/track"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	sent    []string
	edited  []string
	deleted []string
	editErr error
	seq     int
	last    *discordgo.MessageEmbed
}

func (f *fakeMessenger) ChannelMessageSendEmbed(channelID string, e *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.seq++
	f.sent = append(f.sent, channelID)
	f.last = e
	return &discordgo.Message{ID: fmt.Sprintf("m%d", f.seq), ChannelID: channelID}, nil
}

func (f *fakeMessenger) ChannelMessageEditEmbed(channelID, messageID string, e *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited = append(f.edited, messageID)
	f.last = e
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeMessenger) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func view() queue.NowPlaying {
	return queue.NowPlaying{
		Title:       "Song",
		Kind:        track.KindRemoteVideo,
		Duration:    "3:00",
		RequesterID: "u1",
		URL:         "https://example.com/watch",
		QueueLength: 3,
		Index:       1,
	}
}

func TestNotifier_PostsThenEdits(t *testing.T) {
	m := &fakeMessenger{}
	n := NewNotifier(m, zerolog.Nop())
	ctx := context.Background()

	ref, err := n.UpdateNowPlaying(ctx, "c1", queue.MessageRef{}, view())
	require.NoError(t, err)
	assert.Equal(t, queue.MessageRef{ChannelID: "c1", MessageID: "m1"}, ref)

	ref2, err := n.UpdateNowPlaying(ctx, "c1", ref, view())
	require.NoError(t, err)
	assert.Equal(t, ref, ref2)
	assert.Equal(t, []string{"m1"}, m.edited)
	assert.Len(t, m.sent, 1)
}

func TestNotifier_EditOfDeletedMessagePostsNew(t *testing.T) {
	m := &fakeMessenger{editErr: &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage},
	}}
	n := NewNotifier(m, zerolog.Nop())

	ref, err := n.UpdateNowPlaying(context.Background(), "c1", queue.MessageRef{ChannelID: "c1", MessageID: "old"}, view())
	require.NoError(t, err)
	assert.Equal(t, "m1", ref.MessageID)
}

func TestNotifier_ChannelChangeMovesMessage(t *testing.T) {
	m := &fakeMessenger{}
	n := NewNotifier(m, zerolog.Nop())

	ref, err := n.UpdateNowPlaying(context.Background(), "c2", queue.MessageRef{ChannelID: "c1", MessageID: "old"}, view())
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, m.deleted)
	assert.Equal(t, "c2", ref.ChannelID)
}

func TestNotifier_ClearZeroRefIsNoop(t *testing.T) {
	m := &fakeMessenger{}
	n := NewNotifier(m, zerolog.Nop())
	require.NoError(t, n.Clear(context.Background(), queue.MessageRef{}))
	assert.Empty(t, m.deleted)
}

func TestNotifier_Error(t *testing.T) {
	m := &fakeMessenger{}
	n := NewNotifier(m, zerolog.Nop())
	require.NoError(t, n.Error(context.Background(), "c1", "Couldn't play **Song**"))
	require.NotNil(t, m.last)
	assert.Contains(t, m.last.Description, "Couldn't play **Song**")
}

func TestNowPlayingEmbed(t *testing.T) {
	v := view()
	v.Loop = queue.LoopAll
	v.Paused = true
	v.Position = 65 * time.Second
	v.CoverArt = "https://img"

	e := nowPlayingEmbed(v)
	assert.Contains(t, e.Title, "Paused")
	assert.Contains(t, e.Title, "🔁")
	assert.Contains(t, e.Description, "[Song](https://example.com/watch)")
	require.NotNil(t, e.Thumbnail)
	assert.Equal(t, "https://img", e.Thumbnail.URL)
	require.NotNil(t, e.Footer)
	assert.Equal(t, "Track 2 of 3", e.Footer.Text)

	fields := map[string]string{}
	for _, f := range e.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "1:05 / 3:00", fields["Duration"])
	assert.Equal(t, "<@u1>", fields["Requested by"])
	assert.Equal(t, "all", fields["Loop"])
}

func TestIsUnknownMessage(t *testing.T) {
	assert.False(t, isUnknownMessage(errors.New("boom")))
	assert.True(t, isUnknownMessage(fmt.Errorf("wrap: %w", &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
	})))
}
