package track

import (
	"context"
	"fmt"
	"time"
)

// VideoInfo is the metadata a resolver collects for a remote video.
type VideoInfo struct {
	ID      string
	Title   string
	Channel string
	// ChannelURL is optional; when set the author is rendered as a link.
	ChannelURL string
	// ISODuration is used when Length is zero (Data API responses).
	ISODuration string
	Length      time.Duration
	Live        bool
	Thumbnail   string
}

// RemoteVideo is a directly playable video.
type RemoteVideo struct {
	requester
	info     VideoInfo
	duration time.Duration
}

// NewRemoteVideo builds a RemoteVideo, normalizing the duration from whichever
// field the resolver filled in.
func NewRemoteVideo(info VideoInfo) (*RemoteVideo, error) {
	if info.ID == "" {
		return nil, fmt.Errorf("remote video %q has no id", info.Title)
	}

	d := info.Length
	if d == 0 && info.ISODuration != "" && !info.Live {
		parsed, err := ParseISODuration(info.ISODuration)
		if err != nil {
			return nil, err
		}
		d = parsed
	}
	if info.Live || d < 0 {
		d = 0
	}

	return &RemoteVideo{info: info, duration: d}, nil
}

func (v *RemoteVideo) Kind() Kind              { return KindRemoteVideo }
func (v *RemoteVideo) Title() string           { return v.info.Title }
func (v *RemoteVideo) URL() string             { return "https://www.youtube.com/watch?v=" + v.info.ID }
func (v *RemoteVideo) Duration() time.Duration { return v.duration }
func (v *RemoteVideo) IsLive() bool            { return v.info.Live }
func (v *RemoteVideo) CoverArtURL() string     { return v.info.Thumbnail }
func (v *RemoteVideo) ID() string              { return v.info.ID }

func (v *RemoteVideo) Author() string {
	if v.info.ChannelURL != "" && v.info.Channel != "" {
		return fmt.Sprintf("[%s](%s)", v.info.Channel, v.info.ChannelURL)
	}
	return v.info.Channel
}

// Resolve hands the watch URL to the renderer; no network call is needed.
func (v *RemoteVideo) Resolve(_ context.Context) (Source, error) {
	return Source{Kind: SourceURL, URL: v.URL(), Title: v.info.Title, Live: v.info.Live}, nil
}
