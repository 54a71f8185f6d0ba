// Package youtube resolves YouTube links and searches into remote video tracks.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/internal/music/track"
	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
)

// DefaultPlaylistLimit caps how many playlist entries are queued at once.
const DefaultPlaylistLimit = 100

// VideoClient is the part of the kkdai client this source uses.
type VideoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
}

type Source struct {
	client        VideoClient
	search        *Search
	details       *DataAPI
	playlistLimit int
	log           zerolog.Logger
}

func New(client VideoClient, search *Search, details *DataAPI, log zerolog.Logger) *Source {
	return &Source{
		client:        client,
		search:        search,
		details:       details,
		playlistLimit: DefaultPlaylistLimit,
		log:           log,
	}
}

func (s *Source) Name() string { return sources.SourceYouTube }

func (s *Source) Match(input string) bool { return isYouTubeURL(input) }

func (s *Source) Resolve(ctx context.Context, input string) ([]track.Track, error) {
	input = strings.TrimSpace(input)

	if !sources.IsURL(input) {
		if s.search == nil {
			return nil, errors.New("search is not configured")
		}
		return s.search.Search(ctx, input)
	}

	if list := playlistID(input); list != "" {
		return s.playlist(ctx, input)
	}

	id, err := videoID(input)
	if err != nil {
		return nil, err
	}
	return s.video(ctx, id)
}

func (s *Source) video(ctx context.Context, id string) ([]track.Track, error) {
	v, err := s.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch video %s: %w", id, err)
	}

	infos := []track.VideoInfo{{
		ID:         v.ID,
		Title:      v.Title,
		Channel:    v.Author,
		ChannelURL: channelURL(v.ChannelID),
		Length:     v.Duration,
		Live:       v.HLSManifestURL != "",
		Thumbnail:  lastThumbnail(v.Thumbnails),
	}}
	if err := s.details.Enrich(ctx, infos); err != nil {
		s.log.Warn().Err(err).Str("video", id).Msg("video details unavailable")
	}
	return build(infos)
}

func (s *Source) playlist(ctx context.Context, url string) ([]track.Track, error) {
	p, err := s.client.GetPlaylistContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}

	entries := p.Videos
	if len(entries) > s.playlistLimit {
		s.log.Debug().Int("entries", len(entries)).Int("limit", s.playlistLimit).Msg("playlist truncated")
		entries = entries[:s.playlistLimit]
	}

	infos := make([]track.VideoInfo, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.ID == "" {
			continue
		}
		infos = append(infos, track.VideoInfo{
			ID:        e.ID,
			Title:     e.Title,
			Channel:   e.Author,
			Length:    e.Duration,
			Thumbnail: lastThumbnail(e.Thumbnails),
		})
	}
	if len(infos) == 0 {
		return nil, sources.ErrNoResult
	}

	if err := s.details.Enrich(ctx, infos); err != nil {
		s.log.Warn().Err(err).Str("playlist", p.ID).Msg("playlist details unavailable")
	}
	return build(infos)
}

func build(infos []track.VideoInfo) ([]track.Track, error) {
	out := make([]track.Track, 0, len(infos))
	for _, info := range infos {
		v, err := track.NewRemoteVideo(info)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func lastThumbnail(thumbs youtube.Thumbnails) string {
	if len(thumbs) == 0 {
		return ""
	}
	return thumbs[len(thumbs)-1].URL
}
