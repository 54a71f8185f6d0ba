package youtube

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshon/domme-music/internal/music/track"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"github.com/rs/zerolog"
)

type result struct {
	ID       string
	Title    string
	Channel  string
	Duration string
}

type searchFunc func(ctx context.Context, query string) ([]result, error)

// Search answers free-text queries: plain YouTube search for what users type,
// YouTube Music first when cross-referencing catalog tracks.
type Search struct {
	video   searchFunc
	music   searchFunc
	details *DataAPI
	log     zerolog.Logger
}

func NewSearch(details *DataAPI, log zerolog.Logger) *Search {
	client := ytsearch.NewClient(nil)
	return &Search{
		video: func(ctx context.Context, query string) ([]result, error) {
			res, err := client.Search(ctx, query)
			if err != nil {
				return nil, err
			}
			out := make([]result, 0, len(res.Results))
			for _, v := range res.Results {
				out = append(out, result{ID: v.VideoID, Title: v.Title, Channel: v.Channel, Duration: v.Duration})
			}
			return out, nil
		},
		music:   musicSearch,
		details: details,
		log:     log,
	}
}

// ytmusic has no context support, so the call is abandoned rather than cancelled.
func musicSearch(ctx context.Context, query string) ([]result, error) {
	type answer struct {
		results []result
		err     error
	}
	ch := make(chan answer, 1)
	go func() {
		res, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			ch <- answer{err: err}
			return
		}
		out := make([]result, 0, len(res.Tracks))
		for _, t := range res.Tracks {
			artist := ""
			if len(t.Artists) > 0 {
				artist = t.Artists[0].Name
			}
			out = append(out, result{ID: t.VideoID, Title: t.Title, Channel: artist})
		}
		ch <- answer{results: out}
	}()

	select {
	case a := <-ch:
		return a.results, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Search returns the best video for query as a single track.
func (s *Search) Search(ctx context.Context, query string) ([]track.Track, error) {
	results, err := s.video(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	hit, ok := first(results)
	if !ok {
		return nil, track.ErrNoMatch
	}

	length, known := parseClock(hit.Duration)
	infos := []track.VideoInfo{{
		ID:      hit.ID,
		Title:   hit.Title,
		Channel: hit.Channel,
		Length:  length,
		// search results list livestreams without a duration
		Live: !known,
	}}
	if err := s.details.Enrich(ctx, infos); err != nil {
		s.log.Warn().Err(err).Msg("video details unavailable, using search metadata")
	}

	v, err := track.NewRemoteVideo(infos[0])
	if err != nil {
		return nil, err
	}
	return []track.Track{v}, nil
}

// SearchVideo implements track.VideoSearcher.
func (s *Search) SearchVideo(ctx context.Context, query string) (track.VideoHit, error) {
	var (
		errs     []error
		searched int
	)
	for _, search := range []searchFunc{s.music, s.video} {
		if search == nil {
			continue
		}
		searched++
		results, err := search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return track.VideoHit{}, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		if hit, ok := first(results); ok {
			return track.VideoHit{ID: hit.ID, Title: hit.Title, URL: watchURL(hit.ID)}, nil
		}
	}
	if len(errs) > 0 && len(errs) == searched {
		return track.VideoHit{}, errors.Join(errs...)
	}
	return track.VideoHit{}, track.ErrNoMatch
}

func first(results []result) (result, bool) {
	for _, r := range results {
		if videoIDPattern.MatchString(r.ID) {
			return r, true
		}
	}
	return result{}, false
}
