package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/domme-music/internal/music/track"
	"github.com/rs/zerolog"
)

// Resolver picks the source for an input. Links go to the first matching source
// in registration order, anything else goes to the searcher.
type Resolver struct {
	sources  []Source
	searcher Searcher
	uploads  AttachmentSource
	log      zerolog.Logger
}

func NewResolver(searcher Searcher, uploads AttachmentSource, log zerolog.Logger, srcs ...Source) *Resolver {
	return &Resolver{sources: srcs, searcher: searcher, uploads: uploads, log: log}
}

// Resolve turns input into tracks, picking the source automatically.
func (r *Resolver) Resolve(ctx context.Context, input string) ([]track.Track, error) {
	return r.ResolveFrom(ctx, "", input)
}

// ResolveFrom is Resolve with the source forced by name; empty means auto.
func (r *Resolver) ResolveFrom(ctx context.Context, selected, input string) ([]track.Track, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("empty input")
	}

	if selected != "" {
		src := r.source(selected)
		if src == nil {
			return nil, fmt.Errorf("unknown source: %s (known: %s)", selected, strings.Join(r.names(), ", "))
		}
		if IsURL(input) && !src.Match(input) {
			return nil, fmt.Errorf("input does not match selected source: %s", selected)
		}
		return r.resolveWith(ctx, src, input)
	}

	if !IsURL(input) {
		if r.searcher == nil {
			return nil, errors.New("title search is not available")
		}
		tracks, err := r.searcher.Search(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", input, err)
		}
		if len(tracks) == 0 {
			return nil, ErrNoResult
		}
		return tracks, nil
	}

	for _, src := range r.sources {
		if src.Match(input) {
			return r.resolveWith(ctx, src, input)
		}
	}
	return nil, ErrNoSource
}

func (r *Resolver) resolveWith(ctx context.Context, src Source, input string) ([]track.Track, error) {
	tracks, err := src.Resolve(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	if len(tracks) == 0 {
		return nil, ErrNoResult
	}
	r.log.Debug().Str("source", src.Name()).Int("tracks", len(tracks)).Msg("resolved")
	return tracks, nil
}

// FromAttachments turns uploaded files into tracks.
func (r *Resolver) FromAttachments(ctx context.Context, atts []Attachment) ([]track.Track, error) {
	if r.uploads == nil {
		return nil, errors.New("uploads are not supported")
	}
	return r.uploads.FromAttachments(ctx, atts)
}

func (r *Resolver) source(name string) Source {
	for _, s := range r.sources {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func (r *Resolver) names() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}
