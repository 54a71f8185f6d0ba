package track

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoMatch is returned by a VideoSearcher that found nothing.
var ErrNoMatch = errors.New("no matching video")

// VideoHit is one search result a catalog track can be played from.
type VideoHit struct {
	ID    string
	Title string
	URL   string
}

// VideoSearcher looks up a playable video for a free-text query.
type VideoSearcher interface {
	SearchVideo(ctx context.Context, query string) (VideoHit, error)
}

// CatalogInfo is the metadata of a streaming-service entry.
type CatalogInfo struct {
	Title      string
	Artist     string
	CatalogURL string
	Length     time.Duration
	Artwork    string
	Service    string // e.g. "Spotify"
}

// CatalogTrack has no directly playable URL; Resolve cross-references it
// against a video corpus by title and artist.
type CatalogTrack struct {
	requester
	info     CatalogInfo
	searcher VideoSearcher
	resolved *Source
}

func NewCatalogTrack(info CatalogInfo, searcher VideoSearcher) *CatalogTrack {
	return &CatalogTrack{info: info, searcher: searcher}
}

func (c *CatalogTrack) Kind() Kind              { return KindCatalog }
func (c *CatalogTrack) Title() string           { return c.info.Title }
func (c *CatalogTrack) URL() string             { return c.info.CatalogURL }
func (c *CatalogTrack) Duration() time.Duration { return max(c.info.Length, 0) }
func (c *CatalogTrack) IsLive() bool            { return false }
func (c *CatalogTrack) CoverArtURL() string     { return c.info.Artwork }

func (c *CatalogTrack) Author() string {
	switch {
	case c.info.Artist != "" && c.info.Service != "":
		return fmt.Sprintf("%s (via %s)", c.info.Artist, c.info.Service)
	case c.info.Artist != "":
		return c.info.Artist
	default:
		return c.info.Service
	}
}

// Query is the fuzzy search text used for the cross-reference.
func (c *CatalogTrack) Query() string {
	return strings.TrimSpace(c.info.Title + " " + c.info.Artist)
}

// Resolve searches once and memoizes the first hit.
func (c *CatalogTrack) Resolve(ctx context.Context) (Source, error) {
	if c.resolved != nil {
		return *c.resolved, nil
	}
	if c.searcher == nil {
		return Source{}, &ResolutionError{Title: c.info.Title, Message: "no search backend configured"}
	}

	hit, err := c.searcher.SearchVideo(ctx, c.Query())
	if err != nil || hit.URL == "" {
		rerr := &ResolutionError{
			Title:   c.info.Title,
			Message: fmt.Sprintf("couldn't find a playable match for %s", c.Query()),
		}
		if err != nil && !errors.Is(err, ErrNoMatch) {
			rerr.Err = err
		}
		return Source{}, rerr
	}

	src := Source{Kind: SourceURL, URL: hit.URL, Title: c.info.Title}
	c.resolved = &src
	return src, nil
}
