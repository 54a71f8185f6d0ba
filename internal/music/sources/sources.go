// Package sources turns user input (links, search text, attachments) into tracks.
package sources

import (
	"context"
	"errors"
	"strings"

	"github.com/keshon/domme-music/internal/music/track"
)

const (
	SourceYouTube = "youtube"
	SourceSpotify = "spotify"
	SourceUpload  = "upload"
)

var (
	ErrNoSource = errors.New("no source can handle this input")
	ErrNoResult = errors.New("nothing found")
)

// Source resolves the inputs it matches.
type Source interface {
	Name() string
	Match(input string) bool
	Resolve(ctx context.Context, input string) ([]track.Track, error)
}

// Searcher resolves free text.
type Searcher interface {
	Search(ctx context.Context, query string) ([]track.Track, error)
}

// Attachment is a file a user uploaded alongside a command.
type Attachment struct {
	FileName    string
	URL         string
	ContentType string
	Size        int
}

// AttachmentSource turns uploads into tracks.
type AttachmentSource interface {
	FromAttachments(ctx context.Context, atts []Attachment) ([]track.Track, error)
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
