// Package track describes the playable items a guild queue holds.
//
// Three kinds exist: remote videos, catalog tracks (a streaming-service entry that
// has to be cross-referenced to a playable video) and uploaded files. They share the
// Track interface; callers switch on Kind() instead of type-asserting.
package track

import (
	"context"
	"fmt"
	"time"
)

// Kind tags the concrete variant behind a Track.
type Kind int

const (
	KindRemoteVideo Kind = iota
	KindCatalog
	KindUpload
)

func (k Kind) String() string {
	switch k {
	case KindRemoteVideo:
		return "video"
	case KindCatalog:
		return "catalog"
	case KindUpload:
		return "upload"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Emoji returns the icon shown next to the track type in status messages.
func (k Kind) Emoji() string {
	switch k {
	case KindRemoteVideo:
		return "📺"
	case KindCatalog:
		return "🎼"
	case KindUpload:
		return "📎"
	default:
		return "🎵"
	}
}

// Track is one playable item.
type Track interface {
	Kind() Kind
	Title() string
	// URL is the durable link to the item, empty when there is none.
	URL() string
	// Duration is zero for livestreams; check IsLive before doing arithmetic.
	Duration() time.Duration
	IsLive() bool
	// Author is markdown attribution (channel, artist or uploader).
	Author() string
	CoverArtURL() string

	Requester() string
	// SetRequester stamps the requesting user. Only the first stamp sticks.
	SetRequester(userID string)

	// Resolve produces what the renderer needs to play this track.
	// Failures are *ResolutionError.
	Resolve(ctx context.Context) (Source, error)
}

// SourceKind tells the renderer how to open a Source.
type SourceKind string

const (
	SourceURL  SourceKind = "url"
	SourceFile SourceKind = "file"
)

// Source is the descriptor sent to the renderer in a play command.
type Source struct {
	Kind  SourceKind `json:"kind"`
	URL   string     `json:"url"`
	Title string     `json:"title,omitempty"`
	Live  bool       `json:"live,omitempty"`
}

// requester carries the stamp-once requester id shared by all variants.
type requester struct {
	id      string
	stamped bool
}

func (r *requester) Requester() string { return r.id }

func (r *requester) SetRequester(userID string) {
	if r.stamped {
		return
	}
	r.id = userID
	r.stamped = true
}

// ResolutionError reports that no playable media could be found for a track.
// It is recoverable: only that track's attempt fails.
type ResolutionError struct {
	Title   string
	Message string // user-facing
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %s: %v", e.Title, e.Message, e.Err)
	}
	return fmt.Sprintf("resolve %q: %s", e.Title, e.Message)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
