// Package adapter is the control-protocol client for the out-of-process audio renderer.
//
// One Mux owns the shared renderer link. Each guild gets its own Client with a private
// request-id counter. Replies to status requests are correlated by (guild, request id);
// unsolicited end and error events are routed by guild id only. The two paths never
// share a table.
package adapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/keshon/domme-music/internal/music/track"
)

// Op names a command or an event on the wire.
type Op string

const (
	OpJoin   Op = "join"
	OpPlay   Op = "play"
	OpPause  Op = "pause"
	OpResume Op = "resume"
	OpStop   Op = "stop"
	OpStatus Op = "status"

	// events only
	OpEnd   Op = "end"
	OpError Op = "error"
)

// Status is the renderer's view of a guild's playback.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusPlaying      Status = "playing"
	StatusPaused       Status = "paused"
	StatusNotConnected Status = "not-connected"
)

// Active reports whether a track is loaded (playing or paused).
func (s Status) Active() bool { return s == StatusPlaying || s == StatusPaused }

// Frame is one JSON message in either direction.
type Frame struct {
	Op         Op            `json:"op"`
	GuildID    string        `json:"guildId"`
	RequestID  uint64        `json:"requestId,omitempty"`
	ChannelID  string        `json:"channelId,omitempty"`
	Source     *track.Source `json:"source,omitempty"`
	Status     Status        `json:"status,omitempty"`
	PositionMs int64         `json:"positionMs,omitempty"`
	Code       int           `json:"code,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// StatusReply is the correlated answer to a status request.
type StatusReply struct {
	Status Status
	// Position is the elapsed playback time of the current track, when the renderer reports it.
	Position time.Duration
}

// Conn is the part of *websocket.Conn the mux needs.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

var (
	ErrNotConnected     = errors.New("renderer link is not connected")
	ErrLinkClosed       = errors.New("renderer link closed while waiting for a reply")
	ErrAlreadyConnected = errors.New("client already connected")
	ErrClientClosed     = errors.New("client is not connected to the mux")
)

// TransportError is an error event reported by the renderer.
type TransportError struct {
	GuildID string
	Code    int
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("renderer error %d for guild %s: %s", e.Code, e.GuildID, e.Message)
}
