package storage

import (
	"slices"
	"time"

	"github.com/keshon/domme-music/internal/music/track"
)

// TrackRecord is one entry of a guild's play history.
type TrackRecord struct {
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Kind        string    `json:"kind"`
	RequesterID string    `json:"requester_id,omitempty"`
	PlayedAt    time.Time `json:"played_at"`
}

func NewTrackRecord(t track.Track, at time.Time) TrackRecord {
	return TrackRecord{
		Title:       t.Title(),
		URL:         t.URL(),
		Kind:        t.Kind().String(),
		RequesterID: t.Requester(),
		PlayedAt:    at,
	}
}

// AddTrackHistory appends a played track. Only the last few are kept.
func (s *Storage) AddTrackHistory(guildID string, rec TrackRecord) error {
	return s.update(guildID, func(r *Record) error {
		r.TracksHistory = keepLast(append(r.TracksHistory, rec), tracksHistoryLimit)
		return nil
	})
}

// TrackHistory returns the play history, newest first.
func (s *Storage) TrackHistory(guildID string) ([]TrackRecord, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(r.TracksHistory)
	slices.Reverse(out)
	return out, nil
}

func (s *Storage) SetMusicChannel(guildID, channelID string) error {
	return s.update(guildID, func(r *Record) error {
		r.MusicChannel = channelID
		return nil
	})
}

// MusicChannel is the channel now-playing messages go to; empty when unset.
func (s *Storage) MusicChannel(guildID string) (string, error) {
	r, err := s.view(guildID)
	if err != nil {
		return "", err
	}
	return r.MusicChannel, nil
}
