package storage

import (
	"maps"
	"slices"
	"time"
)

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param,omitempty"`
	Datetime    time.Time `json:"datetime"`
}

// AppendCommandToHistory records a command run, keeping the newest entries only.
func (s *Storage) AppendCommandToHistory(guildID string, rec CommandHistoryRecord) error {
	return s.update(guildID, func(r *Record) error {
		r.CommandsHistory = keepLast(append(r.CommandsHistory, rec), commandHistoryLimit)
		return nil
	})
}

func (s *Storage) CommandsHistory(guildID string) ([]CommandHistoryRecord, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandsHistory, nil
}

func (s *Storage) DisableGroup(guildID, group string) error {
	return s.update(guildID, func(r *Record) error {
		if !slices.Contains(r.CommandsDisabled, group) {
			r.CommandsDisabled = append(r.CommandsDisabled, group)
		}
		return nil
	})
}

func (s *Storage) EnableGroup(guildID, group string) error {
	return s.update(guildID, func(r *Record) error {
		r.CommandsDisabled = slices.DeleteFunc(r.CommandsDisabled, func(g string) bool { return g == group })
		return nil
	})
}

func (s *Storage) IsGroupDisabled(guildID, group string) (bool, error) {
	r, err := s.view(guildID)
	if err != nil {
		return false, err
	}
	return slices.Contains(r.CommandsDisabled, group), nil
}

func (s *Storage) DisabledGroups(guildID string) ([]string, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandsDisabled, nil
}

// CommandHashes returns the definition hashes last registered with Discord for a guild.
func (s *Storage) CommandHashes(guildID string) (map[string]string, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandHashes, nil
}

func (s *Storage) SetCommandHashes(guildID string, hashes map[string]string) error {
	return s.update(guildID, func(r *Record) error {
		r.CommandHashes = maps.Clone(hashes)
		return nil
	})
}
