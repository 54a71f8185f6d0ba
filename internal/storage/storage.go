// /internal/storage/storage.go
package storage

import (
	"fmt"
	"sync"

	"github.com/keshon/domme-music/datastore"
	"github.com/rs/zerolog"
)

const (
	commandHistoryLimit int = 20
	tracksHistoryLimit  int = 12
)

// Storage keeps one Record per guild in the datastore.
type Storage struct {
	ds  *datastore.DataStore
	log zerolog.Logger
	// read-modify-write of a record has to be atomic per process
	mu sync.Mutex
}

type Record struct {
	CommandsHistory  []CommandHistoryRecord `json:"cmd_history"`
	CommandsDisabled []string               `json:"cmd_disabled"`
	CommandHashes    map[string]string      `json:"cmd_hashes"`
	MusicChannel     string                 `json:"music_channel,omitempty"`
	TracksHistory    []TrackRecord          `json:"tracks_history"`
}

func New(filePath string, log zerolog.Logger) (*Storage, error) {
	ds, err := datastore.New(filePath, log.With().Str("component", "datastore").Logger())
	if err != nil {
		return nil, err
	}
	return NewWithStore(ds, log), nil
}

func NewWithStore(ds *datastore.DataStore, log zerolog.Logger) *Storage {
	return &Storage{ds: ds, log: log}
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// Guilds returns the ids of every guild with a stored record.
func (s *Storage) Guilds() []string {
	return s.ds.Keys()
}

// update loads the guild record, applies fn and writes it back.
func (s *Storage) update(guildID string, fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(guildID)
	if err != nil {
		return err
	}
	if err := fn(record); err != nil {
		return err
	}
	if err := s.ds.Put(guildID, record); err != nil {
		return fmt.Errorf("save guild %s: %w", guildID, err)
	}
	return nil
}

// view loads a copy of the guild record; an unknown guild yields an empty record.
func (s *Storage) view(guildID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(guildID)
}

func (s *Storage) load(guildID string) (*Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, fmt.Errorf("load guild %s: %w", guildID, err)
	}
	if record.CommandHashes == nil {
		record.CommandHashes = map[string]string{}
	}
	return &record, nil
}

// keepLast trims list to its newest n entries.
func keepLast[T any](list []T, n int) []T {
	if len(list) > n {
		return list[len(list)-n:]
	}
	return list
}

func (s *Storage) Stats() datastore.Stats {
	return s.ds.Stats()
}
