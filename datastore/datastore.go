// Package datastore is a small JSON-file key/value store kept in memory and
// flushed to disk periodically and on Close.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrClosed      = errors.New("datastore is closed")
	ErrMemoryLimit = errors.New("datastore memory limit exceeded")
)

type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration // 0 disables autosave
	MaxMemorySize    int64         // bytes of marshalled JSON, 0 = unlimited
	BackupCount      int
	Logger           zerolog.Logger
}

func DefaultConfig(filePath string) Config {
	return Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		MaxMemorySize:    64 << 20,
		BackupCount:      3,
		Logger:           zerolog.Nop(),
	}
}

// DataStore values are json.RawMessage so a typed Get can decode straight into
// the caller's struct.
type DataStore struct {
	cfg Config
	log zerolog.Logger

	mu       sync.RWMutex
	data     map[string]json.RawMessage
	size     int64
	checksum [sha256.Size]byte
	closed   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(filePath string, log zerolog.Logger) (*DataStore, error) {
	cfg := DefaultConfig(filePath)
	cfg.Logger = log
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*DataStore, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("datastore: file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("create datastore directory: %w", err)
	}

	ds := &DataStore{
		cfg:  cfg,
		log:  cfg.Logger,
		data: make(map[string]json.RawMessage),
	}

	switch _, err := os.Stat(cfg.FilePath); {
	case errors.Is(err, os.ErrNotExist):
		if err := ds.writeAtomic([]byte("{}")); err != nil {
			return nil, fmt.Errorf("create %s: %w", cfg.FilePath, err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", cfg.FilePath, err)
	default:
		if err := ds.load(); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ds.cancel = cancel
	if cfg.AutoSaveInterval > 0 {
		ds.wg.Add(1)
		go ds.autoSave(ctx)
	}
	return ds, nil
}

// Put marshals value under key.
func (ds *DataStore) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return ErrClosed
	}
	size := ds.size - int64(len(ds.data[key])) + int64(len(raw))
	if ds.cfg.MaxMemorySize > 0 && size > ds.cfg.MaxMemorySize {
		ds.log.Warn().Str("key", key).Int64("size", size).Msg("memory limit reached, write rejected")
		return ErrMemoryLimit
	}
	ds.data[key] = raw
	ds.size = size
	return nil
}

// Get decodes the value under key into out. It reports false when the key is absent.
func (ds *DataStore) Get(key string, out any) (bool, error) {
	ds.mu.RLock()
	raw, ok := ds.data[key]
	closed := ds.closed
	ds.mu.RUnlock()

	if closed {
		return false, ErrClosed
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (ds *DataStore) Delete(key string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if raw, ok := ds.data[key]; ok {
		ds.size -= int64(len(raw))
		delete(ds.data, key)
	}
}

func (ds *DataStore) Keys() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	keys := make([]string, 0, len(ds.data))
	for k := range ds.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Save flushes to disk now. Unchanged data is not rewritten.
func (ds *DataStore) Save() error {
	ds.mu.RLock()
	closed := ds.closed
	ds.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ds.save()
}

// Close stops autosave and performs a final flush.
func (ds *DataStore) Close() error {
	ds.mu.Lock()
	if ds.closed {
		ds.mu.Unlock()
		return nil
	}
	ds.closed = true
	ds.mu.Unlock()

	ds.cancel()
	ds.wg.Wait()
	return ds.save()
}

type Stats struct {
	Keys     int
	Size     int64
	FilePath string
}

func (ds *DataStore) Stats() Stats {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return Stats{Keys: len(ds.data), Size: ds.size, FilePath: ds.cfg.FilePath}
}

func (ds *DataStore) save() error {
	ds.mu.RLock()
	body, err := json.MarshalIndent(ds.data, "", "  ")
	prev := ds.checksum
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal datastore: %w", err)
	}

	sum := sha256.Sum256(body)
	if sum == prev {
		return nil
	}

	if ds.cfg.BackupCount > 0 {
		if err := ds.backup(); err != nil {
			ds.log.Warn().Err(err).Msg("backup failed")
		}
	}
	if err := ds.writeAtomic(body); err != nil {
		return err
	}

	written, err := os.ReadFile(ds.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("verify %s: %w", ds.cfg.FilePath, err)
	}
	if sha256.Sum256(written) != sum {
		return fmt.Errorf("verify %s: checksum mismatch", ds.cfg.FilePath)
	}

	ds.mu.Lock()
	ds.checksum = sum
	ds.mu.Unlock()
	ds.log.Debug().Int("bytes", len(body)).Msg("saved")
	return nil
}

func (ds *DataStore) load() error {
	body, err := os.ReadFile(ds.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", ds.cfg.FilePath, err)
	}

	data := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("parse %s: %w", ds.cfg.FilePath, err)
	}

	var size int64
	for _, v := range data {
		size += int64(len(v))
	}

	ds.mu.Lock()
	ds.data = data
	ds.size = size
	ds.checksum = sha256.Sum256(body)
	ds.mu.Unlock()
	return nil
}

func (ds *DataStore) writeAtomic(body []byte) error {
	tmp := ds.cfg.FilePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, ds.cfg.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", ds.cfg.FilePath, err)
	}
	return nil
}

func (ds *DataStore) backup() error {
	src, err := os.Open(ds.cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup.%s", ds.cfg.FilePath, time.Now().Format("20060102_150405.000"))
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	ds.pruneBackups()
	return nil
}

// pruneBackups keeps the newest BackupCount files. The timestamp suffix sorts lexically.
func (ds *DataStore) pruneBackups() {
	matches, err := filepath.Glob(ds.cfg.FilePath + ".backup.*")
	if err != nil || len(matches) <= ds.cfg.BackupCount {
		return
	}
	slices.Sort(matches)
	for _, old := range matches[:len(matches)-ds.cfg.BackupCount] {
		if err := os.Remove(old); err != nil {
			ds.log.Warn().Err(err).Str("file", old).Msg("remove old backup")
		}
	}
}

func (ds *DataStore) autoSave(ctx context.Context) {
	defer ds.wg.Done()
	t := time.NewTicker(ds.cfg.AutoSaveInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := ds.save(); err != nil {
				ds.log.Error().Err(err).Msg("autosave failed")
			}
		}
	}
}
