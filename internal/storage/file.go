package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"ghnotifier/pkg/logx"
)

const (
	watermarkFile = "last_updated"
	journalFile   = "dispatch.jsonl"
)

// fileStore is the dependency-free backend.
//
// Files (inside dir):
//   - last_updated    (single RFC 3339 timestamp, replaced atomically)
//   - dispatch.jsonl  (append-only JSON Lines)
//
// Nothing is created until the first write.
type fileStore struct {
	log logx.Logger
	dir string

	mu      sync.Mutex
	journal *os.File
	closed  bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		d, err := StateDir(DefaultIdentity)
		if err != nil {
			return nil, fmt.Errorf("resolve state dir: %w", err)
		}
		dir = d
	}
	log.Debug("file store ready", logx.String("dir", dir))
	return &fileStore{log: log, dir: dir}, nil
}

func (s *fileStore) watermarkPath() string { return filepath.Join(s.dir, watermarkFile) }

func (s *fileStore) LoadWatermark(ctx context.Context) (time.Time, error) {
	_ = ctx
	b, err := os.ReadFile(s.watermarkPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, ErrNoWatermark
		}
		return time.Time{}, err
	}
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		return time.Time{}, ErrNoWatermark
	}
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", s.watermarkPath(), err)
	}
	return t, nil
}

func (s *fileStore) SaveWatermark(ctx context.Context, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeFileDurable(s.watermarkPath(), []byte(formatTimestamp(at)))
}

// writeFileDurable replaces path with data so that a crash at any point leaves
// either the old or the new content, never a partial file.
func writeFileDurable(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return syncDir(filepath.Dir(path))
}

func syncDir(dir string) error {
	// Directories cannot be opened for sync on Windows; rename is already durable there.
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func (s *fileStore) AppendDispatch(ctx context.Context, e DispatchEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.journal == nil {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(s.dir, journalFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		s.journal = f
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.journal).Encode(e)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}
