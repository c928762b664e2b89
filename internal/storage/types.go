package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoWatermark is returned by LoadWatermark when nothing was persisted yet.
	ErrNoWatermark = errors.New("no watermark persisted")
	ErrClosed      = errors.New("store closed")
)

// Store is the persistence API used by the engine.
type Store interface {
	LoadWatermark(ctx context.Context) (time.Time, error)
	// SaveWatermark overwrites the previous value. The write is durable
	// before SaveWatermark returns nil.
	SaveWatermark(ctx context.Context, at time.Time) error
	AppendDispatch(ctx context.Context, e DispatchEntry) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": timestamp file + dispatch.jsonl in Path (a directory)
//   - "sqlite": SQLite database file at Path
//
// An empty Driver means "file".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

type Outcome string

const (
	OutcomePresented Outcome = "presented"
	OutcomeOpened    Outcome = "opened"
	OutcomeDismissed Outcome = "dismissed"
	OutcomeFailed    Outcome = "failed"
)

// DispatchEntry records what happened to one item. It never holds item content
// beyond identifiers.
type DispatchEntry struct {
	At         time.Time `json:"at"`
	CycleID    string    `json:"cycle_id"`
	ItemID     string    `json:"item_id"`
	Repository string    `json:"repository,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	TookMS     int64     `json:"took_ms"`
}

// timestampLayout is the on-disk format: RFC 3339 with nanoseconds, always UTC.
const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string { return t.UTC().Format(timestampLayout) }
