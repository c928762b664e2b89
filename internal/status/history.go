package status

import (
	"context"
	"sync"
	"time"

	"ghnotifier/internal/engine"
	"ghnotifier/internal/eventbus"
)

const DefaultHistory = 100

// ItemRecord is one presentation or follow-up seen on the bus.
type ItemRecord struct {
	At   time.Time `json:"at"`
	Kind string    `json:"kind"` // "presented" | "followup"
	engine.ItemEvent
}

// ring keeps the last len(buf) values.
type ring[T any] struct {
	buf  []T
	next int
	full bool
}

func newRing[T any](size int) ring[T] { return ring[T]{buf: make([]T, size)} }

func (r *ring[T]) add(v T) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// recent returns values newest first.
func (r *ring[T]) recent() []T {
	n := r.next
	if r.full {
		n = len(r.buf)
	}
	out := make([]T, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}

// History keeps the most recent cycle reports and item events.
type History struct {
	mu     sync.RWMutex
	cycles ring[engine.Report]
	items  ring[ItemRecord]
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistory
	}
	return &History{cycles: newRing[engine.Report](size), items: newRing[ItemRecord](size)}
}

func (h *History) Add(r engine.Report) {
	h.mu.Lock()
	h.cycles.add(r)
	h.mu.Unlock()
}

func (h *History) AddItem(rec ItemRecord) {
	h.mu.Lock()
	h.items.add(rec)
	h.mu.Unlock()
}

// Recent returns reports newest first.
func (h *History) Recent() []engine.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cycles.recent()
}

// RecentItems returns item events newest first.
func (h *History) RecentItems() []ItemRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.items.recent()
}

// Follow records cycle and item events until ctx is done.
func (h *History) Follow(ctx context.Context, bus eventbus.Bus) {
	ch, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			h.record(ev)
		}
	}
}

func (h *History) record(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.TypeCycle:
		if rep, ok := ev.Data.(engine.Report); ok {
			h.Add(rep)
		}
	case eventbus.TypeItemPresent, eventbus.TypeItemFollowUp:
		ie, ok := ev.Data.(engine.ItemEvent)
		if !ok {
			return
		}
		kind := "presented"
		if ev.Type == eventbus.TypeItemFollowUp {
			kind = "followup"
		}
		h.AddItem(ItemRecord{At: ev.Time, Kind: kind, ItemEvent: ie})
	}
}
