package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"ghnotifier/internal/feed"
	"ghnotifier/internal/presenter"
	"ghnotifier/internal/storage"
)

type fakeFeed struct {
	mu    sync.Mutex
	items []feed.Item
	err   error
	calls int
}

func (f *fakeFeed) Fetch(context.Context) ([]feed.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, &feed.FetchError{Op: "fetch", Err: f.err}
	}
	return append([]feed.Item(nil), f.items...), nil
}

func (f *fakeFeed) set(items []feed.Item, err error) {
	f.mu.Lock()
	f.items, f.err = items, err
	f.mu.Unlock()
}

type fakePresenter struct {
	mu       sync.Mutex
	shown    []string
	inflight int
	maxSeen  int

	delay  func(it feed.Item) time.Duration
	fail   func(it feed.Item) error
	signal func(it feed.Item) presenter.Signal
}

func (p *fakePresenter) Present(ctx context.Context, it feed.Item) (presenter.Signal, error) {
	p.mu.Lock()
	p.inflight++
	if p.inflight > p.maxSeen {
		p.maxSeen = p.inflight
	}
	p.mu.Unlock()

	if p.delay != nil {
		select {
		case <-time.After(p.delay(it)):
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight--
	if p.fail != nil {
		if err := p.fail(it); err != nil {
			return nil, err
		}
	}
	p.shown = append(p.shown, it.ID)
	if p.signal != nil {
		return p.signal(it), nil
	}
	return presenter.NoAction(), nil
}

func (p *fakePresenter) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.shown...)
}

type memStore struct {
	mu      sync.Mutex
	wm      time.Time
	has     bool
	saveErr error
	saves   int
	entries []storage.DispatchEntry
}

func (s *memStore) LoadWatermark(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return time.Time{}, storage.ErrNoWatermark
	}
	return s.wm, nil
}

func (s *memStore) SaveWatermark(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.wm, s.has = at, true
	return nil
}

func (s *memStore) AppendDispatch(_ context.Context, e storage.DispatchEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) outcomes() map[storage.Outcome]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[storage.Outcome]int{}
	for _, e := range s.entries {
		out[e.Outcome]++
	}
	return out
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, it feed.Item) (string, error) {
	if it.Subject.URL == "" {
		return "", errors.New("nothing to open")
	}
	return "https://github.com/" + it.Repository.FullName + "/pull/" + it.ID, nil
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, url)
	return nil
}

func (o *fakeOpener) urls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func item(id, updated string) feed.Item {
	return feed.Item{
		ID:         id,
		Reason:     feed.ReasonMention,
		Repository: feed.Repository{FullName: "octo/hello", HTMLURL: "https://github.com/octo/hello"},
		Subject:    feed.Subject{Title: "t" + id, Type: "PullRequest", URL: "https://api.github.com/repos/octo/hello/pulls/" + id},
		UpdatedAt:  updated,
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
