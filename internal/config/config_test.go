package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ghnotifier/internal/schedule"
	"ghnotifier/internal/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultsResolve(t *testing.T) {
	t.Parallel()
	r, err := Defaults().Resolve()
	if err != nil {
		t.Fatalf("Resolve(defaults): %v", err)
	}
	if r.Schedule.Kind != schedule.KindInterval || r.Schedule.Every != 30*time.Second {
		t.Fatalf("schedule = %+v", r.Schedule)
	}
	if r.OnMissing != storage.PolicyNow || r.DrainTimeout != 5*time.Second || r.OpenerTimeout != 10*time.Second {
		t.Fatalf("resolved = %+v", r)
	}
	if r.FeedTimeout != 30*time.Second || r.ErrorBackoffMax != 0 || r.ActionTimeout != 0 {
		t.Fatalf("resolved = %+v", r)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("")
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Schedule != "30s" || m.Get() != cfg {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
poll:
  schedule: "*/2 * * * *"
dispatch:
  max_concurrency: 4
presenter:
  driver: log
`)
	cfg, err := NewConfigManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Schedule != "*/2 * * * *" || cfg.Dispatch.MaxConcurrency != 4 || cfg.Presenter.Driver != "log" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Feed.APIURL != "https://api.github.com" || cfg.Dispatch.DrainTimeout != "5s" || cfg.Presenter.AppName != "GitHub" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"watermark":{"on_missing":"replay"},"storage":{"driver":"sqlite","path":"/tmp/x.db"}}`)
	cfg, err := NewConfigManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Watermark.OnMissing != "replay" || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, file, content, want string
	}{
		{"unknown key", "c.yaml", "pol:\n  schedule: 30s\n", "unknown field"},
		{"trailing json", "c.json", `{} {}`, "trailing"},
		{"bad schedule", "c.yaml", "poll:\n  schedule: sometimes\n", "poll.schedule"},
		{"bad policy", "c.yaml", "watermark:\n  on_missing: later\n", "watermark.on_missing"},
		{"negative duration", "c.yaml", "dispatch:\n  drain_timeout: -1s\n", "dispatch.drain_timeout"},
		{"bad driver", "c.yaml", "storage:\n  driver: redis\n", "storage.driver"},
		{"telegram without chat", "c.yaml", "presenter:\n  driver: telegram\n", "chat_id"},
		{"bad api url", "c.yaml", "feed:\n  api_url: ftp://x\n", "feed.api_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)
			_, err := NewConfigManager(path).Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestEmptyYAMLKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, "# nothing here\n")
	cfg, err := NewConfigManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *Defaults() {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := Defaults()
	b := Defaults()
	b.Logging.Level = "debug"
	b.Poll.Schedule = "1m"
	b.Storage.Driver = "sqlite"

	changed, attrs := SummarizeChange(a, b)
	if strings.Join(changed, ",") != "logging,poll,storage" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
	if got := RequiresRestart(changed); len(got) != 1 || got[0] != "storage" {
		t.Fatalf("RequiresRestart = %v", got)
	}
	if changed, _ := SummarizeChange(a, Defaults()); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("")
	ch := m.Subscribe(1)
	first, second := Defaults(), Defaults()
	second.Logging.Level = "debug"
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatalf("got %+v, want newest", got)
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after Unsubscribe")
	}
	m.publish(first) // must not panic
}

func TestWatchPublishesReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logging:\n  level: info\n")
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()

	// Give the watcher a moment to attach, then keep rewriting until it fires.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-ch:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published level = %q", cfg.Logging.Level)
			}
			cancel()
			<-done
			return
		case <-tick.C:
			writeFile(t, path, "logging:\n  level: debug\n")
		case <-deadline:
			t.Fatal("no reload published")
		}
	}
}

func TestWatchIgnoresInvalidReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logging:\n  level: info\n")
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, "poll:\n  schedule: whenever\n")
	m.reload(context.Background())
	if m.Get().Poll.Schedule != "30s" {
		t.Fatalf("invalid reload committed: %+v", m.Get().Poll)
	}
}
