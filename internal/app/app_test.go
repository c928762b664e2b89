package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ghnotifier/internal/config"
	"ghnotifier/internal/engine"
	"ghnotifier/internal/eventbus"
	"ghnotifier/internal/storage"
	"ghnotifier/pkg/logx"
)

const notificationJSON = `[{
  "id": "42",
  "reason": "mention",
  "repository": {"id": 1, "name": "hello", "full_name": "octo/hello", "html_url": "https://github.com/octo/hello"},
  "subject": {"title": "Ping", "url": "https://api.example/issues/2", "type": "Issue"},
  "updated_at": "2024-01-01T02:00:00Z"
}]`

func newGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/notifications") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, notificationJSON)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, apiURL, stateDir, extra string) string {
	t.Helper()
	body := fmt.Sprintf(`logging:
  level: error
feed:
  api_url: %q
  rate_per_sec: 0
watermark:
  on_missing: replay
storage:
  driver: file
  path: %q
presenter:
  driver: log
%s`, apiURL, stateDir, extra)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestApp(t *testing.T, cfgPath string, srv *httptest.Server) *App {
	t.Helper()
	a, err := New(Options{ConfigPath: cfgPath, Token: "secret", Version: "test", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Options{Token: "  "}); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("poll:\n  schedule: \"not a schedule\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Options{ConfigPath: path, Token: "x"}); err == nil {
		t.Fatal("expected config error")
	}
}

func TestRunOnceDispatchesAndPersists(t *testing.T) {
	t.Parallel()
	srv := newGitHub(t)
	state := t.TempDir()
	cfgPath := writeConfig(t, srv.URL, state, "")

	a := newTestApp(t, cfgPath, srv)
	rep, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if rep.Fetched != 1 || rep.Presented != 1 || rep.Failed != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := os.Stat(filepath.Join(state, "last_updated")); err != nil {
		t.Fatalf("watermark not persisted: %v", err)
	}
	journal, err := os.ReadFile(filepath.Join(state, "dispatch.jsonl"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if !strings.Contains(string(journal), `"42"`) {
		t.Fatalf("journal missing item: %s", journal)
	}

	// A restart picks up the stored watermark; the item is not shown again.
	b := newTestApp(t, cfgPath, srv)
	defer b.Stop(context.Background())
	rep, err = b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if rep.Fetched != 1 || rep.Fresh != 0 {
		t.Fatalf("item redelivered after restart: %+v", rep)
	}
}

func TestStartRunsCyclesUntilStop(t *testing.T) {
	t.Parallel()
	srv := newGitHub(t)
	a := newTestApp(t, writeConfig(t, srv.URL, t.TempDir(), ""), srv)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if rep, ok := a.engine.LastReport(); ok {
			if rep.Presented != 1 {
				t.Fatalf("unexpected report %+v", rep)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no cycle completed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestApplyPublishesReload(t *testing.T) {
	t.Parallel()
	srv := newGitHub(t)
	a := newTestApp(t, writeConfig(t, srv.URL, t.TempDir(), ""), srv)
	defer a.Stop(context.Background())

	events, cancel := a.bus.Subscribe(4)
	defer cancel()

	prev := a.cfgm.Get()
	next := *prev
	next.Poll.Schedule = "5m"
	next.Presenter.AppName = "Other"
	a.apply(prev, &next)

	select {
	case ev := <-events:
		if ev.Type != eventbus.TypeConfigReload {
			t.Fatalf("event type = %q", ev.Type)
		}
		changed, _ := ev.Data.([]string)
		if strings.Join(changed, ",") == "" {
			t.Fatalf("no changed sections in %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no reload event")
	}

	// Unchanged config publishes nothing.
	a.apply(&next, &next)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCycleStatus(t *testing.T) {
	t.Parallel()
	fin := time.Date(2024, 1, 1, 2, 0, 0, 0, time.Local)
	tests := []struct {
		rep  engine.Report
		want string
	}{
		{engine.Report{Finished: fin, Fresh: 3, Presented: 3}, "last poll 02:00:00: 3 new, 3 shown"},
		{engine.Report{Finished: fin, Fresh: 2, Presented: 1, Failed: 1}, "last poll 02:00:00: 2 new, 1 shown, 1 failed"},
		{engine.Report{Finished: fin, FetchErr: "401"}, "fetch failed at 02:00:00: 401"},
	}
	for _, tt := range tests {
		if got := cycleStatus(tt.rep); got != tt.want {
			t.Fatalf("cycleStatus = %q, want %q", got, tt.want)
		}
	}
}

func TestMapPresenterReadsTokenFromEnv(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	cfg.Presenter.Driver = "telegram"
	cfg.Presenter.Telegram = config.TelegramConfig{TokenEnv: "BOT_TOKEN", ChatID: 99}
	r, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	env := map[string]string{"BOT_TOKEN": " abc "}
	pc := mapPresenter(cfg, r, func(k string) string { return env[k] })
	if pc.Telegram.Token != "abc" || pc.Telegram.ChatID != 99 {
		t.Fatalf("telegram config = %+v", pc.Telegram)
	}

	cfg.Presenter.Driver = "log"
	pc = mapPresenter(cfg, r, func(k string) string { return env[k] })
	if pc.Telegram.Token != "" {
		t.Fatal("token read for a non-telegram driver")
	}
}

func TestMapEngine(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	cfg.Poll.Schedule = "*/2 * * * *"
	cfg.Dispatch.MaxConcurrency = 3
	cfg.Dispatch.AwaitAction = true
	cfg.Dispatch.ActionTimeout = "1m"
	cfg.Watermark.OnMissing = "replay"
	r, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ec := mapEngine(cfg, r)
	if ec.MaxConcurrency != 3 || !ec.AwaitAction || ec.ActionTimeout != time.Minute {
		t.Fatalf("dispatch mapping = %+v", ec)
	}
	if ec.OnMissing != storage.PolicyReplay || ec.Schedule.Cron != "*/2 * * * *" {
		t.Fatalf("schedule mapping = %+v", ec)
	}
}

func TestOpenPresenterKeepsConfigErrors(t *testing.T) {
	t.Parallel()
	cfg := mapPresenter(config.Defaults(), config.Resolved{}, func(string) string { return "" })
	cfg.Driver = "carrier-pigeon"
	if _, err := openPresenter(cfg, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
