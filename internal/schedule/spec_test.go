package schedule

import (
	"testing"
	"time"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: KindCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: KindCron, source: "cron"},
		{name: "descriptor", raw: "@every 45s", kind: KindCron, source: "cron"},
		{name: "duration", raw: "30s", kind: KindInterval, source: "duration", duration: 30 * time.Second},
		{name: "prefixed interval", raw: "interval:2m", kind: KindInterval, source: "duration", duration: 2 * time.Minute},
		{name: "every prefix", raw: "every:00:05", kind: KindInterval, source: "hhmm", duration: 5 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: KindInterval, source: "hhmm", duration: 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == KindInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "-5s", "0s", "00:61", "cron:", "61 * * * *", "0 0 30 2 *", "cron:0 0 31 4 *"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q): expected error", raw)
		}
	}
}

func TestNextInterval(t *testing.T) {
	t.Parallel()
	sp := MustParse("30s")
	finished := time.Date(2024, 1, 1, 0, 0, 4, 0, time.UTC)
	if got, want := sp.Next(finished), finished.Add(30*time.Second); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
	if d := sp.Delay(finished); d != 30*time.Second {
		t.Fatalf("Delay = %v", d)
	}
}

func TestParseAcceptsRareCron(t *testing.T) {
	t.Parallel()
	sp, err := Parse("0 0 29 2 *")
	if err != nil {
		t.Fatalf("leap-day cron rejected: %v", err)
	}
	if d := sp.Delay(time.Now()); d <= 0 {
		t.Fatalf("Delay = %v, want a future activation", d)
	}
}

func TestNextCron(t *testing.T) {
	t.Parallel()
	sp := MustParse("*/5 * * * *")
	finished := time.Date(2024, 1, 1, 10, 2, 30, 0, time.UTC)
	want := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	if got := sp.Next(finished); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	base := 30 * time.Second
	tests := []struct {
		failures int
		max      time.Duration
		want     time.Duration
	}{
		{0, 10 * time.Minute, base},
		{1, 10 * time.Minute, base},
		{2, 10 * time.Minute, time.Minute},
		{3, 10 * time.Minute, 2 * time.Minute},
		{10, 10 * time.Minute, 10 * time.Minute},
		{5, 0, base},
		{1, 10 * time.Second, base},
		{4, base, base},
	}
	for _, tt := range tests {
		if got := Backoff(base, tt.failures, tt.max); got != tt.want {
			t.Fatalf("Backoff(%v, %d, %v) = %v, want %v", base, tt.failures, tt.max, got, tt.want)
		}
	}
}
