// Package schedule turns a poll cadence string into activation times.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind describes the normalized kind of a schedule string.
type Kind int

const (
	KindInterval Kind = iota
	KindCron
)

func (k Kind) String() string {
	if k == KindCron {
		return "cron"
	}
	return "interval"
}

// Spec represents a parsed schedule string.
//
// Supported forms:
//   - Interval duration: "30s", "2m30s"
//   - Interval HH:MM: "00:05" (5 minutes)
//   - Cron: "*/2 * * * *", "@hourly", "@every 45s"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type Spec struct {
	Kind   Kind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
	Raw    string

	sched cron.Schedule
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse parses a schedule string into either a cron expression or a fixed interval.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(raw, strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(raw, s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseInterval(raw, s[len("every:"):])
	}

	// whitespace or a leading '@' means cron
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(raw, s)
	}
	if sp, err := parseInterval(raw, s); err == nil {
		return sp, nil
	}
	return Spec{}, fmt.Errorf(
		"invalid schedule %q (use a duration like '30s', HH:MM like '00:05', or cron like '*/2 * * * *')",
		raw,
	)
}

// MustParse is Parse for constants.
func MustParse(raw string) Spec {
	sp, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return sp
}

func parseCron(raw, expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron schedule required after 'cron:'")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	if sched.Next(time.Now()).IsZero() {
		return Spec{}, fmt.Errorf("cron %q never fires", expr)
	}
	return Spec{Kind: KindCron, Cron: expr, Source: "cron", Raw: raw, sched: sched}, nil
}

func parseInterval(raw, v string) (Spec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindInterval, Every: d, Source: "hhmm", Raw: raw}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid interval %q (use HH:MM or a Go duration like '30s')", v)
	}
	if d <= 0 {
		return Spec{}, fmt.Errorf("interval must be > 0")
	}
	return Spec{Kind: KindInterval, Every: d, Source: "duration", Raw: raw}, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// Next returns the activation following a cycle that finished at finished.
// Intervals are measured from the end of the previous cycle; cron
// activations are wall-clock aligned.
func (s Spec) Next(finished time.Time) time.Time {
	switch s.Kind {
	case KindCron:
		if s.sched == nil {
			return finished
		}
		return s.sched.Next(finished)
	default:
		return finished.Add(s.Every)
	}
}

// Delay is Next relative to finished, never negative.
func (s Spec) Delay(finished time.Time) time.Duration {
	d := s.Next(finished).Sub(finished)
	if d < 0 {
		return 0
	}
	return d
}

func (s Spec) String() string {
	if s.Kind == KindCron {
		return "cron(" + s.Cron + ")"
	}
	return "every " + s.Every.String()
}
