package config

import (
	"strings"

	"ghnotifier/pkg/logx"
)

// SummarizeChange lists the changed sections and safe attributes for logging.
// It never logs secrets; the Telegram token is not part of Config anyway.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		attrs = append(attrs,
			logx.String("poll.schedule", strings.TrimSpace(newCfg.Poll.Schedule)),
			logx.String("poll.error_backoff_max", newCfg.Poll.ErrorBackoffMax),
		)
	}
	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.Int("dispatch.max_concurrency", newCfg.Dispatch.MaxConcurrency),
			logx.Bool("dispatch.await_action", newCfg.Dispatch.AwaitAction),
			logx.String("dispatch.action_timeout", newCfg.Dispatch.ActionTimeout),
		)
	}
	for _, s := range []struct {
		name string
		diff bool
	}{
		{"feed", oldCfg.Feed != newCfg.Feed},
		{"watermark", oldCfg.Watermark != newCfg.Watermark},
		{"storage", oldCfg.Storage != newCfg.Storage},
		{"presenter", oldCfg.Presenter != newCfg.Presenter},
		{"opener", oldCfg.Opener != newCfg.Opener},
		{"status", oldCfg.Status != newCfg.Status},
	} {
		if s.diff {
			changed = append(changed, s.name)
		}
	}
	return changed, attrs
}

// RequiresRestart reports the changed sections that only take effect on restart.
func RequiresRestart(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "logging", "poll", "dispatch":
		default:
			out = append(out, s)
		}
	}
	return out
}
