package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"ghnotifier/pkg/logx"
)

// Policy decides the starting watermark when none is persisted.
type Policy string

const (
	// PolicyNow starts at the current time: history is skipped on first run.
	PolicyNow Policy = "now"
	// PolicyReplay starts at the zero time: everything in the feed is presented once.
	PolicyReplay Policy = "replay"
)

// ParsePolicy accepts "now" or "replay" (case-insensitive). Empty means now.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyNow):
		return PolicyNow, nil
	case string(PolicyReplay):
		return PolicyReplay, nil
	default:
		return "", errors.New("unknown watermark policy: " + s)
	}
}

// ReadWatermark loads the persisted watermark and never fails: a missing or
// unreadable value falls back to the policy's starting point.
func ReadWatermark(ctx context.Context, st Store, policy Policy, now func() time.Time, log logx.Logger) time.Time {
	if now == nil {
		now = time.Now
	}
	fallback := func() time.Time {
		if policy == PolicyReplay {
			return time.Time{}
		}
		return now()
	}

	if st == nil {
		return fallback()
	}
	t, err := st.LoadWatermark(ctx)
	switch {
	case err == nil:
		return t
	case errors.Is(err, ErrNoWatermark):
		log.Info("no watermark persisted; starting fresh", logx.String("policy", string(policy)))
	default:
		log.Warn("watermark unreadable; starting fresh", logx.Err(err), logx.String("policy", string(policy)))
	}
	return fallback()
}
