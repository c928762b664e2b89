package presenter

import (
	"context"
	"time"

	"ghnotifier/internal/feed"
	"ghnotifier/pkg/logx"
)

// Log writes items to the log. It never reports an action.
type Log struct {
	appName string
	log     logx.Logger
	now     func() time.Time
}

func NewLog(appName string, log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{appName: appName, log: log, now: time.Now}
}

func (l *Log) Present(ctx context.Context, it feed.Item) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := Format(l.appName, it, l.now())
	l.log.Info("notification",
		logx.String("summary", m.Summary),
		logx.String("body", m.Body),
		logx.String("item_id", it.ID),
	)
	return NoAction(), nil
}

func (l *Log) Close() error { return nil }
