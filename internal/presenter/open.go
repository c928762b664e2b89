package presenter

import (
	"errors"
	"strings"
	"time"

	"ghnotifier/pkg/logx"
)

type Config struct {
	Driver   string // desktop | telegram | log
	AppName  string
	Expire   time.Duration
	Telegram TelegramConfig
}

// Open builds the configured driver.
func Open(cfg Config, log logx.Logger) (Driver, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	appName := strings.TrimSpace(cfg.AppName)
	if appName == "" {
		appName = DefaultAppName
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "desktop":
		return NewDesktop(DesktopConfig{AppName: appName, Expire: cfg.Expire}, log)
	case "telegram":
		tc := cfg.Telegram
		tc.AppName = appName
		return NewTelegram(tc, log)
	case "log":
		return NewLog(appName, log), nil
	default:
		return nil, errors.New("unknown presenter driver: " + driver)
	}
}
