package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("500ms", "30s", "1m"); Resolve turns them into typed values.
//
// Every key is optional: a missing key keeps its value from Defaults.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Poll      PollConfig      `json:"poll"`
	Feed      FeedConfig      `json:"feed"`
	Watermark WatermarkConfig `json:"watermark"`
	Storage   StorageConfig   `json:"storage"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Presenter PresenterConfig `json:"presenter"`
	Opener    OpenerConfig    `json:"opener"`
	Status    StatusConfig    `json:"status"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type PollConfig struct {
	// Schedule is an interval ("30s", "00:05") or a cron expression ("*/2 * * * *").
	Schedule string `json:"schedule"`
	// ErrorBackoffMax caps the exponential delay after consecutive fetch failures.
	// "0s" keeps the normal cadence.
	ErrorBackoffMax string `json:"error_backoff_max"`
}

type FeedConfig struct {
	APIURL        string `json:"api_url"`
	Timeout       string `json:"timeout"`
	MaxPages      int    `json:"max_pages"`
	PerPage       int    `json:"per_page"`
	Participating bool   `json:"participating"`
	All           bool   `json:"all"`
	RatePerSec    int    `json:"rate_per_sec"`
	UserAgent     string `json:"user_agent"`
}

type WatermarkConfig struct {
	// OnMissing is "now" (skip history on first run) or "replay".
	OnMissing string `json:"on_missing"`
}

type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout"`
}

type DispatchConfig struct {
	MaxConcurrency int    `json:"max_concurrency"`
	AwaitAction    bool   `json:"await_action"`
	ActionTimeout  string `json:"action_timeout"`
	DrainTimeout   string `json:"drain_timeout"`
}

type PresenterConfig struct {
	Driver   string         `json:"driver"`
	AppName  string         `json:"app_name"`
	Expire   string         `json:"expire"`
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig never holds the bot token itself, only the variable it is read from.
type TelegramConfig struct {
	TokenEnv string `json:"token_env"`
	ChatID   int64  `json:"chat_id"`
}

type OpenerConfig struct {
	Command string `json:"command"`
	Timeout string `json:"timeout"`
}

type StatusConfig struct {
	// Addr enables the status API when set. Prefer a loopback address.
	Addr string `json:"addr"`
	// Pprof mounts the runtime profiler under /debug/pprof on the same listener.
	Pprof bool `json:"pprof"`
}

// Defaults returns a fully populated configuration.
func Defaults() *Config {
	c := &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Poll:    PollConfig{Schedule: "30s", ErrorBackoffMax: "0s"},
		Feed: FeedConfig{
			APIURL:     "https://api.github.com",
			Timeout:    "30s",
			MaxPages:   10,
			PerPage:    50,
			RatePerSec: 5,
			UserAgent:  "gh-notifier",
		},
		Watermark: WatermarkConfig{OnMissing: "now"},
		Storage:   StorageConfig{Driver: "file", BusyTimeout: "1s"},
		Dispatch:  DispatchConfig{ActionTimeout: "0s", DrainTimeout: "5s"},
		Presenter: PresenterConfig{
			Driver:   "desktop",
			AppName:  "GitHub",
			Expire:   "0s",
			Telegram: TelegramConfig{TokenEnv: "TELEGRAM_TOKEN"},
		},
		Opener: OpenerConfig{Timeout: "10s"},
	}
	return c
}
