package config

import (
	"encoding/json"
	"time"
)

// Config is the on-disk configuration. Durations are Go duration strings
// ("500ms", "10s", "1m") and are resolved through the accessor methods.
type Config struct {
	Telegram      TelegramConfig      `json:"telegram"`
	Logging       LoggingConfig       `json:"logging"`
	Storage       StorageConfig       `json:"storage"`
	Reminders     RemindersConfig     `json:"reminders"`
	Conversation  ConversationConfig  `json:"conversation"`
	Dispatcher    DispatcherConfig    `json:"dispatcher"`
	Observability ObservabilityConfig `json:"observability"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout"`

	// OpsChatID receives log records when logging.telegram is enabled.
	OpsChatID      int64 `json:"ops_chat_id,omitempty"`
	SendRatePerSec int   `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level    string         `json:"level"`
	Console  bool           `json:"console"`
	File     LogFileConfig  `json:"file"`
	Telegram LogTelegramConfig `json:"telegram"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the deadline store. Driver is one of "sqlite",
// "file" or "memory".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type RemindersConfig struct {
	// Timezone is an IANA name; empty means the host's local zone.
	Timezone    string `json:"timezone,omitempty"`
	FireTimeout string `json:"fire_timeout,omitempty"`
}

type ConversationConfig struct {
	// SessionTTL expires idle dialogs; "0s" keeps them until finished.
	SessionTTL string `json:"session_ttl,omitempty"`
}

type DispatcherConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	HandlerTimeout string `json:"handler_timeout,omitempty"`
	DedupSize      int    `json:"dedup_size,omitempty"`
}

type ObservabilityConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}

const (
	DefaultPollTimeout    = 10 * time.Second
	DefaultSendRate       = 25
	DefaultStorageDriver  = "sqlite"
	DefaultStoragePath    = "./data/deadlines.db"
	DefaultBusyTimeout    = 5 * time.Second
	DefaultFireTimeout    = 30 * time.Second
	DefaultHandlerTimeout = 15 * time.Second
)

// Default returns the configuration used for omitted fields.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{PollTimeout: DefaultPollTimeout.String(), SendRatePerSec: DefaultSendRate},
		Logging:  LoggingConfig{Level: "info", Console: true},
		Storage:  StorageConfig{Driver: DefaultStorageDriver, Path: DefaultStoragePath, BusyTimeout: DefaultBusyTimeout.String()},
		Reminders: RemindersConfig{
			FireTimeout: DefaultFireTimeout.String(),
		},
		Conversation: ConversationConfig{SessionTTL: "0s"},
		Dispatcher:   DispatcherConfig{QueueSize: 64, HandlerTimeout: DefaultHandlerTimeout.String(), DedupSize: 1024},
		Observability: ObservabilityConfig{
			Addr: "127.0.0.1:9090",
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		cp := *c
		return &cp
	}
	var out Config
	if err := json.Unmarshal(b, &out); err != nil {
		cp := *c
		return &cp
	}
	return &out
}

func (t TelegramConfig) PollTimeoutDuration() time.Duration {
	d, _ := ParseDurationOrDefault("telegram.poll_timeout", t.PollTimeout, DefaultPollTimeout)
	return d
}

func (s StorageConfig) BusyTimeoutDuration() time.Duration {
	d, _ := ParseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, DefaultBusyTimeout)
	return d
}

func (r RemindersConfig) FireTimeoutDuration() time.Duration {
	d, _ := ParseDurationOrDefault("reminders.fire_timeout", r.FireTimeout, DefaultFireTimeout)
	return d
}

// Location resolves Timezone, falling back to time.Local.
func (r RemindersConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(r.Timezone)
}

func (c ConversationConfig) SessionTTLDuration() time.Duration {
	d, _ := ParseDurationField("conversation.session_ttl", c.SessionTTL)
	return d
}

func (d DispatcherConfig) HandlerTimeoutDuration() time.Duration {
	v, _ := ParseDurationOrDefault("dispatcher.handler_timeout", d.HandlerTimeout, DefaultHandlerTimeout)
	return v
}
