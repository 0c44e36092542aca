package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"deadlinebot/pkg/logx"
)

// Validate reports every problem found in cfg, joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, fmt.Errorf("telegram.token is empty (set it or %s_TELEGRAM_TOKEN)", EnvPrefix))
	}
	if cfg.Telegram.SendRatePerSec < 0 {
		errs = append(errs, errors.New("telegram.send_rate_per_sec must be >= 0"))
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if !logx.ValidLevel(cfg.Logging.Telegram.MinLevel) {
		errs = append(errs, fmt.Errorf("logging.telegram.min_level: unknown level %q", cfg.Logging.Telegram.MinLevel))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path is required when the file sink is enabled"))
	}
	if cfg.Logging.Telegram.Enabled && cfg.Telegram.OpsChatID == 0 {
		errs = append(errs, errors.New("logging.telegram requires telegram.ops_chat_id"))
	}

	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory", "mem":
	case "", "sqlite", "sqlite3", "file":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", cfg.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if _, err := cfg.Reminders.Location(); err != nil {
		errs = append(errs, fmt.Errorf("reminders.timezone: %w", err))
	}

	durations := []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"reminders.fire_timeout", cfg.Reminders.FireTimeout},
		{"conversation.session_ttl", cfg.Conversation.SessionTTL},
		{"dispatcher.handler_timeout", cfg.Dispatcher.HandlerTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if ttl := cfg.Conversation.SessionTTLDuration(); ttl > 0 && ttl < time.Minute {
		errs = append(errs, errors.New("conversation.session_ttl must be 0 or at least 1m"))
	}
	if cfg.Dispatcher.Workers < 0 || cfg.Dispatcher.QueueSize < 0 || cfg.Dispatcher.DedupSize < 0 {
		errs = append(errs, errors.New("dispatcher sizes must be >= 0"))
	}
	return errors.Join(errs...)
}
