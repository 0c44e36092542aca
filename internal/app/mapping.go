package app

import (
	"time"

	"deadlinebot/internal/config"
	"deadlinebot/internal/conversation"
	"deadlinebot/internal/observability"
	"deadlinebot/internal/reminder"
	"deadlinebot/internal/storage"
	telegram "deadlinebot/internal/transport/telegram/adapter"
	"deadlinebot/internal/transport/telegram/router"
	"deadlinebot/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     cfg.Telegram.OpsChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func adapterConfig(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    cfg.Telegram.PollTimeoutDuration(),
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeoutDuration(),
	}
}

func reminderConfig(cfg *config.Config, loc *time.Location) reminder.Config {
	return reminder.Config{Location: loc, FireTimeout: cfg.Reminders.FireTimeoutDuration()}
}

func conversationConfig(cfg *config.Config, loc *time.Location) conversation.Config {
	return conversation.Config{Location: loc, SessionTTL: cfg.Conversation.SessionTTLDuration()}
}

func dispatcherConfig(cfg *config.Config) router.Config {
	d := cfg.Dispatcher
	return router.Config{
		Workers:        d.Workers,
		QueueSize:      d.QueueSize,
		HandlerTimeout: d.HandlerTimeoutDuration(),
		DedupSize:      d.DedupSize,
	}
}

func serverConfig(cfg *config.Config) observability.ServerConfig {
	o := cfg.Observability
	return observability.ServerConfig{Enabled: o.Enabled, Addr: o.Addr, Token: o.Token, Pprof: o.Pprof}
}
