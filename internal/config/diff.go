package config

import (
	"strings"

	"deadlinebot/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// returns log fields describing the new values. Secrets are reported only
// as set or unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)
	o, n := oldCfg, newCfg

	if o.Telegram.Token != n.Telegram.Token ||
		strings.TrimSpace(o.Telegram.PollTimeout) != strings.TrimSpace(n.Telegram.PollTimeout) ||
		o.Telegram.OpsChatID != n.Telegram.OpsChatID ||
		o.Telegram.SendRatePerSec != n.Telegram.SendRatePerSec {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", o.Telegram.Token != n.Telegram.Token),
			logx.String("telegram.poll_timeout", n.Telegram.PollTimeout),
			logx.Bool("telegram.ops_chat_set", n.Telegram.OpsChatID != 0),
			logx.Int("telegram.send_rate_per_sec", n.Telegram.SendRatePerSec),
		)
	}
	if o.Logging != n.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", n.Logging.Level),
			logx.Bool("logging.console", n.Logging.Console),
			logx.Bool("logging.file_enabled", n.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", n.Logging.Telegram.Enabled),
		)
	}
	if o.Storage != n.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", n.Storage.Driver),
			logx.String("storage.path", n.Storage.Path),
		)
	}
	if o.Reminders != n.Reminders {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.String("reminders.timezone", n.Reminders.Timezone),
			logx.String("reminders.fire_timeout", n.Reminders.FireTimeout),
		)
	}
	if o.Conversation != n.Conversation {
		changed = append(changed, "conversation")
		attrs = append(attrs, logx.String("conversation.session_ttl", n.Conversation.SessionTTL))
	}
	if o.Dispatcher != n.Dispatcher {
		changed = append(changed, "dispatcher")
		attrs = append(attrs,
			logx.Int("dispatcher.workers", n.Dispatcher.Workers),
			logx.Int("dispatcher.queue_size", n.Dispatcher.QueueSize),
			logx.String("dispatcher.handler_timeout", n.Dispatcher.HandlerTimeout),
		)
	}
	if o.Observability != n.Observability {
		changed = append(changed, "observability")
		attrs = append(attrs,
			logx.Bool("observability.enabled", n.Observability.Enabled),
			logx.String("observability.addr", n.Observability.Addr),
			logx.Bool("observability.token_set", n.Observability.Token != ""),
			logx.Bool("observability.pprof", n.Observability.Pprof),
		)
	}
	return changed, attrs
}

// RestartRequired names the changed settings that only take effect after a
// restart.
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token {
		out = append(out, "telegram.token")
	}
	if oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout || oldCfg.Telegram.SendRatePerSec != newCfg.Telegram.SendRatePerSec {
		out = append(out, "telegram.poll")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	if oldCfg.Reminders.Timezone != newCfg.Reminders.Timezone {
		out = append(out, "reminders.timezone")
	}
	if oldCfg.Dispatcher.Workers != newCfg.Dispatcher.Workers ||
		oldCfg.Dispatcher.QueueSize != newCfg.Dispatcher.QueueSize ||
		oldCfg.Dispatcher.DedupSize != newCfg.Dispatcher.DedupSize {
		out = append(out, "dispatcher.pool")
	}
	return out
}
