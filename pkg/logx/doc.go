// Package logx is the structured logging layer of deadlinebot.
//
// Logger wraps zerolog with a small field-func API:
//   - console output stays human readable (short timestamp, file:line caller)
//   - the file sink writes JSON lines
//   - an optional Telegram sink forwards WARN+ records to an ops chat, rate limited
package logx
