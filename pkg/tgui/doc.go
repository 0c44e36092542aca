// Package tgui holds small Telegram UI helpers:
//   - callback data in the "group:op:payload" format
//   - inline and reply keyboard builders on top of telebot
//   - rune-safe truncation for button labels
package tgui
