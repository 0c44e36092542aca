package tgui

import (
	tele "gopkg.in/telebot.v4"

	kit "deadlinebot/internal/transport"
)

// Inline is a small builder for inline keyboards.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a row of buttons.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Markup returns the underlying reply markup.
func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Btn creates a callback button with raw callback data.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: TruncRunes(text, MaxButtonTextRunes), Data: data}
}

// Reply builds a resized, persistent reply keyboard from label rows.
func Reply(rows [][]string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{ResizeKeyboard: true, IsPersistent: true}
	out := make([]tele.Row, 0, len(rows))
	for _, r := range rows {
		btns := make([]tele.Btn, 0, len(r))
		for _, label := range r {
			btns = append(btns, tele.Btn{Text: label})
		}
		out = append(out, rm.Row(btns...))
	}
	rm.Reply(out...)
	return rm
}

// Markup converts a transport keyboard to telebot markup. It returns nil for
// an empty keyboard. Inline rows win when both kinds are set, since Telegram
// accepts only one markup per message.
func Markup(kb *kit.Keyboard) *tele.ReplyMarkup {
	if kb.Empty() {
		return nil
	}
	if len(kb.Inline) == 0 {
		return Reply(kb.Reply)
	}
	in := NewInline()
	for _, row := range kb.Inline {
		btns := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			btns = append(btns, Btn(b.Text, b.Data))
		}
		in.Row(btns...)
	}
	return in.Markup()
}
