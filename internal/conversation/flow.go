package conversation

import (
	"context"

	"deadlinebot/internal/action"
	"deadlinebot/internal/calendar"
	"deadlinebot/internal/deadline"
	"deadlinebot/pkg/logx"
)

// flow is one guided conversation. enter is consulted only when the chat has
// no session of this flow; step only when it has one. Both report whether
// the update was consumed.
type flow interface {
	kind() Flow
	scope() string
	cancelText() string
	enter(ctx context.Context, e *Engine, ev event) (bool, error)
	step(ctx context.Context, e *Engine, s Session, ev event) (bool, error)
}

// datePicker is the calendar sub-machine shared by every flow that asks for
// a date. Navigation and padding clicks keep the state; a pick or valid text
// yields the date.
type datePicker struct {
	scope string
}

// step returns ok when a date was chosen. consumed is false for updates the
// picker does not understand.
func (p datePicker) step(ctx context.Context, e *Engine, ev event) (d deadline.Date, ok, consumed bool, err error) {
	if ev.isCallback() {
		switch ev.act.Kind {
		case action.CalendarNav:
			g := calendar.Render(ev.act.Year, ev.act.Month, action.CancelAction(p.scope))
			return deadline.Date{}, false, true, e.editKeyboard(ctx, ev, g.Keyboard())
		case action.Noop:
			return deadline.Date{}, false, true, nil
		case action.CalendarPick:
			return ev.act.Date, true, true, nil
		}
		return deadline.Date{}, false, false, nil
	}
	text, isText := ev.plainText()
	if !isText {
		return deadline.Date{}, false, false, nil
	}
	d, perr := deadline.ParseDate(text)
	if perr != nil {
		ev.log.Debug("date rejected", logx.String("input", text))
		return deadline.Date{}, false, true, e.reply(ctx, ev, textBadDate, nil)
	}
	return d, true, true, nil
}

// current renders the picker opened on today's month.
func (p datePicker) current(e *Engine) calendar.Grid {
	t := e.today()
	return calendar.Render(t.Year, t.Month, action.CancelAction(p.scope))
}
