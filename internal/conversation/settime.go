package conversation

import (
	"context"
	"fmt"

	"deadlinebot/internal/action"
	"deadlinebot/internal/deadline"
	"deadlinebot/pkg/logx"
)

// setTimeFlow: SET_TIME.
type setTimeFlow struct{}

func (setTimeFlow) kind() Flow         { return FlowSetTime }
func (setTimeFlow) scope() string      { return action.ScopeSetTime }
func (setTimeFlow) cancelText() string { return textTimeCancelled }

func (setTimeFlow) enter(ctx context.Context, e *Engine, ev event) (bool, error) {
	if !ev.isText() || ev.text != BtnSettings {
		return false, nil
	}
	cur, err := e.st.ReminderTime(ctx, ev.owner)
	if err != nil {
		return true, fmt.Errorf("reminder time: %w", err)
	}
	e.sessions.Put(Session{Chat: ev.chat, Flow: FlowSetTime, State: StateSetTime})
	e.observe(FlowSetTime, "enter")
	text := fmt.Sprintf("Текущее время напоминания: %s\n\nВведи новое время в формате ЧЧ:ММ\nНапример: 09:00 или 21:30", cur)
	return true, e.reply(ctx, ev, text, cancelKeyboard(action.ScopeSetTime))
}

func (setTimeFlow) step(ctx context.Context, e *Engine, s Session, ev event) (bool, error) {
	text, ok := ev.plainText()
	if !ok {
		return false, nil
	}
	at, err := deadline.ParseReminderTime(text)
	if err != nil {
		e.observe(FlowSetTime, "invalid")
		ev.log.Debug("time rejected", logx.String("input", text))
		return true, e.reply(ctx, ev, textBadTime, nil)
	}
	if err := e.st.SetReminderTime(ctx, ev.owner, at); err != nil {
		return true, fmt.Errorf("set reminder time: %w", err)
	}
	if e.sched != nil {
		if err := e.sched.Schedule(ev.owner, at); err != nil {
			return true, fmt.Errorf("reschedule: %w", err)
		}
	}
	e.sessions.Clear(ev.chat, FlowSetTime)
	e.observe(FlowSetTime, "done")
	ev.log.Info("reminder time set", logx.String("at", at.String()))
	reply := fmt.Sprintf("Время напоминания установлено: %s\n\nКаждый день в это время я напомню о ближайших дедлайнах.", at)
	return true, e.reply(ctx, ev, reply, inline(rowMenu))
}
