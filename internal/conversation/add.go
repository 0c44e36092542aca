package conversation

import (
	"context"
	"errors"
	"fmt"

	"deadlinebot/internal/action"
	"deadlinebot/internal/deadline"
	"deadlinebot/internal/storage"
	"deadlinebot/pkg/logx"
)

const maxIDAttempts = 5

// addFlow: NAME -> DATE -> REPEAT.
type addFlow struct{}

var addPicker = datePicker{scope: action.ScopeAdd}

func (addFlow) kind() Flow         { return FlowAdd }
func (addFlow) scope() string      { return action.ScopeAdd }
func (addFlow) cancelText() string { return textAddCancelled }

func (f addFlow) enter(ctx context.Context, e *Engine, ev event) (bool, error) {
	switch {
	case ev.command() == "add", ev.isText() && ev.text == BtnAdd:
	case ev.is(action.MenuAdd):
	default:
		return false, nil
	}
	e.sessions.Put(Session{Chat: ev.chat, Flow: FlowAdd, State: StateAddName})
	e.observe(FlowAdd, "enter")
	// The prompt always goes out as a new message, also from the menu button.
	return true, e.send(ctx, ev, textAskName, cancelKeyboard(action.ScopeAdd))
}

func (f addFlow) step(ctx context.Context, e *Engine, s Session, ev event) (bool, error) {
	switch s.State {
	case StateAddName:
		name, ok := ev.plainText()
		if !ok {
			return false, nil
		}
		if name == "" {
			e.observe(FlowAdd, "invalid")
			return true, e.reply(ctx, ev, textAskName, cancelKeyboard(action.ScopeAdd))
		}
		s.Name = name
		s.State = StateAddDate
		e.sessions.Put(s)
		return true, e.reply(ctx, ev, textAskDate, addPicker.current(e).Keyboard())

	case StateAddDate:
		d, ok, consumed, err := addPicker.step(ctx, e, ev)
		if !ok {
			return consumed, err
		}
		s.Due = d
		s.State = StateAddRepeat
		e.sessions.Put(s)
		return true, e.reply(ctx, ev, textAskRepeat, repeatKeyboard())

	case StateAddRepeat:
		if !ev.is(action.Repeat) {
			return false, nil
		}
		return true, f.finish(ctx, e, s, ev)
	}
	return false, nil
}

func (addFlow) finish(ctx context.Context, e *Engine, s Session, ev event) error {
	d := deadline.Deadline{
		Owner:      ev.owner,
		Name:       s.Name,
		Due:        s.Due.String(),
		Recurrence: ev.act.Repeat,
	}
	var err error
	for i := 0; i < maxIDAttempts; i++ {
		d.ID = e.newID()
		if err = e.st.AddDeadline(ctx, d); !errors.Is(err, storage.ErrDuplicateID) {
			break
		}
		ev.log.Debug("deadline id collision, retrying", logx.String("id", d.ID))
	}
	if err != nil {
		return fmt.Errorf("add deadline: %w", err)
	}
	e.sessions.Clear(ev.chat, FlowAdd)
	e.observe(FlowAdd, "done")
	ev.log.Info("deadline added", logx.String("id", d.ID), logx.String("repeat", string(d.Recurrence)))

	text := "Дедлайн добавлен!\n\n" + deadline.Summary(d, s.Due, e.today())
	return e.reply(ctx, ev, text, inline(rowList, rowAddMore, rowMenu))
}
