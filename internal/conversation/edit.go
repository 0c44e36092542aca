package conversation

import (
	"context"
	"fmt"

	"deadlinebot/internal/action"
	"deadlinebot/internal/deadline"
	"deadlinebot/pkg/logx"
)

var editPicker = datePicker{scope: action.ScopeEdit}

// humanDue formats a stored date, falling back to the raw text.
func humanDue(raw string) string {
	if d, err := deadline.ParseDate(raw); err == nil {
		return deadline.Human(d)
	}
	return raw
}

// enterEdit resolves the target of an edit action. ok is false when the
// record is gone; the not-found reply has been sent by then.
func enterEdit(ctx context.Context, e *Engine, ev event, f Flow) (deadline.Deadline, bool, error) {
	d, ok, err := e.st.GetDeadline(ctx, ev.act.ID, ev.owner)
	if err != nil {
		return deadline.Deadline{}, false, fmt.Errorf("get deadline: %w", err)
	}
	if !ok {
		e.observe(f, "not_found")
		return deadline.Deadline{}, false, e.reply(ctx, ev, textNotFound, nil)
	}
	return d, true, nil
}

// editDateFlow: EDIT_DATE.
type editDateFlow struct{}

func (editDateFlow) kind() Flow         { return FlowEditDate }
func (editDateFlow) scope() string      { return action.ScopeEdit }
func (editDateFlow) cancelText() string { return textEditCancelled }

func (editDateFlow) enter(ctx context.Context, e *Engine, ev event) (bool, error) {
	if !ev.is(action.EditDate) {
		return false, nil
	}
	d, ok, err := enterEdit(ctx, e, ev, FlowEditDate)
	if !ok {
		return true, err
	}
	e.sessions.Put(Session{Chat: ev.chat, Flow: FlowEditDate, State: StateEditDate, TargetID: d.ID})
	e.observe(FlowEditDate, "enter")
	text := fmt.Sprintf("Изменение даты для: %s\nТекущая дата: %s\n\nВыбери новую дату или введи вручную (ДД.ММ.ГГГГ):",
		d.Name, humanDue(d.Due))
	return true, e.reply(ctx, ev, text, editPicker.current(e).Keyboard())
}

func (editDateFlow) step(ctx context.Context, e *Engine, s Session, ev event) (bool, error) {
	due, ok, consumed, err := editPicker.step(ctx, e, ev)
	if !ok {
		return consumed, err
	}
	name, found, err := e.st.UpdateDate(ctx, s.TargetID, ev.owner, due.String())
	if err != nil {
		return true, fmt.Errorf("update date: %w", err)
	}
	e.sessions.Clear(ev.chat, FlowEditDate)
	if !found {
		e.observe(FlowEditDate, "not_found")
		return true, e.reply(ctx, ev, textNotFound, nil)
	}
	e.observe(FlowEditDate, "done")
	ev.log.Info("deadline date updated", logx.String("id", s.TargetID), logx.String("due", due.String()))
	text := fmt.Sprintf("Дата обновлена!\n\n%s — %s", name, deadline.Human(due))
	return true, e.reply(ctx, ev, text, inline(rowList, rowMenu))
}

// editNameFlow: EDIT_NAME.
type editNameFlow struct{}

func (editNameFlow) kind() Flow         { return FlowEditName }
func (editNameFlow) scope() string      { return action.ScopeEdit }
func (editNameFlow) cancelText() string { return textEditCancelled }

func (editNameFlow) enter(ctx context.Context, e *Engine, ev event) (bool, error) {
	if !ev.is(action.EditName) {
		return false, nil
	}
	d, ok, err := enterEdit(ctx, e, ev, FlowEditName)
	if !ok {
		return true, err
	}
	e.sessions.Put(Session{Chat: ev.chat, Flow: FlowEditName, State: StateEditName, TargetID: d.ID})
	e.observe(FlowEditName, "enter")
	text := fmt.Sprintf("Текущее название: %s\n\n%s", d.Name, textAskNewName)
	return true, e.reply(ctx, ev, text, cancelKeyboard(action.ScopeEdit))
}

func (editNameFlow) step(ctx context.Context, e *Engine, s Session, ev event) (bool, error) {
	name, ok := ev.plainText()
	if !ok {
		return false, nil
	}
	if name == "" {
		e.observe(FlowEditName, "invalid")
		return true, e.reply(ctx, ev, textAskNewName, cancelKeyboard(action.ScopeEdit))
	}
	old, found, err := e.st.UpdateName(ctx, s.TargetID, ev.owner, name)
	if err != nil {
		return true, fmt.Errorf("update name: %w", err)
	}
	e.sessions.Clear(ev.chat, FlowEditName)
	if !found {
		e.observe(FlowEditName, "not_found")
		return true, e.reply(ctx, ev, textNotFound, nil)
	}
	e.observe(FlowEditName, "done")
	ev.log.Info("deadline renamed", logx.String("id", s.TargetID))
	text := fmt.Sprintf("Название обновлено!\n\n\"%s\" -> \"%s\"", old, name)
	return true, e.reply(ctx, ev, text, inline(rowList, rowMenu))
}
