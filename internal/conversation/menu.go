package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"deadlinebot/internal/action"
	"deadlinebot/internal/deadline"
	kit "deadlinebot/internal/transport"
	"deadlinebot/pkg/logx"
)

func (e *Engine) handleStart(ctx context.Context, ev event) error {
	at, err := e.st.ReminderTime(ctx, ev.owner)
	if err != nil {
		return fmt.Errorf("reminder time: %w", err)
	}
	text := "Deadline Tracker Bot\n\n" +
		"Привет! Я помогу тебе не забывать о важных дедлайнах.\n\n" +
		"Напоминания: ежедневно в " + at.String() + "\n" +
		"Формат даты: ДД.ММ.ГГГГ или выбор через календарь."
	return e.send(ctx, ev, text, persistentKeyboard())
}

// handleList rolls recurring deadlines forward and shows the owner's list
// ordered by due date, with per-row edit buttons.
func (e *Engine) handleList(ctx context.Context, ev event) error {
	today := e.today()
	if _, err := deadline.Roll(ctx, e.st, ev.owner, today, ev.log); err != nil {
		return err
	}
	items, err := e.st.ListDeadlines(ctx, ev.owner)
	if err != nil {
		return fmt.Errorf("list deadlines: %w", err)
	}
	sorted, corrupt := deadline.Sorted(items)
	for _, d := range corrupt {
		ev.log.Warn("skipping deadline with corrupt date", logx.String("id", d.ID), logx.String("due", d.Due))
	}
	if len(sorted) == 0 {
		return e.reply(ctx, ev, textEmptyList, inline(rowAdd, rowMenu))
	}

	var b strings.Builder
	b.WriteString(textListHead)
	rows := make([][]kit.Button, 0, len(sorted)+2)
	for i, d := range sorted {
		n := strconv.Itoa(i + 1)
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(n + ". " + deadline.Summary(d.Deadline, d.Date, today))
		rows = append(rows, []kit.Button{
			btn(n+" — Название", action.OnDeadline(action.EditName, d.ID)),
			btn(n+" — Дата", action.OnDeadline(action.EditDate, d.ID)),
			btn(n+" — Удалить", action.OnDeadline(action.Delete, d.ID)),
		})
	}
	rows = append(rows, rowAdd, rowMenu)
	return e.reply(ctx, ev, b.String(), inline(rows...))
}

func (e *Engine) handleDelete(ctx context.Context, ev event) error {
	name, ok, err := e.st.DeleteDeadline(ctx, ev.act.ID, ev.owner)
	if err != nil {
		return fmt.Errorf("delete deadline: %w", err)
	}
	if !ok {
		return e.reply(ctx, ev, textNotFound, nil)
	}
	ev.log.Info("deadline deleted", logx.String("id", ev.act.ID))
	return e.reply(ctx, ev, fmt.Sprintf("Дедлайн \"%s\" удалён.", name), inline(rowList, rowMenu))
}
