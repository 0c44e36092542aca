// Package reminder runs the per-user daily reminder: one cron entry per
// owner, which rolls recurring deadlines forward and sends a digest of what
// is due within a week.
package reminder

import (
	"fmt"
	"strings"

	"deadlinebot/internal/action"
	"deadlinebot/internal/deadline"
	kit "deadlinebot/internal/transport"
)

// ListButton opens the deadline listing.
func ListButton() kit.Button {
	return kit.Button{Text: "Мои дедлайны", Data: action.Menu(action.MenuList).Token()}
}

// Digest composes the reminder text for today. ok is false when no deadline
// is overdue or due within seven days.
func Digest(items []deadline.Deadline, today deadline.Date) (text string, ok bool) {
	var overdue, now, tomorrow, week []string

	sorted, _ := deadline.Sorted(items)
	for _, d := range sorted {
		days := d.Date.DaysUntil(today)
		line := fmt.Sprintf("- %s%s (%s)", d.Name, d.Recurrence.Tag(), deadline.Human(d.Date))
		switch {
		case days < 0:
			overdue = append(overdue, fmt.Sprintf("%s — просрочен на %d дн.", line, -days))
		case days == 0:
			now = append(now, line)
		case days == 1:
			tomorrow = append(tomorrow, line)
		case days <= 7:
			week = append(week, fmt.Sprintf("%s — через %d дн.", line, days))
		}
	}

	var parts []string
	add := func(title string, lines []string) {
		if len(lines) > 0 {
			parts = append(parts, title+"\n"+strings.Join(lines, "\n"))
		}
	}
	add("ПРОСРОЧЕНО:", overdue)
	add("СЕГОДНЯ:", now)
	add("ЗАВТРА:", tomorrow)
	add("НА ЭТОЙ НЕДЕЛЕ:", week)
	if len(parts) == 0 {
		return "", false
	}
	return "Напоминание о дедлайнах:\n\n" + strings.Join(parts, "\n\n"), true
}
