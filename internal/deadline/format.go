package deadline

import (
	"fmt"
	"sort"
	"time"
)

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

var monthsNominative = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// MonthName returns the nominative month name ("Март").
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthsNominative[m-1]
}

// Human renders a date as "5 марта".
func Human(d Date) string {
	if d.Month < time.January || d.Month > time.December {
		return d.String()
	}
	return fmt.Sprintf("%d %s", d.Day, monthsGenitive[d.Month-1])
}

// Status describes how far a due date is from today.
func Status(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("просрочен на %d дн.", -days)
	case days == 0:
		return "СЕГОДНЯ!"
	case days == 1:
		return "ЗАВТРА!"
	default:
		return fmt.Sprintf("через %d дн.", days)
	}
}

// Tag returns " [еженед.]" style suffix for recurring deadlines.
func (r Recurrence) Tag() string {
	if l := r.Label(); l != "" {
		return " [" + l + "]"
	}
	return ""
}

// Summary renders "name[ tag] — 5 марта (через 3 дн.)".
func Summary(d Deadline, due, today Date) string {
	return fmt.Sprintf("%s%s — %s (%s)", d.Name, d.Recurrence.Tag(), Human(due), Status(due.DaysUntil(today)))
}

// Dated pairs a deadline with its parsed due date.
type Dated struct {
	Deadline
	Date Date
}

// Sorted drops corrupt records and orders the rest by due date, keeping
// insertion order for equal dates. The skipped records are returned too.
func Sorted(items []Deadline) (out []Dated, corrupt []Deadline) {
	out = make([]Dated, 0, len(items))
	for _, d := range items {
		due, ok := d.DueDate()
		if !ok {
			corrupt = append(corrupt, d)
			continue
		}
		out = append(out, Dated{Deadline: d, Date: due})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, corrupt
}
