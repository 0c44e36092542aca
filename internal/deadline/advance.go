package deadline

import (
	"context"
	"fmt"

	"deadlinebot/pkg/logx"
)

// Advance rolls an overdue recurring date forward to the first occurrence on
// or after today. changed is false when nothing moved.
//
// Monthly steps clamp from the previous result, so 31.01 becomes 28.02 and
// then 28.03.
func Advance(due Date, r Recurrence, today Date) (next Date, changed bool) {
	if !due.Before(today) {
		return due, false
	}
	switch r {
	case RepeatWeekly:
		// jump close in one go; the loop below settles the remainder
		if gap := today.DaysUntil(due); gap > 7 {
			due = due.AddDays(gap / 7 * 7)
		}
		for due.Before(today) {
			due = due.AddDays(7)
		}
	case RepeatMonthly:
		for due.Before(today) {
			due = due.NextMonthClamped()
		}
	default:
		return due, false
	}
	return due, true
}

// Roller is the slice of the store Roll needs.
type Roller interface {
	ListDeadlines(ctx context.Context, owner int64) ([]Deadline, error)
	AdvanceDate(ctx context.Context, id string, owner int64, from, to string) (ok bool, err error)
}

// Roll advances every overdue recurring deadline of owner and persists the
// new dates. Records with unparseable dates are skipped. A write only lands
// if the stored date is still the one read, so an edit or delete committed
// in between wins over the roll.
func Roll(ctx context.Context, st Roller, owner int64, today Date, log logx.Logger) (int, error) {
	items, err := st.ListDeadlines(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("list deadlines: %w", err)
	}
	n := 0
	for _, d := range items {
		if d.Recurrence == RepeatNone || !d.Recurrence.Known() {
			continue
		}
		due, ok := d.DueDate()
		if !ok {
			log.Warn("skipping deadline with corrupt date",
				logx.String("id", d.ID), logx.Int64("owner", owner), logx.String("due", d.Due))
			continue
		}
		next, changed := Advance(due, d.Recurrence, today)
		if !changed {
			continue
		}
		ok, err := st.AdvanceDate(ctx, d.ID, owner, d.Due, next.String())
		if err != nil {
			return n, fmt.Errorf("advance %s: %w", d.ID, err)
		}
		if !ok {
			log.Debug("deadline changed during roll", logx.String("id", d.ID), logx.Int64("owner", owner))
			continue
		}
		n++
	}
	return n, nil
}
