// Package deadline holds the deadline data model, the recurrence advancer and
// the Russian-language formatting shared by listings and reminders.
package deadline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Recurrence controls how an overdue deadline is rolled forward.
type Recurrence string

const (
	RepeatNone    Recurrence = ""
	RepeatWeekly  Recurrence = "weekly"
	RepeatMonthly Recurrence = "monthly"
)

// ParseRecurrence maps a persisted or action value to a Recurrence.
// "none" and "" both mean RepeatNone; unknown values are returned as-is and
// are ignored by Advance.
func ParseRecurrence(s string) Recurrence {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "none":
		return RepeatNone
	default:
		return Recurrence(s)
	}
}

func (r Recurrence) Known() bool {
	return r == RepeatNone || r == RepeatWeekly || r == RepeatMonthly
}

// Label is the short tag shown next to a recurring deadline.
func (r Recurrence) Label() string {
	switch r {
	case RepeatWeekly:
		return "еженед."
	case RepeatMonthly:
		return "ежемес."
	}
	return ""
}

type Deadline struct {
	ID         string     `json:"id"`
	Owner      int64      `json:"owner"`
	Name       string     `json:"name"`
	Due        string     `json:"date"` // DD.MM.YYYY
	Recurrence Recurrence `json:"repeat,omitempty"`
}

// DueDate parses Due. ok is false for corrupt records.
func (d Deadline) DueDate() (Date, bool) {
	dt, err := ParseDate(d.Due)
	if err != nil {
		return Date{}, false
	}
	return dt, true
}

// NewID returns a short opaque identifier: the first 8 hex chars of a random
// UUID.
func NewID() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")[:8]
}

// ReminderTime is a local wall-clock time of the daily digest.
type ReminderTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

var DefaultReminderTime = ReminderTime{Hour: 9, Minute: 0}

var reTime = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})$`)

// ParseReminderTime parses "H:MM".
func ParseReminderTime(raw string) (ReminderTime, error) {
	m := reTime.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ReminderTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	rt := ReminderTime{Hour: h, Minute: mm}
	if !rt.Valid() {
		return ReminderTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	return rt, nil
}

func (t ReminderTime) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t ReminderTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ReminderSetting is one persisted per-user reminder time.
type ReminderSetting struct {
	Owner int64
	ReminderTime
}
