// Package action defines the typed inline-button events of the bot and their
// "group:op[:payload]" callback token form.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deadlinebot/internal/deadline"
	"deadlinebot/pkg/tgui"
)

var ErrUnknown = errors.New("unknown action")

type Kind int

const (
	Unknown Kind = iota
	Noop
	CalendarPick
	CalendarNav
	Repeat
	Cancel
	MenuStart
	MenuList
	MenuAdd
	EditName
	EditDate
	Delete
)

func (k Kind) String() string {
	switch k {
	case Noop:
		return "noop"
	case CalendarPick:
		return "cal_pick"
	case CalendarNav:
		return "cal_nav"
	case Repeat:
		return "repeat"
	case Cancel:
		return "cancel"
	case MenuStart:
		return "menu_start"
	case MenuList:
		return "menu_list"
	case MenuAdd:
		return "menu_add"
	case EditName:
		return "edit_name"
	case EditDate:
		return "edit_date"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Cancel scopes. Both edit flows share ScopeEdit.
const (
	ScopeAdd     = "add"
	ScopeEdit    = "edit"
	ScopeSetTime = "settime"
)

// Action is a decoded callback.
type Action struct {
	Kind   Kind
	ID     string              // EditName, EditDate, Delete
	Date   deadline.Date       // CalendarPick
	Year   int                 // CalendarNav
	Month  time.Month          // CalendarNav
	Repeat deadline.Recurrence // Repeat
	Scope  string              // Cancel
}

func NoopAction() Action                        { return Action{Kind: Noop} }
func Pick(d deadline.Date) Action               { return Action{Kind: CalendarPick, Date: d} }
func Nav(year int, m time.Month) Action         { return Action{Kind: CalendarNav, Year: year, Month: m} }
func RepeatAction(r deadline.Recurrence) Action { return Action{Kind: Repeat, Repeat: r} }
func CancelAction(scope string) Action          { return Action{Kind: Cancel, Scope: scope} }
func Menu(k Kind) Action                        { return Action{Kind: k} }
func OnDeadline(k Kind, id string) Action       { return Action{Kind: k, ID: id} }

// Token encodes a as callback data. Unknown actions encode to "".
func (a Action) Token() string {
	switch a.Kind {
	case Noop:
		return tgui.Data("cal", "noop", "")
	case CalendarPick:
		return tgui.Data("cal", "d", a.Date.String())
	case CalendarNav:
		return tgui.Data("cal", "nav", fmt.Sprintf("%02d.%04d", int(a.Month), a.Year))
	case Repeat:
		r := string(a.Repeat)
		if a.Repeat == deadline.RepeatNone {
			r = "none"
		}
		return tgui.Data("rep", r, "")
	case Cancel:
		return tgui.Data("cancel", a.Scope, "")
	case MenuStart:
		return tgui.Data("menu", "start", "")
	case MenuList:
		return tgui.Data("menu", "list", "")
	case MenuAdd:
		return tgui.Data("menu", "add", "")
	case EditName:
		return tgui.Data("dl", "name", a.ID)
	case EditDate:
		return tgui.Data("dl", "date", a.ID)
	case Delete:
		return tgui.Data("dl", "del", a.ID)
	}
	return ""
}

// Parse decodes callback data. Anything unrecognised yields ErrUnknown.
func Parse(data string) (Action, error) {
	group, op, payload, ok := tgui.SplitData(data)
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknown, data)
	}
	bad := func() (Action, error) { return Action{}, fmt.Errorf("%w: %q", ErrUnknown, data) }

	switch group {
	case "cal":
		switch op {
		case "noop":
			return NoopAction(), nil
		case "d":
			d, err := deadline.ParseDate(payload)
			if err != nil {
				return bad()
			}
			return Pick(d), nil
		case "nav":
			y, m, ok := parseMonthYear(payload)
			if !ok {
				return bad()
			}
			return Nav(y, m), nil
		}
	case "rep":
		if payload != "" {
			return bad()
		}
		switch r := deadline.ParseRecurrence(op); r {
		case deadline.RepeatNone, deadline.RepeatWeekly, deadline.RepeatMonthly:
			return RepeatAction(r), nil
		}
	case "cancel":
		switch op {
		case ScopeAdd, ScopeEdit, ScopeSetTime:
			if payload == "" {
				return CancelAction(op), nil
			}
		}
	case "menu":
		if payload != "" {
			return bad()
		}
		switch op {
		case "start":
			return Menu(MenuStart), nil
		case "list":
			return Menu(MenuList), nil
		case "add":
			return Menu(MenuAdd), nil
		}
	case "dl":
		if payload == "" {
			return bad()
		}
		switch op {
		case "name":
			return OnDeadline(EditName, payload), nil
		case "date":
			return OnDeadline(EditDate, payload), nil
		case "del":
			return OnDeadline(Delete, payload), nil
		}
	}
	return bad()
}

func parseMonthYear(s string) (int, time.Month, bool) {
	ms, ys, ok := strings.Cut(s, ".")
	if !ok || len(ys) != 4 {
		return 0, 0, false
	}
	m, err1 := strconv.Atoi(ms)
	y, err2 := strconv.Atoi(ys)
	if err1 != nil || err2 != nil || m < 1 || m > 12 || y < 1 {
		return 0, 0, false
	}
	return y, time.Month(m), true
}
