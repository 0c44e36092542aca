// Package calendar renders the inline month picker.
package calendar

import (
	"fmt"
	"strconv"
	"time"

	"deadlinebot/internal/action"
	"deadlinebot/internal/deadline"
	kit "deadlinebot/internal/transport"
)

var weekdays = [...]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// Navigation stays within the years a callback token can carry.
const (
	MinYear = 1
	MaxYear = 9999
)

// Cell is one button of the grid.
type Cell struct {
	Label  string
	Action action.Action
}

type Grid [][]Cell

// Render builds the picker for year/month: a navigation header, the weekday
// row, one row per Monday-first week and a trailing cancel row. An arrow
// that would leave MinYear..MaxYear is rendered blank.
func Render(year int, month time.Month, cancel action.Action) Grid {
	py, pm := year, month-1
	if pm < time.January {
		py, pm = year-1, time.December
	}
	ny, nm := year, month+1
	if nm > time.December {
		ny, nm = year+1, time.January
	}

	noop := action.NoopAction()
	prev := Cell{Label: "◀", Action: action.Nav(py, pm)}
	if py < MinYear {
		prev = Cell{Label: " ", Action: noop}
	}
	next := Cell{Label: "▶", Action: action.Nav(ny, nm)}
	if ny > MaxYear {
		next = Cell{Label: " ", Action: noop}
	}
	g := Grid{{
		prev,
		{Label: fmt.Sprintf("%s %d", deadline.MonthName(month), year), Action: noop},
		next,
	}}

	head := make([]Cell, 0, len(weekdays))
	for _, w := range weekdays {
		head = append(head, Cell{Label: w, Action: noop})
	}
	g = append(g, head)

	first := deadline.Date{Year: year, Month: month, Day: 1}
	lead := (int(first.Weekday()) + 6) % 7
	days := deadline.DaysIn(year, month)

	row := make([]Cell, 0, 7)
	for i := 0; i < lead; i++ {
		row = append(row, Cell{Label: " ", Action: noop})
	}
	for day := 1; day <= days; day++ {
		d := deadline.Date{Year: year, Month: month, Day: day}
		row = append(row, Cell{Label: strconv.Itoa(day), Action: action.Pick(d)})
		if len(row) == 7 {
			g = append(g, row)
			row = make([]Cell, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, Cell{Label: " ", Action: noop})
		}
		g = append(g, row)
	}

	return append(g, []Cell{{Label: "Отмена", Action: cancel}})
}

// Keyboard converts the grid to an inline keyboard.
func (g Grid) Keyboard() *kit.Keyboard {
	kb := &kit.Keyboard{Inline: make([][]kit.Button, 0, len(g))}
	for _, r := range g {
		btns := make([]kit.Button, 0, len(r))
		for _, c := range r {
			btns = append(btns, kit.Button{Text: c.Label, Data: c.Action.Token()})
		}
		kb.Inline = append(kb.Inline, btns)
	}
	return kb
}
