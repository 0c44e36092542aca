package calendar

import (
	"testing"
	"time"

	"deadlinebot/internal/action"
	"deadlinebot/pkg/tgui"
)

func TestRenderShape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		year  int
		month time.Month
		weeks int
		lead  int
	}{
		{2026, time.March, 6, 6},    // starts on Sunday
		{2026, time.June, 5, 0},     // starts on Monday
		{2027, time.February, 4, 0}, // 28 days from Monday
		{2024, time.February, 5, 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.month.String(), func(t *testing.T) {
			t.Parallel()
			g := Render(tt.year, tt.month, action.CancelAction(action.ScopeAdd))
			if got := len(g) - 3; got != tt.weeks {
				t.Fatalf("weeks = %d, want %d", got, tt.weeks)
			}
			if len(g[1]) != 7 || g[1][0].Label != "Пн" || g[1][6].Label != "Вс" {
				t.Fatalf("weekday row = %+v", g[1])
			}
			for i := 0; i < tt.lead; i++ {
				if c := g[2][i]; c.Label != " " || c.Action.Kind != action.Noop {
					t.Fatalf("lead cell %d = %+v", i, c)
				}
			}
			first := g[2][tt.lead]
			if first.Label != "1" || first.Action.Kind != action.CalendarPick || first.Action.Date.Day != 1 {
				t.Fatalf("first day cell = %+v", first)
			}

			days := 0
			for _, row := range g[2 : len(g)-1] {
				if len(row) != 7 {
					t.Fatalf("week row has %d cells", len(row))
				}
				for _, c := range row {
					if c.Action.Kind == action.CalendarPick {
						days++
						if c.Action.Date.Month != tt.month || c.Action.Date.Year != tt.year {
							t.Fatalf("cell %q picks %s", c.Label, c.Action.Date)
						}
					}
				}
			}
			if want := time.Date(tt.year, tt.month+1, 0, 0, 0, 0, 0, time.UTC).Day(); days != want {
				t.Fatalf("pickable days = %d, want %d", days, want)
			}

			last := g[len(g)-1]
			if len(last) != 1 || last[0].Label != "Отмена" || last[0].Action != action.CancelAction(action.ScopeAdd) {
				t.Fatalf("cancel row = %+v", last)
			}
		})
	}
}

func TestRenderYearRollover(t *testing.T) {
	t.Parallel()
	dec := Render(2026, time.December, action.CancelAction(action.ScopeEdit))
	if next := dec[0][2].Action; next.Year != 2027 || next.Month != time.January {
		t.Fatalf("next of Dec 2026 = %+v", next)
	}
	if prev := dec[0][0].Action; prev.Year != 2026 || prev.Month != time.November {
		t.Fatalf("prev of Dec 2026 = %+v", prev)
	}
	if dec[0][1].Label != "Декабрь 2026" || dec[0][1].Action.Kind != action.Noop {
		t.Fatalf("title = %+v", dec[0][1])
	}

	jan := Render(2027, time.January, action.CancelAction(action.ScopeEdit))
	if prev := jan[0][0].Action; prev.Year != 2026 || prev.Month != time.December {
		t.Fatalf("prev of Jan 2027 = %+v", prev)
	}
}

func TestRenderYearBounds(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		year  int
		month time.Month
		blank int
		live  int
	}{
		{MaxYear, time.December, 2, 0},
		{MinYear, time.January, 0, 2},
	} {
		kb := Render(tc.year, tc.month, action.CancelAction(action.ScopeAdd)).Keyboard()
		nav := kb.Inline[0]
		if nav[tc.blank].Text != " " || nav[tc.blank].Data != "cal:noop" {
			t.Fatalf("%02d.%04d edge cell = %+v", tc.month, tc.year, nav[tc.blank])
		}
		a, err := action.Parse(nav[tc.live].Data)
		if err != nil || a.Kind != action.CalendarNav {
			t.Fatalf("%02d.%04d inner arrow %q: %+v, %v", tc.month, tc.year, nav[tc.live].Data, a, err)
		}
	}
}

func TestKeyboardTokens(t *testing.T) {
	t.Parallel()
	kb := Render(2026, time.September, action.CancelAction(action.ScopeSetTime)).Keyboard()
	if kb.Empty() {
		t.Fatal("empty keyboard")
	}
	for _, row := range kb.Inline {
		for _, b := range row {
			if b.Data == "" {
				t.Fatalf("button %q has no data", b.Text)
			}
			if err := tgui.CheckData(b.Data); err != nil {
				t.Fatalf("button %q data too long", b.Text)
			}
			if _, err := action.Parse(b.Data); err != nil {
				t.Fatalf("button %q data %q does not parse: %v", b.Text, b.Data, err)
			}
		}
	}
	if got := kb.Inline[0][0].Data; got != "cal:nav:08.2026" {
		t.Fatalf("prev token = %q", got)
	}
}
