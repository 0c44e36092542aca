package action

import (
	"errors"
	"testing"
	"time"

	"deadlinebot/internal/deadline"
	"deadlinebot/pkg/tgui"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()
	d, _ := deadline.ParseDate("05.03.2026")
	tests := []struct {
		a    Action
		want string
	}{
		{NoopAction(), "cal:noop"},
		{Pick(d), "cal:d:05.03.2026"},
		{Nav(2027, time.January), "cal:nav:01.2027"},
		{RepeatAction(deadline.RepeatNone), "rep:none"},
		{RepeatAction(deadline.RepeatWeekly), "rep:weekly"},
		{RepeatAction(deadline.RepeatMonthly), "rep:monthly"},
		{CancelAction(ScopeAdd), "cancel:add"},
		{CancelAction(ScopeEdit), "cancel:edit"},
		{CancelAction(ScopeSetTime), "cancel:settime"},
		{Menu(MenuStart), "menu:start"},
		{Menu(MenuList), "menu:list"},
		{Menu(MenuAdd), "menu:add"},
		{OnDeadline(EditName, "a1b2c3d4"), "dl:name:a1b2c3d4"},
		{OnDeadline(EditDate, "a1b2c3d4"), "dl:date:a1b2c3d4"},
		{OnDeadline(Delete, "a1b2c3d4"), "dl:del:a1b2c3d4"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			tok := tt.a.Token()
			if tok != tt.want {
				t.Fatalf("Token = %q, want %q", tok, tt.want)
			}
			if err := tgui.CheckData(tok); err != nil {
				t.Fatalf("token %q too long", tok)
			}
			got, err := Parse(tok)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tok, err)
			}
			if got != tt.a {
				t.Fatalf("Parse(%q) = %+v, want %+v", tok, got, tt.a)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	for _, s := range []string{
		"", "cal", "cal:d:31.02.2026", "cal:nav:13.2026", "cal:nav:1-2026",
		"rep:yearly", "cancel:other", "menu:zzz", "dl:name", "dl:rename:x",
		"cal_ignore", "menu:list:extra",
	} {
		if _, err := Parse(s); !errors.Is(err, ErrUnknown) {
			t.Fatalf("Parse(%q) err = %v, want ErrUnknown", s, err)
		}
	}
}

func TestUnknownToken(t *testing.T) {
	t.Parallel()
	if tok := (Action{}).Token(); tok != "" {
		t.Fatalf("zero action token = %q", tok)
	}
}
