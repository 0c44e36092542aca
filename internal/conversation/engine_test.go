package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"deadlinebot/internal/deadline"
	"deadlinebot/internal/storage"
	kit "deadlinebot/internal/transport"
)

const (
	testChat = int64(100)
	testUser = int64(7)
)

type outMsg struct {
	op   string // send, edit, keyboard
	text string
	kb   *kit.Keyboard
}

type recSender struct {
	mu  sync.Mutex
	out []outMsg
}

func (r *recSender) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kb *kit.Keyboard
	if opt != nil {
		kb = opt.Keyboard
	}
	r.out = append(r.out, outMsg{op: "send", text: text, kb: kb})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(r.out)}, nil
}

func (r *recSender) EditText(_ context.Context, _ kit.MessageRef, text string, opt *kit.SendOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kb *kit.Keyboard
	if opt != nil {
		kb = opt.Keyboard
	}
	r.out = append(r.out, outMsg{op: "edit", text: text, kb: kb})
	return nil
}

func (r *recSender) EditKeyboard(_ context.Context, _ kit.MessageRef, kb *kit.Keyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, outMsg{op: "keyboard", kb: kb})
	return nil
}

func (r *recSender) AnswerCallback(context.Context, string, string) error { return nil }

func (r *recSender) last(t *testing.T) outMsg {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.out) == 0 {
		t.Fatalf("nothing was sent")
	}
	return r.out[len(r.out)-1]
}

func (r *recSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.out)
}

type recSched struct {
	mu    sync.Mutex
	calls map[int64]deadline.ReminderTime
}

func (s *recSched) Schedule(owner int64, at deadline.ReminderTime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[int64]deadline.ReminderTime{}
	}
	s.calls[owner] = at
	return nil
}

type recObs struct {
	mu     sync.Mutex
	events []string
}

func (o *recObs) FlowEvent(f Flow, event string) {
	o.mu.Lock()
	o.events = append(o.events, string(f)+"/"+event)
	o.mu.Unlock()
}

type harness struct {
	e     *Engine
	st    storage.Store
	out   *recSender
	sched *recSched
	obs   *recObs
}

func newHarness(t *testing.T, st storage.Store) *harness {
	t.Helper()
	if st == nil {
		st = storage.NewMemory()
	}
	t.Cleanup(func() { _ = st.Close() })
	h := &harness{st: st, out: &recSender{}, sched: &recSched{}, obs: &recObs{}}
	h.e = New(Config{Location: time.UTC}, Deps{Store: st, Scheduler: h.sched, Sender: h.out, Observer: h.obs})
	h.e.now = func() time.Time { return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) }
	n := 0
	h.e.newID = func() string {
		n++
		return fmt.Sprintf("id%06d", n)
	}
	return h
}

func (h *harness) text(t *testing.T, s string) {
	t.Helper()
	up := kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: testChat, FromID: testUser, Text: s}}
	if err := h.e.Handle(context.Background(), up, zeroLog); err != nil {
		t.Fatalf("text %q: %v", s, err)
	}
}

func (h *harness) click(t *testing.T, data string) {
	t.Helper()
	up := kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID: "cb", ChatID: testChat, FromID: testUser, MessageID: 1, Data: data,
	}}
	if err := h.e.Handle(context.Background(), up, zeroLog); err != nil {
		t.Fatalf("click %q: %v", data, err)
	}
}

func (h *harness) list(t *testing.T) []deadline.Deadline {
	t.Helper()
	items, err := h.st.ListDeadlines(context.Background(), testUser)
	if err != nil {
		t.Fatal(err)
	}
	return items
}

func hasButton(kb *kit.Keyboard, data string) bool {
	if kb == nil {
		return false
	}
	for _, row := range kb.Inline {
		for _, b := range row {
			if b.Data == data {
				return true
			}
		}
	}
	return false
}

func TestAddFlowWithCalendar(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.text(t, "/add")
	if m := h.out.last(t); m.op != "send" || m.text != textAskName || !hasButton(m.kb, "cancel:add") {
		t.Fatalf("unexpected name prompt: %+v", m)
	}
	h.text(t, "  Курсовая  ")
	m := h.out.last(t)
	if m.text != textAskDate || !hasButton(m.kb, "cal:d:20.03.2026") || !hasButton(m.kb, "cal:nav:04.2026") {
		t.Fatalf("unexpected date prompt: %+v", m)
	}

	h.click(t, "cal:nav:04.2026")
	if m := h.out.last(t); m.op != "keyboard" || !hasButton(m.kb, "cal:d:30.04.2026") {
		t.Fatalf("navigation did not redraw the calendar: %+v", m)
	}
	h.click(t, "cal:noop")

	h.click(t, "cal:d:20.03.2026")
	if m := h.out.last(t); m.op != "edit" || m.text != textAskRepeat {
		t.Fatalf("unexpected repeat prompt: %+v", m)
	}
	h.click(t, "rep:weekly")

	m = h.out.last(t)
	want := "Дедлайн добавлен!\n\nКурсовая [еженед.] — 20 марта (через 10 дн.)"
	if m.op != "edit" || m.text != want {
		t.Fatalf("got %q, want %q", m.text, want)
	}
	items := h.list(t)
	if len(items) != 1 {
		t.Fatalf("expected one deadline, got %d", len(items))
	}
	got := items[0]
	if got.Name != "Курсовая" || got.Due != "20.03.2026" || got.Recurrence != deadline.RepeatWeekly || got.Owner != testUser {
		t.Fatalf("stored %+v", got)
	}
	if _, ok := h.e.Sessions().Get(testChat, FlowAdd); ok {
		t.Fatalf("session should be cleared")
	}
}

func TestAddFlowTypedDateNormalized(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.text(t, BtnAdd)
	h.text(t, "Отчёт")
	h.text(t, "32.01.2026")
	if m := h.out.last(t); m.text != textBadDate {
		t.Fatalf("expected bad date reply, got %q", m.text)
	}
	if s, ok := h.e.Sessions().Get(testChat, FlowAdd); !ok || s.State != StateAddDate {
		t.Fatalf("session should stay in date state: %+v", s)
	}
	h.text(t, "5.4.2026")
	if m := h.out.last(t); m.op != "send" || m.text != textAskRepeat {
		t.Fatalf("unexpected reply: %+v", m)
	}
	h.click(t, "rep:none")
	if items := h.list(t); len(items) != 1 || items[0].Due != "05.04.2026" || items[0].Recurrence != deadline.RepeatNone {
		t.Fatalf("stored %+v", items)
	}
}

func TestAddFlowCancel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		cancel func(h *harness, t *testing.T)
	}{
		{"command", func(h *harness, t *testing.T) { h.text(t, "/cancel") }},
		{"button", func(h *harness, t *testing.T) { h.click(t, "cancel:add") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, nil)
			h.text(t, "/add")
			h.text(t, "Name")
			tt.cancel(h, t)
			if m := h.out.last(t); m.text != textAddCancelled {
				t.Fatalf("got %q", m.text)
			}
			if h.e.Sessions().Len() != 0 {
				t.Fatalf("session left behind")
			}
			if len(h.list(t)) != 0 {
				t.Fatalf("nothing should be stored")
			}
		})
	}
}

func TestCancelOfOtherScopeIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.text(t, "/add")
	n := h.out.count()
	h.click(t, "cancel:edit")
	if h.out.count() != n {
		t.Fatalf("foreign cancel produced output")
	}
	if _, ok := h.e.Sessions().Get(testChat, FlowAdd); !ok {
		t.Fatalf("add session should survive")
	}
}

func TestAddNameIgnoresCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.text(t, "/add")
	h.text(t, "/list")
	if m := h.out.last(t); m.text != textEmptyList {
		t.Fatalf("/list should fall through to the list handler, got %q", m.text)
	}
	if s, _ := h.e.Sessions().Get(testChat, FlowAdd); s.State != StateAddName {
		t.Fatalf("state changed to %q", s.State)
	}
}

func TestAddRetriesDuplicateID(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	if err := h.st.AddDeadline(context.Background(), deadline.Deadline{ID: "dup", Owner: 1, Name: "x", Due: "01.01.2026"}); err != nil {
		t.Fatal(err)
	}
	ids := []string{"dup", "fresh"}
	h.e.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	h.text(t, "/add")
	h.text(t, "A")
	h.text(t, "01.05.2026")
	h.click(t, "rep:monthly")
	items := h.list(t)
	if len(items) != 1 || items[0].ID != "fresh" {
		t.Fatalf("stored %+v", items)
	}
}

type failingStore struct {
	storage.Store
}

func (failingStore) AddDeadline(context.Context, deadline.Deadline) error {
	return errors.New("disk full")
}

func TestStoreFailureKeepsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, failingStore{Store: storage.NewMemory()})
	h.text(t, "/add")
	h.text(t, "A")
	h.text(t, "01.05.2026")

	up := kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ChatID: testChat, FromID: testUser, Data: "rep:none"}}
	if err := h.e.Handle(context.Background(), up, zeroLog); err == nil {
		t.Fatalf("expected error")
	}
	if m := h.out.last(t); m.op != "send" || m.text != textFailure {
		t.Fatalf("got %+v", m)
	}
	if s, ok := h.e.Sessions().Get(testChat, FlowAdd); !ok || s.State != StateAddRepeat {
		t.Fatalf("session should remain at repeat: %+v", s)
	}
}

func seed(t *testing.T, h *harness, items ...deadline.Deadline) {
	t.Helper()
	for _, d := range items {
		if d.Owner == 0 {
			d.Owner = testUser
		}
		if err := h.st.AddDeadline(context.Background(), d); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListSortsAndRolls(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	seed(t, h,
		deadline.Deadline{ID: "a", Name: "Later", Due: "25.03.2026"},
		deadline.Deadline{ID: "b", Name: "Gym", Due: "03.03.2026", Recurrence: deadline.RepeatWeekly},
		deadline.Deadline{ID: "c", Name: "Broken", Due: "soon"},
		deadline.Deadline{ID: "d", Name: "Other", Due: "01.03.2026", Owner: 99},
	)
	h.text(t, "/list")

	m := h.out.last(t)
	want := "Твои дедлайны:\n\n" +
		"1. Gym [еженед.] — 10 марта (СЕГОДНЯ!)\n" +
		"2. Later — 25 марта (через 15 дн.)"
	if m.text != want {
		t.Fatalf("got\n%s\nwant\n%s", m.text, want)
	}
	for _, data := range []string{"dl:name:b", "dl:date:b", "dl:del:b", "dl:del:a", "menu:add", "menu:start"} {
		if !hasButton(m.kb, data) {
			t.Fatalf("missing button %s", data)
		}
	}
	if hasButton(m.kb, "dl:del:c") {
		t.Fatalf("corrupt record should not be listed")
	}
	d, ok, err := h.st.GetDeadline(context.Background(), "b", testUser)
	if err != nil || !ok || d.Due != "10.03.2026" {
		t.Fatalf("weekly deadline not rolled: %+v %v %v", d, ok, err)
	}
}

func TestListEmptyFromMenu(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.click(t, "menu:list")
	if m := h.out.last(t); m.op != "edit" || m.text != textEmptyList || !hasButton(m.kb, "menu:add") {
		t.Fatalf("got %+v", m)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	seed(t, h, deadline.Deadline{ID: "a", Name: "Exam", Due: "25.03.2026"})

	h.click(t, "dl:del:a")
	if m := h.out.last(t); m.text != "Дедлайн \"Exam\" удалён." {
		t.Fatalf("got %q", m.text)
	}
	h.click(t, "dl:del:a")
	if m := h.out.last(t); m.text != textNotFound {
		t.Fatalf("got %q", m.text)
	}
}

func TestDeleteOtherOwnersDeadline(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	seed(t, h, deadline.Deadline{ID: "a", Name: "Exam", Due: "25.03.2026", Owner: 99})
	h.click(t, "dl:del:a")
	if m := h.out.last(t); m.text != textNotFound {
		t.Fatalf("got %q", m.text)
	}
	if _, ok, _ := h.st.GetDeadline(context.Background(), "a", 99); !ok {
		t.Fatalf("foreign deadline was deleted")
	}
}

func TestEditName(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	seed(t, h, deadline.Deadline{ID: "a", Name: "Old", Due: "25.03.2026"})

	h.click(t, "dl:name:a")
	if m := h.out.last(t); m.op != "edit" || !strings.HasPrefix(m.text, "Текущее название: Old") || !hasButton(m.kb, "cancel:edit") {
		t.Fatalf("got %+v", m)
	}
	h.text(t, "New")
	if m := h.out.last(t); m.text != "Название обновлено!\n\n\"Old\" -> \"New\"" {
		t.Fatalf("got %q", m.text)
	}
	if d, _, _ := h.st.GetDeadline(context.Background(), "a", testUser); d.Name != "New" {
		t.Fatalf("name not stored: %+v", d)
	}
}

func TestEditDate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	seed(t, h, deadline.Deadline{ID: "a", Name: "Exam", Due: "25.03.2026"})

	h.click(t, "dl:date:a")
	m := h.out.last(t)
	if !strings.Contains(m.text, "Текущая дата: 25 марта") || !hasButton(m.kb, "cancel:edit") || !hasButton(m.kb, "cal:d:01.03.2026") {
		t.Fatalf("got %+v", m)
	}
	h.click(t, "cal:d:02.04.2026")
	if m := h.out.last(t); m.text != "Дата обновлена!\n\nExam — 2 апреля" {
		t.Fatalf("got %q", m.text)
	}
	if d, _, _ := h.st.GetDeadline(context.Background(), "a", testUser); d.Due != "02.04.2026" {
		t.Fatalf("date not stored: %+v", d)
	}
}

func TestEditMissingDeadline(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.click(t, "dl:date:nope")
	if m := h.out.last(t); m.text != textNotFound {
		t.Fatalf("got %q", m.text)
	}
	if h.e.Sessions().Len() != 0 {
		t.Fatalf("no session expected")
	}
}

func TestEditTargetDeletedMidFlow(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		enter  string
		finish func(h *harness, t *testing.T)
	}{
		{"date", "dl:date:a", func(h *harness, t *testing.T) { h.click(t, "cal:d:02.04.2026") }},
		{"name", "dl:name:a", func(h *harness, t *testing.T) { h.text(t, "Renamed") }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, nil)
			ctx := context.Background()
			seed(t, h, deadline.Deadline{ID: "a", Name: "Exam", Due: "25.03.2026"})

			h.click(t, tc.enter)
			if h.e.Sessions().Len() != 1 {
				t.Fatalf("flow not entered")
			}
			if _, ok, err := h.st.DeleteDeadline(ctx, "a", testUser); err != nil || !ok {
				t.Fatalf("DeleteDeadline = %v, %v", ok, err)
			}
			tc.finish(h, t)

			if m := h.out.last(t); m.text != textNotFound {
				t.Fatalf("got %q", m.text)
			}
			if _, ok, _ := h.st.GetDeadline(ctx, "a", testUser); ok {
				t.Fatalf("deleted deadline was recreated")
			}
			if items, _ := h.st.ListDeadlines(ctx, testUser); len(items) != 0 {
				t.Fatalf("records left: %+v", items)
			}
			if n := h.e.Sessions().Len(); n != 0 {
				t.Fatalf("sessions = %d, want 0", n)
			}
		})
	}
}

func TestEditCancelSharedScope(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	seed(t, h, deadline.Deadline{ID: "a", Name: "Exam", Due: "25.03.2026"})
	h.click(t, "dl:name:a")
	h.click(t, "cancel:edit")
	if m := h.out.last(t); m.text != textEditCancelled {
		t.Fatalf("got %q", m.text)
	}
	if h.e.Sessions().Len() != 0 {
		t.Fatalf("session left behind")
	}
}

func TestSetTime(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.text(t, BtnSettings)
	if m := h.out.last(t); !strings.HasPrefix(m.text, "Текущее время напоминания: 09:00") {
		t.Fatalf("got %q", m.text)
	}
	h.text(t, "25:00")
	if m := h.out.last(t); m.text != textBadTime {
		t.Fatalf("got %q", m.text)
	}
	if at, err := h.st.ReminderTime(context.Background(), testUser); err != nil || at != deadline.DefaultReminderTime {
		t.Fatalf("rejected time changed the setting: %v %v", at, err)
	}
	h.sched.mu.Lock()
	calls := len(h.sched.calls)
	h.sched.mu.Unlock()
	if calls != 0 {
		t.Fatalf("scheduler called after rejected time: %v", h.sched.calls)
	}
	h.text(t, "7:5")
	if m := h.out.last(t); !strings.HasPrefix(m.text, "Время напоминания установлено: 07:05") {
		t.Fatalf("got %q", m.text)
	}
	at, err := h.st.ReminderTime(context.Background(), testUser)
	if err != nil || at != (deadline.ReminderTime{Hour: 7, Minute: 5}) {
		t.Fatalf("stored %v %v", at, err)
	}
	if got := h.sched.calls[testUser]; got != at {
		t.Fatalf("scheduler got %v", got)
	}
}

func TestStartAndHelp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	if err := h.st.SetReminderTime(context.Background(), testUser, deadline.ReminderTime{Hour: 21, Minute: 30}); err != nil {
		t.Fatal(err)
	}
	h.text(t, "/start@deadline_bot")
	m := h.out.last(t)
	if m.op != "send" || !strings.Contains(m.text, "ежедневно в 21:30") || m.kb == nil || len(m.kb.Reply) != 2 {
		t.Fatalf("got %+v", m)
	}
	h.text(t, BtnHelp)
	if m := h.out.last(t); m.text != textHelp || !strings.HasPrefix(m.text, "Deadline Tracker Bot — v2.0\n\n") {
		t.Fatalf("got %q", m.text)
	}
}

func TestUnknownCallbackIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.click(t, "bogus")
	h.text(t, "hello")
	if h.out.count() != 0 {
		t.Fatalf("unexpected output")
	}
}

func TestFlowsAreIndependentPerChat(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.text(t, "/add")
	other := kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 200, FromID: 8, Text: "Name"}}
	if err := h.e.Handle(context.Background(), other, zeroLog); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.e.Sessions().Get(200, FlowAdd); ok {
		t.Fatalf("other chat should have no session")
	}
	if s, _ := h.e.Sessions().Get(testChat, FlowAdd); s.State != StateAddName {
		t.Fatalf("state %q", s.State)
	}
}

func TestObserverEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.text(t, BtnSettings)
	h.text(t, "x")
	h.text(t, "/cancel")
	want := []string{"set_time/enter", "set_time/invalid", "set_time/cancel"}
	if strings.Join(h.obs.events, ",") != strings.Join(want, ",") {
		t.Fatalf("events %v", h.obs.events)
	}
}
