package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"deadlinebot/internal/action"
	"deadlinebot/internal/deadline"
	"deadlinebot/internal/storage"
	kit "deadlinebot/internal/transport"
	"deadlinebot/pkg/logx"
)

// Rescheduler replaces a user's daily reminder.
type Rescheduler interface {
	Schedule(owner int64, at deadline.ReminderTime) error
}

// Observer receives flow lifecycle events ("enter", "done", "cancel",
// "not_found", "invalid").
type Observer interface {
	FlowEvent(flow Flow, event string)
}

type Config struct {
	// Location of "today". nil means time.Local.
	Location   *time.Location
	SessionTTL time.Duration
}

type Deps struct {
	Store     storage.Store
	Scheduler Rescheduler
	Sender    kit.Sender
	Observer  Observer
	Log       logx.Logger
}

// Engine routes inbound updates to the guided flows and the menu handlers.
type Engine struct {
	st       storage.Store
	sched    Rescheduler
	sender   kit.Sender
	obs      Observer
	log      logx.Logger
	loc      *time.Location
	now      func() time.Time
	newID    func() string
	sessions *Sessions
	flows    []flow
}

func New(cfg Config, d Deps) *Engine {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	e := &Engine{
		st:       d.Store,
		sched:    d.Scheduler,
		sender:   d.Sender,
		obs:      d.Observer,
		log:      d.Log,
		loc:      cfg.Location,
		now:      time.Now,
		newID:    deadline.NewID,
		sessions: NewSessions(cfg.SessionTTL),
	}
	// Order matters: the first flow that consumes an update wins.
	e.flows = []flow{addFlow{}, editDateFlow{}, editNameFlow{}, setTimeFlow{}}
	return e
}

// Sessions exposes the session store (TTL reload, sweeping).
func (e *Engine) Sessions() *Sessions { return e.sessions }

func (e *Engine) today() deadline.Date {
	return deadline.Today(e.now().In(e.loc))
}

// event is an update decoded once for routing.
type event struct {
	chat  int64
	owner int64
	text  string
	msg   *kit.Message
	cb    *kit.Callback
	act   action.Action
	log   logx.Logger
}

func (ev event) isText() bool     { return ev.msg != nil }
func (ev event) isCallback() bool { return ev.cb != nil }

// command returns the bot command name without "/" and "@bot", or "".
func (ev event) command() string {
	if ev.msg == nil || !strings.HasPrefix(ev.text, "/") {
		return ""
	}
	name := strings.Fields(ev.text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// plainText reports free text that is not a command.
func (ev event) plainText() (string, bool) {
	if ev.msg == nil || strings.HasPrefix(ev.text, "/") {
		return "", false
	}
	return ev.text, true
}

func (ev event) is(k action.Kind) bool { return ev.cb != nil && ev.act.Kind == k }

// Handle routes one update. Store failures are reported to the user with a
// generic message and returned; the chat's sessions stay as they were.
func (e *Engine) Handle(ctx context.Context, up kit.Update, log logx.Logger) error {
	if log.IsZero() {
		log = e.log
	}
	ev := event{chat: up.ChatID(), owner: up.FromID(), msg: up.Message, cb: up.Callback, log: log}
	if ev.owner == 0 {
		ev.owner = ev.chat
	}
	switch {
	case ev.msg != nil:
		ev.text = strings.TrimSpace(ev.msg.Text)
	case ev.cb != nil:
		a, err := action.Parse(ev.cb.Data)
		if err != nil {
			log.Debug("unknown callback ignored", logx.String("data", ev.cb.Data))
			return nil
		}
		ev.act = a
	default:
		return nil
	}

	err := e.route(ctx, ev)
	if err != nil && !errors.Is(err, context.Canceled) {
		if _, serr := e.sender.SendText(ctx, kit.ChatTarget{ChatID: ev.chat}, textFailure, nil); serr != nil {
			log.Debug("failure notice not delivered", logx.Err(serr))
		}
	}
	return err
}

func (e *Engine) route(ctx context.Context, ev event) error {
	switch cmd := ev.command(); {
	case cmd == "start":
		return e.handleStart(ctx, ev)
	case cmd == "help", ev.text == BtnHelp && ev.isText():
		return e.reply(ctx, ev, textHelp, persistentKeyboard())
	}

	for _, f := range e.flows {
		if sess, ok := e.sessions.Get(ev.chat, f.kind()); ok {
			if e.isCancel(ev, f) {
				return e.cancel(ctx, ev, f)
			}
			consumed, err := f.step(ctx, e, sess, ev)
			if consumed || err != nil {
				return err
			}
			continue
		}
		consumed, err := f.enter(ctx, e, ev)
		if consumed || err != nil {
			return err
		}
	}

	switch {
	case ev.command() == "list", ev.isText() && ev.text == BtnList, ev.is(action.MenuList):
		return e.handleList(ctx, ev)
	case ev.is(action.MenuStart):
		return e.reply(ctx, ev, textMenu, mainMenu())
	case ev.is(action.Delete):
		return e.handleDelete(ctx, ev)
	case ev.is(action.Noop):
		return nil
	}
	ev.log.Trace("update not routed")
	return nil
}

func (e *Engine) isCancel(ev event, f flow) bool {
	if ev.command() == "cancel" {
		return true
	}
	return ev.is(action.Cancel) && ev.act.Scope == f.scope()
}

func (e *Engine) cancel(ctx context.Context, ev event, f flow) error {
	e.sessions.Clear(ev.chat, f.kind())
	e.observe(f.kind(), "cancel")
	return e.reply(ctx, ev, f.cancelText(), inline(rowMenu))
}

func (e *Engine) observe(f Flow, event string) {
	if e.obs != nil {
		e.obs.FlowEvent(f, event)
	}
}

// reply edits the originating message for callbacks and sends a new message
// for text input.
func (e *Engine) reply(ctx context.Context, ev event, text string, kb *kit.Keyboard) error {
	if ev.cb != nil && (kb == nil || len(kb.Reply) == 0) {
		ref := kit.MessageRef{ChatID: ev.cb.ChatID, ThreadID: ev.cb.ThreadID, MessageID: ev.cb.MessageID}
		return e.sender.EditText(ctx, ref, text, &kit.SendOptions{Keyboard: kb})
	}
	return e.send(ctx, ev, text, kb)
}

// send always posts a new message.
func (e *Engine) send(ctx context.Context, ev event, text string, kb *kit.Keyboard) error {
	to := kit.ChatTarget{ChatID: ev.chat}
	if ev.msg != nil {
		to.ThreadID = ev.msg.ThreadID
	} else if ev.cb != nil {
		to.ThreadID = ev.cb.ThreadID
	}
	_, err := e.sender.SendText(ctx, to, text, &kit.SendOptions{Keyboard: kb})
	return err
}

func (e *Engine) editKeyboard(ctx context.Context, ev event, kb *kit.Keyboard) error {
	if ev.cb == nil {
		return nil
	}
	ref := kit.MessageRef{ChatID: ev.cb.ChatID, ThreadID: ev.cb.ThreadID, MessageID: ev.cb.MessageID}
	return e.sender.EditKeyboard(ctx, ref, kb)
}
