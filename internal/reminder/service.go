package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"deadlinebot/internal/deadline"
	kit "deadlinebot/internal/transport"
	"deadlinebot/pkg/logx"
)

const DefaultFireTimeout = 30 * time.Second

type Config struct {
	// Location of the daily wall-clock times. nil means time.Local.
	Location    *time.Location
	FireTimeout time.Duration
}

// Store is the slice of storage the scheduler reads.
type Store interface {
	deadline.Roller
	ReminderSettings(ctx context.Context) ([]deadline.ReminderSetting, error)
}

// Observer receives fire outcomes ("sent", "empty", "failed", "error").
type Observer interface {
	ReminderFired(outcome string, took time.Duration)
}

type entry struct {
	at      deadline.ReminderTime
	entryID cron.EntryID
}

// Service keeps exactly one daily cron entry per owner.
type Service struct {
	mu     sync.Mutex
	cfg    Config
	log    logx.Logger
	st     Store
	sender kit.Sender
	obs    Observer
	now    func() time.Time

	c       *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
	entries map[int64]*entry
}

func New(cfg Config, st Store, sender kit.Sender, obs Observer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.FireTimeout <= 0 {
		cfg.FireTimeout = DefaultFireTimeout
	}
	return &Service{
		cfg:     cfg,
		log:     log,
		st:      st,
		sender:  sender,
		obs:     obs,
		now:     time.Now,
		entries: map[int64]*entry{},
	}
}

// Apply updates runtime-tunable settings. The location is fixed for the
// lifetime of the service.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.FireTimeout > 0 {
		s.cfg.FireTimeout = cfg.FireTimeout
	}
}

// Start starts the cron runner. Entries scheduled before Start are kept and
// registered now.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for owner, e := range s.entries {
		if err := s.addLocked(owner, e); err != nil {
			s.log.Error("reminder register failed", logx.Int64("owner", owner), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", s.cfg.Location.String()), logx.Int("reminders", len(s.entries)))
}

// Stop stops triggering and cancels in-flight fires. Entries are kept so a
// later Start resumes them.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	for _, e := range s.entries {
		e.entryID = 0
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Schedule installs the daily reminder for owner at the given local time,
// replacing any previous one.
func (s *Service) Schedule(owner int64, at deadline.ReminderTime) error {
	if !at.Valid() {
		return fmt.Errorf("%w: %s", deadline.ErrInvalidTime, at)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[owner]; ok && s.c != nil && old.entryID != 0 {
		s.c.Remove(old.entryID)
	}
	e := &entry{at: at}
	s.entries[owner] = e
	if s.c == nil {
		return nil
	}
	if err := s.addLocked(owner, e); err != nil {
		delete(s.entries, owner)
		return err
	}
	s.log.Debug("reminder scheduled",
		logx.Int64("owner", owner), logx.String("at", at.String()),
		logx.Time("next", s.c.Entry(e.entryID).Next))
	return nil
}

// Remove drops owner's reminder. It reports whether one existed.
func (s *Service) Remove(owner int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[owner]
	if !ok {
		return false
	}
	if s.c != nil && e.entryID != 0 {
		s.c.Remove(e.entryID)
	}
	delete(s.entries, owner)
	return true
}

// ScheduleAll reinstalls every persisted reminder. It runs once at startup.
// Rows with an invalid time are logged and skipped; only a failed read of
// the settings is returned as an error.
func (s *Service) ScheduleAll(ctx context.Context) (int, error) {
	settings, err := s.st.ReminderSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("load reminder settings: %w", err)
	}
	n := 0
	for _, rs := range settings {
		if err := s.Schedule(rs.Owner, rs.ReminderTime); err != nil {
			s.log.Warn("skipping invalid reminder setting",
				logx.String("kind", "DataCorruption"), logx.Int64("owner", rs.Owner),
				logx.String("time", rs.ReminderTime.String()), logx.Err(err))
			continue
		}
		n++
	}
	s.log.Info("reminders restored", logx.Int("count", n), logx.Int("skipped", len(settings)-n))
	return n, nil
}

func (s *Service) addLocked(owner int64, e *entry) error {
	spec := fmt.Sprintf("%d %d * * *", e.at.Minute, e.at.Hour)
	id, err := s.c.AddFunc(spec, func() { s.fire(owner) })
	if err != nil {
		return err
	}
	e.entryID = id
	return nil
}

func (s *Service) fire(owner int64) {
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	if err := s.Fire(base, owner); err != nil {
		s.log.Warn("reminder fire failed", logx.Int64("owner", owner), logx.Err(err))
	}
}

// Fire rolls owner's recurring deadlines forward and sends the digest. A
// digest with nothing due within a week is not sent. Delivery failures are
// logged and swallowed.
func (s *Service) Fire(ctx context.Context, owner int64) error {
	start := time.Now()
	s.mu.Lock()
	timeout := s.cfg.FireTimeout
	loc := s.cfg.Location
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := s.log.With(logx.Int64("owner", owner))
	today := deadline.Today(s.now().In(loc))

	if _, err := deadline.Roll(ctx, s.st, owner, today, log); err != nil {
		s.observe("error", start)
		return err
	}
	items, err := s.st.ListDeadlines(ctx, owner)
	if err != nil {
		s.observe("error", start)
		return fmt.Errorf("list deadlines: %w", err)
	}
	text, ok := Digest(items, today)
	if !ok {
		s.observe("empty", start)
		log.Debug("nothing due, reminder skipped")
		return nil
	}

	opt := &kit.SendOptions{Keyboard: &kit.Keyboard{Inline: [][]kit.Button{{ListButton()}}}}
	if _, err := s.sender.SendText(ctx, kit.ChatTarget{ChatID: owner}, text, opt); err != nil {
		s.observe("failed", start)
		log.Warn("reminder delivery failed", logx.Err(err))
		return nil
	}
	s.observe("sent", start)
	log.Debug("reminder sent", logx.Duration("took", time.Since(start)))
	return nil
}

func (s *Service) observe(outcome string, start time.Time) {
	if s.obs != nil {
		s.obs.ReminderFired(outcome, time.Since(start))
	}
}

// EntryInfo describes one scheduled reminder.
type EntryInfo struct {
	Owner int64
	At    deadline.ReminderTime
	Next  time.Time
	Prev  time.Time
}

// Snapshot lists the scheduled reminders ordered by owner.
func (s *Service) Snapshot() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryInfo, 0, len(s.entries))
	for owner, e := range s.entries {
		it := EntryInfo{Owner: owner, At: e.at}
		if s.c != nil && e.entryID != 0 {
			ce := s.c.Entry(e.entryID)
			it.Next, it.Prev = ce.Next, ce.Prev
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Len reports the number of owners with a reminder.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
