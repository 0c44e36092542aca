package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"deadlinebot/internal/deadline"
)

// table is the in-memory data set shared by the memory and file drivers.
// Callers hold the owning store's mutex.
type table struct {
	Deadlines []deadline.Deadline            `json:"deadlines"`
	Settings  map[int64]deadline.ReminderTime `json:"settings"`
}

func newTable() *table {
	return &table{Settings: map[int64]deadline.ReminderTime{}}
}

func (t *table) find(id string, owner int64) int {
	for i, d := range t.Deadlines {
		if d.ID == id && d.Owner == owner {
			return i
		}
	}
	return -1
}

func (t *table) add(d deadline.Deadline) error {
	for _, x := range t.Deadlines {
		if x.ID == d.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
		}
	}
	t.Deadlines = append(t.Deadlines, d)
	return nil
}

func (t *table) list(owner int64) []deadline.Deadline {
	var out []deadline.Deadline
	for _, d := range t.Deadlines {
		if d.Owner == owner {
			out = append(out, d)
		}
	}
	return out
}

func (t *table) del(id string, owner int64) (string, bool) {
	i := t.find(id, owner)
	if i < 0 {
		return "", false
	}
	name := t.Deadlines[i].Name
	t.Deadlines = append(t.Deadlines[:i], t.Deadlines[i+1:]...)
	return name, true
}

func (t *table) setDate(id string, owner int64, due string) (string, bool) {
	i := t.find(id, owner)
	if i < 0 {
		return "", false
	}
	t.Deadlines[i].Due = due
	return t.Deadlines[i].Name, true
}

// advanceDate sets the date only while it still equals from.
func (t *table) advanceDate(id string, owner int64, from, to string) bool {
	i := t.find(id, owner)
	if i < 0 || t.Deadlines[i].Due != from {
		return false
	}
	t.Deadlines[i].Due = to
	return true
}

func (t *table) setName(id string, owner int64, name string) (string, bool) {
	i := t.find(id, owner)
	if i < 0 {
		return "", false
	}
	old := t.Deadlines[i].Name
	t.Deadlines[i].Name = name
	return old, true
}

func (t *table) reminderTime(owner int64) deadline.ReminderTime {
	if rt, ok := t.Settings[owner]; ok {
		return rt
	}
	return deadline.DefaultReminderTime
}

func (t *table) settings() []deadline.ReminderSetting {
	out := make([]deadline.ReminderSetting, 0, len(t.Settings))
	for owner, rt := range t.Settings {
		out = append(out, deadline.ReminderSetting{Owner: owner, ReminderTime: rt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// memStore keeps everything in process memory.
type memStore struct {
	mu     sync.Mutex
	t      *table
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{t: newTable()}
}

func (s *memStore) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func (s *memStore) AddDeadline(_ context.Context, d deadline.Deadline) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.t.add(d)
}

func (s *memStore) ListDeadlines(_ context.Context, owner int64) ([]deadline.Deadline, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.t.list(owner), nil
}

func (s *memStore) GetDeadline(_ context.Context, id string, owner int64) (deadline.Deadline, bool, error) {
	if err := s.lock(); err != nil {
		return deadline.Deadline{}, false, err
	}
	defer s.mu.Unlock()
	if i := s.t.find(id, owner); i >= 0 {
		return s.t.Deadlines[i], true, nil
	}
	return deadline.Deadline{}, false, nil
}

func (s *memStore) DeleteDeadline(_ context.Context, id string, owner int64) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	name, ok := s.t.del(id, owner)
	return name, ok, nil
}

func (s *memStore) UpdateDate(_ context.Context, id string, owner int64, due string) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	name, ok := s.t.setDate(id, owner, due)
	return name, ok, nil
}

func (s *memStore) AdvanceDate(_ context.Context, id string, owner int64, from, to string) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.t.advanceDate(id, owner, from, to), nil
}

func (s *memStore) UpdateName(_ context.Context, id string, owner int64, name string) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	old, ok := s.t.setName(id, owner, name)
	return old, ok, nil
}

func (s *memStore) ReminderTime(_ context.Context, owner int64) (deadline.ReminderTime, error) {
	if err := s.lock(); err != nil {
		return deadline.ReminderTime{}, err
	}
	defer s.mu.Unlock()
	return s.t.reminderTime(owner), nil
}

func (s *memStore) SetReminderTime(_ context.Context, owner int64, rt deadline.ReminderTime) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.t.Settings[owner] = rt
	return nil
}

func (s *memStore) ReminderSettings(_ context.Context) ([]deadline.ReminderSetting, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.t.settings(), nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
