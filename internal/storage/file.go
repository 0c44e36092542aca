package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"deadlinebot/internal/deadline"
	"deadlinebot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.snapshot.json (full table, rewritten on compaction)
//   - <prefix>.journal.jsonl  (append-only mutation log)
//
// On open the snapshot is loaded and the journal replayed on top of it.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex
	t  *table

	snapshotPath string
	journal      *os.File
	writes       int
	compactEvery int
}

type journalOp string

const (
	opAdd    journalOp = "add"
	opDelete journalOp = "del"
	opDate   journalOp = "date"
	opName   journalOp = "name"
	opRemind journalOp = "remind"
)

type journalRecord struct {
	Op       journalOp              `json:"op"`
	Deadline *deadline.Deadline     `json:"deadline,omitempty"`
	ID       string                 `json:"id,omitempty"`
	Owner    int64                  `json:"owner"`
	Value    string                 `json:"value,omitempty"`
	Remind   *deadline.ReminderTime `json:"remind,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	journalPath := prefix + ".journal.jsonl"

	t := newTable()
	if err := loadSnapshot(snapPath, t); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	n, err := replayJournal(journalPath, t)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	log.Debug("file store ready", logx.String("snapshot", snapPath), logx.Int("replayed", n))
	return &fileStore{
		log:          log,
		t:            t,
		snapshotPath: snapPath,
		journal:      jf,
		compactEvery: 500,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	if err := s.compactLocked(); err != nil {
		s.log.Warn("compact on close failed", logx.Err(err))
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func (s *fileStore) lock() error {
	s.mu.Lock()
	if s.journal == nil {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// appendLocked journals r. The in-memory table is already updated.
func (s *fileStore) appendLocked(r journalRecord) error {
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%s.compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) AddDeadline(_ context.Context, d deadline.Deadline) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if err := s.t.add(d); err != nil {
		return err
	}
	return s.appendLocked(journalRecord{Op: opAdd, Deadline: &d, Owner: d.Owner})
}

func (s *fileStore) ListDeadlines(_ context.Context, owner int64) ([]deadline.Deadline, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.t.list(owner), nil
}

func (s *fileStore) GetDeadline(_ context.Context, id string, owner int64) (deadline.Deadline, bool, error) {
	if err := s.lock(); err != nil {
		return deadline.Deadline{}, false, err
	}
	defer s.mu.Unlock()
	if i := s.t.find(id, owner); i >= 0 {
		return s.t.Deadlines[i], true, nil
	}
	return deadline.Deadline{}, false, nil
}

func (s *fileStore) DeleteDeadline(_ context.Context, id string, owner int64) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	name, ok := s.t.del(id, owner)
	if !ok {
		return "", false, nil
	}
	return name, true, s.appendLocked(journalRecord{Op: opDelete, ID: id, Owner: owner})
}

func (s *fileStore) UpdateDate(_ context.Context, id string, owner int64, due string) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	name, ok := s.t.setDate(id, owner, due)
	if !ok {
		return "", false, nil
	}
	return name, true, s.appendLocked(journalRecord{Op: opDate, ID: id, Owner: owner, Value: due})
}

func (s *fileStore) AdvanceDate(_ context.Context, id string, owner int64, from, to string) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	if !s.t.advanceDate(id, owner, from, to) {
		return false, nil
	}
	return true, s.appendLocked(journalRecord{Op: opDate, ID: id, Owner: owner, Value: to})
}

func (s *fileStore) UpdateName(_ context.Context, id string, owner int64, name string) (string, bool, error) {
	if err := s.lock(); err != nil {
		return "", false, err
	}
	defer s.mu.Unlock()
	old, ok := s.t.setName(id, owner, name)
	if !ok {
		return "", false, nil
	}
	return old, true, s.appendLocked(journalRecord{Op: opName, ID: id, Owner: owner, Value: name})
}

func (s *fileStore) ReminderTime(_ context.Context, owner int64) (deadline.ReminderTime, error) {
	if err := s.lock(); err != nil {
		return deadline.ReminderTime{}, err
	}
	defer s.mu.Unlock()
	return s.t.reminderTime(owner), nil
}

func (s *fileStore) SetReminderTime(_ context.Context, owner int64, rt deadline.ReminderTime) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.t.Settings[owner] = rt
	return s.appendLocked(journalRecord{Op: opRemind, Owner: owner, Remind: &rt})
}

func (s *fileStore) ReminderSettings(_ context.Context) ([]deadline.ReminderSetting, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.t.settings(), nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.t); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, 2)
	return err
}

func loadSnapshot(path string, t *table) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return err
	}
	if t.Settings == nil {
		t.Settings = map[int64]deadline.ReminderTime{}
	}
	return nil
}

// replayJournal applies journal records to t. Malformed lines are skipped.
func replayJournal(path string, t *table) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		switch r.Op {
		case opAdd:
			if r.Deadline != nil {
				_ = t.add(*r.Deadline)
			}
		case opDelete:
			t.del(r.ID, r.Owner)
		case opDate:
			t.setDate(r.ID, r.Owner, r.Value)
		case opName:
			t.setName(r.ID, r.Owner, r.Value)
		case opRemind:
			if r.Remind != nil {
				t.Settings[r.Owner] = *r.Remind
			}
		default:
			continue
		}
		n++
	}
	return n, sc.Err()
}
