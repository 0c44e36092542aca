package conversation

import (
	"sync"
	"time"

	"deadlinebot/internal/deadline"
)

// Flow identifies one of the guided conversations.
type Flow string

const (
	FlowAdd      Flow = "add"
	FlowEditDate Flow = "edit_date"
	FlowEditName Flow = "edit_name"
	FlowSetTime  Flow = "set_time"
)

// State is the step a session is waiting in.
type State string

const (
	StateAddName   State = "add.name"
	StateAddDate   State = "add.date"
	StateAddRepeat State = "add.repeat"
	StateEditDate  State = "edit.date"
	StateEditName  State = "edit.name"
	StateSetTime   State = "settime.time"
)

// Session holds what a flow collected so far for one chat.
type Session struct {
	Chat     int64
	Flow     Flow
	State    State
	Name     string
	Due      deadline.Date
	TargetID string
	Updated  time.Time
}

type sessionKey struct {
	chat int64
	flow Flow
}

// Sessions is the in-memory session store keyed by (chat, flow). A zero TTL
// keeps sessions until their flow ends.
type Sessions struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[sessionKey]Session
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, now: time.Now, m: map[sessionKey]Session{}}
}

func (s *Sessions) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

func (s *Sessions) TTL() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl
}

func (s *Sessions) expiredLocked(v Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(v.Updated) > s.ttl
}

// Get returns the live session of flow in chat.
func (s *Sessions) Get(chat int64, flow Flow) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[sessionKey{chat, flow}]
	if !ok || s.expiredLocked(v, s.now()) {
		return Session{}, false
	}
	return v, true
}

// Put stores v, stamping Updated.
func (s *Sessions) Put(v Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.Updated = s.now()
	s.m[sessionKey{v.Chat, v.Flow}] = v
}

func (s *Sessions) Clear(chat int64, flow Flow) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey{chat, flow}
	_, ok := s.m[k]
	delete(s.m, k)
	return ok
}

// ClearChat drops every session of chat.
func (s *Sessions) ClearChat(chat int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.m {
		if k.chat == chat {
			delete(s.m, k)
			n++
		}
	}
	return n
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep removes expired sessions and reports how many were dropped.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl <= 0 {
		return 0
	}
	now := s.now()
	n := 0
	for k, v := range s.m {
		if s.expiredLocked(v, now) {
			delete(s.m, k)
			n++
		}
	}
	return n
}
