package storage

import (
	"context"
	"errors"
	"time"

	"deadlinebot/internal/deadline"
)

var (
	ErrDuplicateID = errors.New("deadline id already exists")
	ErrClosed      = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values: "sqlite" (default when empty), "file", "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the conversation engine and the
// reminder scheduler. Update and delete methods report ok=false when the
// (id, owner) pair does not exist and mutate nothing in that case.
type Store interface {
	AddDeadline(ctx context.Context, d deadline.Deadline) error
	// ListDeadlines returns owner's deadlines in insertion order.
	ListDeadlines(ctx context.Context, owner int64) ([]deadline.Deadline, error)
	GetDeadline(ctx context.Context, id string, owner int64) (deadline.Deadline, bool, error)
	DeleteDeadline(ctx context.Context, id string, owner int64) (name string, ok bool, err error)
	UpdateDate(ctx context.Context, id string, owner int64, due string) (name string, ok bool, err error)
	// AdvanceDate sets the date to to only if it still equals from. ok is
	// false when the record is gone or its date changed since it was read.
	AdvanceDate(ctx context.Context, id string, owner int64, from, to string) (ok bool, err error)
	UpdateName(ctx context.Context, id string, owner int64, name string) (oldName string, ok bool, err error)

	// ReminderTime returns deadline.DefaultReminderTime when owner has no row.
	ReminderTime(ctx context.Context, owner int64) (deadline.ReminderTime, error)
	SetReminderTime(ctx context.Context, owner int64, t deadline.ReminderTime) error
	ReminderSettings(ctx context.Context) ([]deadline.ReminderSetting, error)

	Close() error
}
