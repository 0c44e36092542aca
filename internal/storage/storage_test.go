package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"deadlinebot/internal/deadline"
	"deadlinebot/pkg/logx"
)

func openDriver(t *testing.T, driver string) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deadlines.db")
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

var drivers = []string{"sqlite", "file", "memory"}

func TestStoreDeadlines(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st, _ := openDriver(t, driver)

			items := []deadline.Deadline{
				{ID: "aaaa0001", Owner: 1, Name: "Exam", Due: "01.01.2020", Recurrence: deadline.RepeatWeekly},
				{ID: "aaaa0002", Owner: 1, Name: "Rent", Due: "05.11.2026", Recurrence: deadline.RepeatMonthly},
				{ID: "aaaa0003", Owner: 2, Name: "Other", Due: "10.11.2026"},
				{ID: "aaaa0004", Owner: 1, Name: "Once", Due: "03.11.2026"},
			}
			for _, d := range items {
				if err := st.AddDeadline(ctx, d); err != nil {
					t.Fatalf("AddDeadline(%s): %v", d.ID, err)
				}
			}

			dup := deadline.Deadline{ID: "aaaa0003", Owner: 1, Name: "Dup", Due: "01.01.2027"}
			if err := st.AddDeadline(ctx, dup); !errors.Is(err, ErrDuplicateID) {
				t.Fatalf("duplicate add err = %v, want ErrDuplicateID", err)
			}

			got, err := st.ListDeadlines(ctx, 1)
			if err != nil {
				t.Fatalf("ListDeadlines: %v", err)
			}
			if len(got) != 3 || got[0].ID != "aaaa0001" || got[2].ID != "aaaa0004" {
				t.Fatalf("ListDeadlines(1) = %+v", got)
			}
			if got[0].Recurrence != deadline.RepeatWeekly || got[2].Recurrence != deadline.RepeatNone {
				t.Fatalf("recurrence not preserved: %+v", got)
			}

			if _, ok, _ := st.GetDeadline(ctx, "aaaa0003", 1); ok {
				t.Fatal("GetDeadline crossed owners")
			}
			d, ok, err := st.GetDeadline(ctx, "aaaa0002", 1)
			if err != nil || !ok || d.Name != "Rent" {
				t.Fatalf("GetDeadline = %+v, %v, %v", d, ok, err)
			}

			name, ok, err := st.UpdateDate(ctx, "aaaa0002", 1, "05.12.2026")
			if err != nil || !ok || name != "Rent" {
				t.Fatalf("UpdateDate = %q, %v, %v", name, ok, err)
			}
			old, ok, err := st.UpdateName(ctx, "aaaa0002", 1, "Аренда")
			if err != nil || !ok || old != "Rent" {
				t.Fatalf("UpdateName = %q, %v, %v", old, ok, err)
			}
			d, _, _ = st.GetDeadline(ctx, "aaaa0002", 1)
			if d.Name != "Аренда" || d.Due != "05.12.2026" {
				t.Fatalf("after update = %+v", d)
			}

			if _, ok, _ := st.UpdateDate(ctx, "aaaa0003", 1, "01.01.2030"); ok {
				t.Fatal("UpdateDate crossed owners")
			}
			if _, ok, _ := st.UpdateName(ctx, "missing", 1, "x"); ok {
				t.Fatal("UpdateName on missing id reported ok")
			}

			name, ok, err = st.DeleteDeadline(ctx, "aaaa0001", 1)
			if err != nil || !ok || name != "Exam" {
				t.Fatalf("DeleteDeadline = %q, %v, %v", name, ok, err)
			}
			if _, ok, _ := st.DeleteDeadline(ctx, "aaaa0001", 1); ok {
				t.Fatal("second delete reported ok")
			}
			got, _ = st.ListDeadlines(ctx, 1)
			if len(got) != 2 {
				t.Fatalf("after delete len = %d", len(got))
			}
		})
	}
}

func TestStoreReminderSettings(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st, _ := openDriver(t, driver)

			rt, err := st.ReminderTime(ctx, 7)
			if err != nil || rt != deadline.DefaultReminderTime {
				t.Fatalf("default ReminderTime = %v, %v", rt, err)
			}
			if err := st.SetReminderTime(ctx, 7, deadline.ReminderTime{Hour: 21, Minute: 30}); err != nil {
				t.Fatalf("SetReminderTime: %v", err)
			}
			if err := st.SetReminderTime(ctx, 7, deadline.ReminderTime{Hour: 8, Minute: 5}); err != nil {
				t.Fatalf("SetReminderTime overwrite: %v", err)
			}
			if err := st.SetReminderTime(ctx, 3, deadline.ReminderTime{Hour: 9, Minute: 0}); err != nil {
				t.Fatalf("SetReminderTime: %v", err)
			}
			rt, _ = st.ReminderTime(ctx, 7)
			if rt.String() != "08:05" {
				t.Fatalf("ReminderTime = %s", rt)
			}
			all, err := st.ReminderSettings(ctx)
			if err != nil {
				t.Fatalf("ReminderSettings: %v", err)
			}
			if len(all) != 2 || all[0].Owner != 3 || all[1].Owner != 7 || all[1].String() != "08:05" {
				t.Fatalf("ReminderSettings = %+v", all)
			}
		})
	}
}

func TestStoreAdvanceDate(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st, _ := openDriver(t, driver)
			_ = st.AddDeadline(ctx, deadline.Deadline{ID: "c1", Owner: 3, Name: "Gym", Due: "01.01.2020", Recurrence: deadline.RepeatWeekly})

			if ok, err := st.AdvanceDate(ctx, "c1", 3, "01.01.2020", "11.03.2026"); err != nil || !ok {
				t.Fatalf("AdvanceDate = %v, %v", ok, err)
			}
			// stale from value: the date moved on since it was read
			if ok, err := st.AdvanceDate(ctx, "c1", 3, "01.01.2020", "18.03.2026"); err != nil || ok {
				t.Fatalf("stale AdvanceDate = %v, %v, want false", ok, err)
			}
			if ok, _ := st.AdvanceDate(ctx, "c1", 4, "11.03.2026", "18.03.2026"); ok {
				t.Fatal("AdvanceDate crossed owners")
			}
			if ok, _ := st.AdvanceDate(ctx, "gone", 3, "11.03.2026", "18.03.2026"); ok {
				t.Fatal("AdvanceDate on missing id reported ok")
			}
			d, _, _ := st.GetDeadline(ctx, "c1", 3)
			if d.Due != "11.03.2026" {
				t.Fatalf("due = %s, want 11.03.2026", d.Due)
			}
		})
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"sqlite", "file"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "deadlines.db")
			cfg := Config{Driver: driver, Path: path}

			st, err := Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			_ = st.AddDeadline(ctx, deadline.Deadline{ID: "b1", Owner: 5, Name: "A", Due: "01.02.2027", Recurrence: deadline.RepeatMonthly})
			_ = st.AddDeadline(ctx, deadline.Deadline{ID: "b2", Owner: 5, Name: "B", Due: "02.02.2027"})
			_, _, _ = st.UpdateName(ctx, "b2", 5, "B2")
			_, _, _ = st.DeleteDeadline(ctx, "b1", 5)
			_, _ = st.AdvanceDate(ctx, "b2", 5, "02.02.2027", "09.02.2027")
			_ = st.SetReminderTime(ctx, 5, deadline.ReminderTime{Hour: 7, Minute: 15})
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			st, err = Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer st.Close()
			got, _ := st.ListDeadlines(ctx, 5)
			if len(got) != 1 || got[0].ID != "b2" || got[0].Name != "B2" || got[0].Due != "09.02.2027" {
				t.Fatalf("after reopen = %+v", got)
			}
			rt, _ := st.ReminderTime(ctx, 5)
			if rt.String() != "07:15" {
				t.Fatalf("reminder after reopen = %s", rt)
			}
		})
	}
}

func TestClosedStore(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "memory"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "x.db")}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		_ = st.Close()
		if _, err := st.ListDeadlines(context.Background(), 1); !errors.Is(err, ErrClosed) {
			t.Fatalf("%s: ListDeadlines after close err = %v", driver, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
