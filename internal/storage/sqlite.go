package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deadlinebot/internal/deadline"
	"deadlinebot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return err
	}
	return s.ensureColumns(ctx)
}

// ensureColumns upgrades databases created before recurrence existed.
func (s *sqliteStore) ensureColumns(ctx context.Context) error {
	required := map[string]string{
		"repeat": "ALTER TABLE deadlines ADD COLUMN repeat TEXT",
	}
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(deadlines)`)
	if err != nil {
		return err
	}
	existing := map[string]struct{}{}
	for rows.Next() {
		var (
			cid         int
			name, ctype string
			notnull, pk int
			dflt        sql.NullString
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			_ = rows.Close()
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return err
		}
		s.log.Info("sqlite column added", logx.String("table", "deadlines"), logx.String("column", col))
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AddDeadline(ctx context.Context, d deadline.Deadline) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deadlines(id, user_id, name, date, repeat) VALUES(?,?,?,?,?)`,
		d.ID, d.Owner, d.Name, d.Due, nullStr(string(d.Recurrence)),
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
	}
	return err
}

func (s *sqliteStore) ListDeadlines(ctx context.Context, owner int64) ([]deadline.Deadline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, date, repeat FROM deadlines WHERE user_id = ? ORDER BY rowid`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deadline.Deadline
	for rows.Next() {
		d := deadline.Deadline{Owner: owner}
		var rep sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &d.Due, &rep); err != nil {
			return nil, err
		}
		d.Recurrence = deadline.ParseRecurrence(rep.String)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetDeadline(ctx context.Context, id string, owner int64) (deadline.Deadline, bool, error) {
	d := deadline.Deadline{ID: id, Owner: owner}
	var rep sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT name, date, repeat FROM deadlines WHERE id = ? AND user_id = ?`, id, owner,
	).Scan(&d.Name, &d.Due, &rep)
	if errors.Is(err, sql.ErrNoRows) {
		return deadline.Deadline{}, false, nil
	}
	if err != nil {
		return deadline.Deadline{}, false, err
	}
	d.Recurrence = deadline.ParseRecurrence(rep.String)
	return d, true, nil
}

func (s *sqliteStore) DeleteDeadline(ctx context.Context, id string, owner int64) (string, bool, error) {
	return s.mutate(ctx, id, owner, `DELETE FROM deadlines WHERE id = ? AND user_id = ?`)
}

func (s *sqliteStore) UpdateDate(ctx context.Context, id string, owner int64, due string) (string, bool, error) {
	return s.mutate(ctx, id, owner, `UPDATE deadlines SET date = ? WHERE id = ? AND user_id = ?`, due)
}

func (s *sqliteStore) AdvanceDate(ctx context.Context, id string, owner int64, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deadlines SET date = ? WHERE id = ? AND user_id = ? AND date = ?`, to, id, owner, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteStore) UpdateName(ctx context.Context, id string, owner int64, name string) (string, bool, error) {
	return s.mutate(ctx, id, owner, `UPDATE deadlines SET name = ? WHERE id = ? AND user_id = ?`, name)
}

// mutate reads the current name and applies stmt in one transaction.
// stmt receives args followed by id and owner.
func (s *sqliteStore) mutate(ctx context.Context, id string, owner int64, stmt string, args ...any) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	err = tx.QueryRowContext(ctx, `SELECT name FROM deadlines WHERE id = ? AND user_id = ?`, id, owner).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if _, err := tx.ExecContext(ctx, stmt, append(args, id, owner)...); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (s *sqliteStore) ReminderTime(ctx context.Context, owner int64) (deadline.ReminderTime, error) {
	var t deadline.ReminderTime
	err := s.db.QueryRowContext(ctx,
		`SELECT remind_hour, remind_min FROM settings WHERE user_id = ?`, owner,
	).Scan(&t.Hour, &t.Minute)
	if errors.Is(err, sql.ErrNoRows) {
		return deadline.DefaultReminderTime, nil
	}
	if err != nil {
		return deadline.ReminderTime{}, err
	}
	return t, nil
}

func (s *sqliteStore) SetReminderTime(ctx context.Context, owner int64, t deadline.ReminderTime) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(user_id, remind_hour, remind_min) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET remind_hour=excluded.remind_hour, remind_min=excluded.remind_min`,
		owner, t.Hour, t.Minute,
	)
	return err
}

func (s *sqliteStore) ReminderSettings(ctx context.Context) ([]deadline.ReminderSetting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, remind_hour, remind_min FROM settings ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deadline.ReminderSetting
	for rows.Next() {
		var rs deadline.ReminderSetting
		if err := rows.Scan(&rs.Owner, &rs.Hour, &rs.Minute); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: deadlines.id")
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
