package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"herald/internal/transport"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func openSQLite(cfg Config, log zerolog.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertSubscriber(ctx context.Context, sub Subscriber) (bool, error) {
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now()
	}
	// A single atomic insert decides created; concurrent upserts of the same
	// user can never trip the primary key constraint.
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscribers(user_id, first_name, last_name, username, subscribed_at)
		 VALUES(?,?,?,?,?)`,
		sub.ID, sub.FirstName, sub.LastName, sub.Username, sub.SubscribedAt.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// Refresh display metadata; keep the original subscription time.
	_, err = s.db.ExecContext(ctx,
		`UPDATE subscribers SET first_name=?, last_name=?, username=? WHERE user_id=?`,
		sub.FirstName, sub.LastName, sub.Username, sub.ID,
	)
	return false, err
}

func (s *sqliteStore) RemoveSubscriber(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE user_id = ?`, id)
	return err
}

func (s *sqliteStore) GetSubscriber(ctx context.Context, id int64) (Subscriber, error) {
	var sub Subscriber
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, first_name, last_name, username, subscribed_at FROM subscribers WHERE user_id = ?`, id,
	).Scan(&sub.ID, &sub.FirstName, &sub.LastName, &sub.Username, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscriber{}, ErrNotFound
	}
	if err != nil {
		return Subscriber{}, err
	}
	sub.SubscribedAt = time.UnixMilli(ms)
	return sub, nil
}

func (s *sqliteStore) SubscriberIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM subscribers ORDER BY subscribed_at, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n)
	return n, err
}

func (s *sqliteStore) InsertJob(ctx context.Context, j Job) error {
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	var buttons any
	if len(j.Buttons) > 0 {
		b, err := json.Marshal(j.Buttons)
		if err != nil {
			return err
		}
		buttons = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(id, source_chat, message_id, mode, buttons, due_at, report_to, created_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		j.ID, j.SourceChat, j.MessageID, j.Mode, buttons,
		j.DueAt.UnixMilli(), j.ReportTo, j.CreatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) DueJobs(ctx context.Context, asOf time.Time) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_chat, message_id, mode, buttons, due_at, report_to, created_at
		 FROM jobs WHERE due_at <= ? ORDER BY due_at, id`,
		asOf.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var buttons sql.NullString
		var dueAt, createdAt int64
		if err := rows.Scan(&j.ID, &j.SourceChat, &j.MessageID, &j.Mode, &buttons, &dueAt, &j.ReportTo, &createdAt); err != nil {
			return nil, err
		}
		if buttons.Valid && buttons.String != "" {
			var bs []transport.Button
			if err := json.Unmarshal([]byte(buttons.String), &bs); err != nil {
				s.log.Warn().Str("job", j.ID).Err(err).Msg("dropping unreadable job buttons")
			} else {
				j.Buttons = bs
			}
		}
		j.DueAt = time.UnixMilli(dueAt)
		j.CreatedAt = time.UnixMilli(createdAt)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *sqliteStore) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) DeleteAllJobs(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
