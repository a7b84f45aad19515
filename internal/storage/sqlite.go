package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	logx "pubcast/pkg/logx"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	at          TEXT    NOT NULL,
	id          INTEGER NOT NULL,
	channel     TEXT    NOT NULL,
	origin      TEXT    NOT NULL,
	sender      TEXT,
	kind        TEXT    NOT NULL,
	text        TEXT,
	media_bytes INTEGER NOT NULL DEFAULT 0,
	show_text   INTEGER NOT NULL DEFAULT 1,
	variant     TEXT,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_id ON posts(id);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	retain     int
	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, retain: cfg.Retain, pruneEvery: 100}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendPost(ctx context.Context, e PostEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	showText := 0
	if e.ShowText {
		showText = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts(at, id, channel, origin, sender, kind, text, media_bytes, show_text, variant, duration_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.ID, e.Channel, e.Origin, nullStr(e.Sender), e.Kind,
		nullStr(e.Text), e.MediaBytes, showText, nullStr(e.Variant), e.DurationMS,
	)
	if err == nil && s.retain > 0 && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if perr := s.prune(pctx); perr != nil {
			s.log.Debug("posts prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) RecentPosts(ctx context.Context, n int) ([]PostEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, id, channel, origin, sender, kind, text, media_bytes, show_text, variant, duration_ms
		 FROM posts ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PostEntry
	for rows.Next() {
		var (
			e                     PostEntry
			at                    string
			sender, text, variant sql.NullString
			showText              int
		)
		if err := rows.Scan(&at, &e.ID, &e.Channel, &e.Origin, &sender, &e.Kind, &text,
			&e.MediaBytes, &showText, &variant, &e.DurationMS); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Sender = sender.String
		e.Text = text.String
		e.Variant = variant.String
		e.ShowText = showText != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM posts WHERE seq <= (SELECT seq FROM posts ORDER BY seq DESC LIMIT 1 OFFSET ?)`,
		s.retain)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
