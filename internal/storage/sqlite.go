//go:build sqlite
// +build sqlite

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
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"relaybot/internal/model"
	"relaybot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
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

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

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

func (s *sqliteStore) ListChannelIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM channels ORDER BY id`)
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

func (s *sqliteStore) GetChannel(ctx context.Context, id int64) (*model.Channel, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM channels WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ch model.Channel
	if err := json.Unmarshal([]byte(doc), &ch); err != nil {
		return nil, fmt.Errorf("channel %d: corrupt document: %w", id, err)
	}
	return &ch, nil
}

func (s *sqliteStore) PutChannel(ctx context.Context, ch *model.Channel) error {
	if ch == nil {
		return errors.New("nil channel")
	}
	doc, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO channels(id, doc) VALUES(?,?)
		 ON CONFLICT(id) DO UPDATE SET doc=excluded.doc`,
		ch.ID, string(doc),
	)
	return err
}

func (s *sqliteStore) DeleteChannel(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) TouchChannel(ctx context.Context, id int64, at time.Time) error {
	ch, err := s.GetChannel(ctx, id)
	if err != nil {
		return err
	}
	if !at.After(ch.LastCheck) {
		return nil
	}
	ch.LastCheck = at
	return s.PutChannel(ctx, ch)
}

func (s *sqliteStore) LedgerIDs(ctx context.Context, channelID int64, sourceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM ledger WHERE channel_id = ? AND source_id = ? ORDER BY seq`,
		channelID, sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) LedgerAppend(ctx context.Context, channelID int64, sourceID string, ids []string, maxLen int) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger(channel_id, source_id, item_id) VALUES(?,?,?)
			 ON CONFLICT(channel_id, source_id, item_id) DO NOTHING`,
			channelID, sourceID, id,
		); err != nil {
			return err
		}
	}
	if maxLen > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM ledger WHERE channel_id = ? AND source_id = ? AND seq NOT IN (
			     SELECT seq FROM ledger WHERE channel_id = ? AND source_id = ?
			     ORDER BY seq DESC LIMIT ?
			 )`,
			channelID, sourceID, channelID, sourceID, maxLen,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LedgerDelete(ctx context.Context, channelID int64, sourceID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ledger WHERE channel_id = ? AND source_id = ?`, channelID, sourceID)
	return err
}

func (s *sqliteStore) PutResolve(ctx context.Context, name, value string, until time.Time) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolve(name, value, until) VALUES(?,?,?)
		 ON CONFLICT(name) DO UPDATE SET value=excluded.value, until=excluded.until`,
		name, value, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, _ = s.db.ExecContext(pctx, `DELETE FROM resolve WHERE until < ?`, time.Now().UnixMilli())
		cancel()
	}
	return err
}

func (s *sqliteStore) GetResolve(ctx context.Context, name string) (string, bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var value string
	var until int64
	err := s.db.QueryRowContext(ctx, `SELECT value, until FROM resolve WHERE name = ?`, name).Scan(&value, &until)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if until < time.Now().UnixMilli() {
		return "", false, nil
	}
	return value, true, nil
}
