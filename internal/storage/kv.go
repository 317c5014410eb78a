package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLKV is a durable string store on the kv table. It satisfies the
// standalone host's Storage contract, so previews and the CLI can keep
// learner state in sqlite or postgres instead of browser storage.
type SQLKV struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

func NewSQLKV(db *sql.DB) *SQLKV {
	return &SQLKV{db: db, timeout: 5 * time.Second, now: time.Now}
}

func (s *SQLKV) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Available pings the database.
func (s *SQLKV) Available() bool {
	if s == nil || s.db == nil {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.db.PingContext(ctx) == nil
}

func (s *SQLKV) GetItem(key string) (string, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLKV) SetItem(key, value string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES ($1,$2,$3)
		 ON CONFLICT (key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, s.now().Unix())
	return err
}

func (s *SQLKV) RemoveItem(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key=$1`, key)
	return err
}
