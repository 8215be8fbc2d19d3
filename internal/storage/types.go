package storage

import (
	"context"
	"errors"
	"time"

	"relaybot/internal/model"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON document backend
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the relay core.
//
// The ledger methods implement the bounded delivered-id set: LedgerAppend
// keeps at most maxLen ids per (channel, source), evicting oldest first.
// LedgerIDs returns ids oldest-first.
type Store interface {
	ListChannelIDs(ctx context.Context) ([]int64, error)
	GetChannel(ctx context.Context, id int64) (*model.Channel, error)
	PutChannel(ctx context.Context, ch *model.Channel) error
	DeleteChannel(ctx context.Context, id int64) error

	// TouchChannel advances the channel's last-check timestamp. It never
	// moves the timestamp backwards.
	TouchChannel(ctx context.Context, id int64, at time.Time) error

	LedgerIDs(ctx context.Context, channelID int64, sourceID string) ([]string, error)
	LedgerAppend(ctx context.Context, channelID int64, sourceID string, ids []string, maxLen int) error
	LedgerDelete(ctx context.Context, channelID int64, sourceID string) error

	// Resolve cache: expensive name→internal-id lookups with a TTL.
	PutResolve(ctx context.Context, name, value string, until time.Time) error
	GetResolve(ctx context.Context, name string) (value string, ok bool, err error)

	Close() error
}
