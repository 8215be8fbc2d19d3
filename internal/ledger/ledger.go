// Package ledger tracks which item ids have already been delivered for each
// (channel, source) pair.
//
// It stores a bounded ordered set of recently delivered ids rather than a
// single "last seen" pointer: upstream ordering is not guaranteed monotonic,
// and a single watermark either misses or duplicates items when the upstream
// reorders or backfills.
package ledger

import (
	"context"

	"relaybot/internal/model"
	"relaybot/internal/storage"
)

type Ledger struct {
	store  storage.Store
	maxLen int
}

func New(store storage.Store, maxLen int) *Ledger {
	if maxLen <= 0 {
		maxLen = 50
	}
	return &Ledger{store: store, maxLen: maxLen}
}

func (l *Ledger) HasSeen(ctx context.Context, channelID int64, sourceID, itemID string) (bool, error) {
	ids, err := l.store.LedgerIDs(ctx, channelID, sourceID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == itemID {
			return true, nil
		}
	}
	return false, nil
}

// RecordSent appends ids of confirmed (or degraded-fallback) sends.
// A fully failed item must never be recorded: that guarantees it is retried
// on the next cycle instead of lost.
func (l *Ledger) RecordSent(ctx context.Context, channelID int64, sourceID string, ids []string) error {
	return l.store.LedgerAppend(ctx, channelID, sourceID, ids, l.maxLen)
}

// SeedAll marks every current item as seen without delivering anything.
// Used when a source is first registered so the backlog is not flooded into
// the channel.
func (l *Ledger) SeedAll(ctx context.Context, channelID int64, sourceID string, items []model.Item) error {
	ids := make([]string, 0, len(items))
	// Items arrive newest-first; store oldest-first so eviction drops the
	// oldest ids.
	for i := len(items) - 1; i >= 0; i-- {
		ids = append(ids, items[i].ID)
	}
	return l.store.LedgerAppend(ctx, channelID, sourceID, ids, l.maxLen)
}

// SelectNew picks the delivery candidates from a freshly fetched,
// newest-first item list: it scans from the newest item until it reaches one
// whose id is already recorded (or exhausts the page), then returns the
// unseen prefix oldest-first, capped to burst.
//
// Items beyond the burst cap remain undelivered and are reconsidered next
// cycle. If more than the fetch page publishes between two polls, older
// backlog items scroll past the page window and are skipped. That is a
// best-effort boundary, not silent loss within the window.
func (l *Ledger) SelectNew(ctx context.Context, channelID int64, sourceID string, items []model.Item, burst int) ([]model.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	stored, err := l.store.LedgerIDs(ctx, channelID, sourceID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		seen[id] = struct{}{}
	}

	var fresh []model.Item
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			break
		}
		fresh = append(fresh, it)
	}

	// Oldest first, to preserve reading order.
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	if burst > 0 && len(fresh) > burst {
		fresh = fresh[:burst]
	}
	return fresh, nil
}
