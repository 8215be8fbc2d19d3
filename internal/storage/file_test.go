package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"relaybot/internal/model"
	"relaybot/pkg/logx"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestChannelRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ch := &model.Channel{
		ID:              -100123,
		Title:           "news",
		Enabled:         true,
		IntervalMinutes: 30,
		Sources: []model.Source{{
			ID:      model.SourceID(model.KindFeed, "https://example.org/feed"),
			Kind:    model.KindFeed,
			Value:   "https://example.org/feed",
			Enabled: true,
		}},
	}
	if err := s.PutChannel(ctx, ch); err != nil {
		t.Fatalf("PutChannel: %v", err)
	}

	got, err := s.GetChannel(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if got.Title != "news" || len(got.Sources) != 1 || got.Sources[0].Kind != model.KindFeed {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}

	ids, err := s.ListChannelIDs(ctx)
	if err != nil {
		t.Fatalf("ListChannelIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != ch.ID {
		t.Fatalf("ids = %v", ids)
	}

	if err := s.DeleteChannel(ctx, ch.ID); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if _, err := s.GetChannel(ctx, ch.ID); err != ErrNotFound {
		t.Fatalf("after delete err = %v, want ErrNotFound", err)
	}
	ids, _ = s.ListChannelIDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("ids after delete = %v", ids)
	}
}

func TestTouchChannelNeverRegresses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ch := &model.Channel{ID: 1, Enabled: true}
	if err := s.PutChannel(ctx, ch); err != nil {
		t.Fatal(err)
	}

	later := time.Now()
	earlier := later.Add(-time.Hour)

	if err := s.TouchChannel(ctx, 1, later); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchChannel(ctx, 1, earlier); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetChannel(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastCheck.Equal(later) {
		t.Fatalf("LastCheck = %v, want %v (no regression)", got.LastCheck, later)
	}

	if err := s.TouchChannel(ctx, 99, later); err != ErrNotFound {
		t.Fatalf("touching missing channel err = %v, want ErrNotFound", err)
	}
}

func TestLedgerBoundedAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const src = "feed:https://example.org/feed"

	var all []string
	for i := 0; i < 60; i++ {
		all = append(all, fmt.Sprintf("item-%02d", i))
	}
	if err := s.LedgerAppend(ctx, 1, src, all, 50); err != nil {
		t.Fatal(err)
	}

	ids, err := s.LedgerIDs(ctx, 1, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 50 {
		t.Fatalf("len = %d, want 50", len(ids))
	}
	if ids[0] != "item-10" || ids[49] != "item-59" {
		t.Fatalf("eviction should drop oldest: first=%s last=%s", ids[0], ids[49])
	}

	// Re-appending known ids must not duplicate or reorder.
	if err := s.LedgerAppend(ctx, 1, src, []string{"item-30", "item-59"}, 50); err != nil {
		t.Fatal(err)
	}
	ids2, _ := s.LedgerIDs(ctx, 1, src)
	if len(ids2) != 50 || ids2[0] != "item-10" {
		t.Fatalf("idempotent append broken: len=%d first=%s", len(ids2), ids2[0])
	}

	// Different source ids are isolated.
	other, _ := s.LedgerIDs(ctx, 1, "feed:other")
	if len(other) != 0 {
		t.Fatalf("unexpected cross-source ids: %v", other)
	}

	if err := s.LedgerDelete(ctx, 1, src); err != nil {
		t.Fatal(err)
	}
	ids3, _ := s.LedgerIDs(ctx, 1, src)
	if len(ids3) != 0 {
		t.Fatalf("ids after delete = %v", ids3)
	}
}

func TestResolveCacheTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutResolve(ctx, "user:Alice", "1234", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	// Lookups are case-insensitive on the name.
	v, ok, err := s.GetResolve(ctx, "USER:ALICE")
	if err != nil || !ok || v != "1234" {
		t.Fatalf("GetResolve = %q %v %v", v, ok, err)
	}

	if err := s.PutResolve(ctx, "user:bob", "5678", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetResolve(ctx, "user:bob"); ok {
		t.Fatal("expired entry should not resolve")
	}
}
