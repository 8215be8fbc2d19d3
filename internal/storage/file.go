package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"relaybot/internal/model"
	"relaybot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Layout under <path>/:
//   - channels/<id>.json      (one document per channel)
//   - channels.index.json     (list of all channel ids)
//   - ledger/<chan>-<h>.json  (bounded delivered-id list per channel/source)
//   - resolve.json            (name→id cache with expiry)
//
// All writes go through an atomic tmp+rename so a crash never leaves a
// half-written document.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	root string

	resolve map[string]resolveRecord
}

type resolveRecord struct {
	Value string `json:"value"`
	Until int64  `json:"until"` // unix milli
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	root := strings.TrimSpace(cfg.Path)
	if root == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	for _, dir := range []string{root, filepath.Join(root, "channels"), filepath.Join(root, "ledger")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	s := &fileStore{log: log, root: root, resolve: map[string]resolveRecord{}}
	_ = readJSON(s.resolvePath(), &s.resolve)
	s.pruneResolveLocked()
	return s, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) channelPath(id int64) string {
	return filepath.Join(s.root, "channels", strconv.FormatInt(id, 10)+".json")
}

func (s *fileStore) indexPath() string { return filepath.Join(s.root, "channels.index.json") }

func (s *fileStore) ledgerPath(channelID int64, sourceID string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sourceID))
	name := fmt.Sprintf("%d-%016x.json", channelID, h.Sum64())
	return filepath.Join(s.root, "ledger", name)
}

func (s *fileStore) resolvePath() string { return filepath.Join(s.root, "resolve.json") }

func (s *fileStore) ListChannelIDs(ctx context.Context) ([]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	if err := readJSON(s.indexPath(), &ids); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *fileStore) GetChannel(ctx context.Context, id int64) (*model.Channel, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getChannelLocked(id)
}

func (s *fileStore) getChannelLocked(id int64) (*model.Channel, error) {
	var ch model.Channel
	if err := readJSON(s.channelPath(id), &ch); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}

func (s *fileStore) PutChannel(ctx context.Context, ch *model.Channel) error {
	_ = ctx
	if ch == nil {
		return errors.New("nil channel")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSON(s.channelPath(ch.ID), ch); err != nil {
		return err
	}
	return s.updateIndexLocked(ch.ID, true)
}

func (s *fileStore) DeleteChannel(ctx context.Context, id int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.channelPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.updateIndexLocked(id, false)
}

func (s *fileStore) updateIndexLocked(id int64, present bool) error {
	var ids []int64
	_ = readJSON(s.indexPath(), &ids)

	out := ids[:0]
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			if !present {
				continue
			}
		}
		out = append(out, v)
	}
	if present && !found {
		out = append(out, id)
	}
	return writeJSON(s.indexPath(), out)
}

func (s *fileStore) TouchChannel(ctx context.Context, id int64, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.getChannelLocked(id)
	if err != nil {
		return err
	}
	if !at.After(ch.LastCheck) {
		return nil
	}
	ch.LastCheck = at
	return writeJSON(s.channelPath(id), ch)
}

func (s *fileStore) LedgerIDs(ctx context.Context, channelID int64, sourceID string) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	if err := readJSON(s.ledgerPath(channelID, sourceID), &ids); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ids, nil
}

func (s *fileStore) LedgerAppend(ctx context.Context, channelID int64, sourceID string, ids []string, maxLen int) error {
	_ = ctx
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.ledgerPath(channelID, sourceID)
	var cur []string
	_ = readJSON(path, &cur)

	cur = appendBounded(cur, ids, maxLen)
	return writeJSON(path, cur)
}

func (s *fileStore) LedgerDelete(ctx context.Context, channelID int64, sourceID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.ledgerPath(channelID, sourceID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *fileStore) PutResolve(ctx context.Context, name, value string, until time.Time) error {
	_ = ctx
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve[name] = resolveRecord{Value: value, Until: until.UnixMilli()}
	s.pruneResolveLocked()
	return writeJSON(s.resolvePath(), s.resolve)
}

func (s *fileStore) GetResolve(ctx context.Context, name string) (string, bool, error) {
	_ = ctx
	name = strings.ToLower(strings.TrimSpace(name))
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.resolve[name]
	if !ok || rec.Until < time.Now().UnixMilli() {
		return "", false, nil
	}
	return rec.Value, true, nil
}

func (s *fileStore) pruneResolveLocked() {
	now := time.Now().UnixMilli()
	for k, v := range s.resolve {
		if v.Until < now {
			delete(s.resolve, k)
		}
	}
}

// appendBounded appends new ids (skipping ones already present) and trims
// the front so at most maxLen ids remain, oldest evicted first.
func appendBounded(cur, add []string, maxLen int) []string {
	seen := make(map[string]struct{}, len(cur))
	for _, id := range cur {
		seen[id] = struct{}{}
	}
	for _, id := range add {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		cur = append(cur, id)
		seen[id] = struct{}{}
	}
	if maxLen > 0 && len(cur) > maxLen {
		cur = append([]string(nil), cur[len(cur)-maxLen:]...)
	}
	return cur
}

func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func writeJSON(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
