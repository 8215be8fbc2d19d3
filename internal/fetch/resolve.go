package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"relaybot/pkg/logx"
)

// resolveID resolves a username to the platform's internal id, used by the
// graph query tier. Resolution is expensive and the mapping is stable, so
// results are cached (keyed by lowercase name) with a TTL on the order of a
// day.
func (f *Fetcher) resolveID(ctx context.Context, cfg Config, cacheKey, username string) (string, error) {
	key := strings.ToLower(cacheKey)
	if f.store != nil {
		if id, ok, err := f.store.GetResolve(ctx, key); err == nil && ok {
			return id, nil
		}
	}

	u := fmt.Sprintf("%s/web/search/topsearch/?query=%s", cfg.APIBase, url.QueryEscape(username))
	var payload struct {
		Users []struct {
			User struct {
				PK       string `json:"pk"`
				Username string `json:"username"`
			} `json:"user"`
		} `json:"users"`
	}
	if err := f.getJSON(ctx, cfg, u, false, &payload); err != nil {
		return "", err
	}

	for _, entry := range payload.Users {
		if strings.EqualFold(entry.User.Username, username) {
			f.cacheResolved(ctx, cfg, username, entry.User.PK)
			return entry.User.PK, nil
		}
	}
	return "", errors.New("no exact username match in search results")
}

// cacheResolved stores a name→id mapping whenever a tier happens to learn
// one, so the query tier doesn't have to resolve again.
func (f *Fetcher) cacheResolved(ctx context.Context, cfg Config, username, id string) {
	if f.store == nil || id == "" || username == "" {
		return
	}
	ttl := cfg.ResolveTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	key := strings.ToLower("user:" + username)
	if err := f.store.PutResolve(ctx, key, id, time.Now().Add(ttl)); err != nil {
		f.log.Debug("resolve cache write failed", logx.Err(err), logx.String("name", username))
	}
}
