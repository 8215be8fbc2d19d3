package fetch

import (
	"context"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"relaybot/internal/model"
)

// fetchFeedURL fetches a generic RSS/Atom feed directly. If the URL belongs
// to one of the configured mirror instances and yields nothing, the same
// logical query is retried against the other instances in priority order:
// the query is kept, only the instance origin is swapped.
func (f *Fetcher) fetchFeedURL(ctx context.Context, feedURL string) Result {
	cfg := f.config()

	var res Result
	sawEmpty := false
	try := func(tierName, u string) bool {
		tctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		items, err := f.parseFeed(tctx, cfg, u)
		cancel()
		if err != nil {
			res.Errors = append(res.Errors, tierError(tierName, err))
			return false
		}
		if len(items) == 0 {
			// A well-formed feed with zero entries is not a tier failure,
			// but mirror instances sometimes serve empty feeds when they
			// are degraded, so the failover still tries the others.
			sawEmpty = true
			return false
		}
		res.Items = items
		return true
	}

	if try("feed", feedURL) {
		return res
	}

	if origin, rest, ok := splitMirrorURL(cfg.MirrorInstances, feedURL); ok {
		for _, inst := range cfg.MirrorInstances {
			if sameOrigin(inst, origin) {
				continue
			}
			if try("mirror:"+hostOf(inst), strings.TrimRight(inst, "/")+rest) {
				return res
			}
		}
	}
	if sawEmpty {
		// At least one instance answered with a parseable feed that simply
		// has nothing in it: a quiet day, not an outage.
		return Result{}
	}
	return res
}

// mirrorFeed tries a mirror-served feed path against every configured
// instance in priority order. Used by the profile/hashtag mirror tier.
func (f *Fetcher) mirrorFeed(ctx context.Context, cfg Config, path string) ([]model.Item, error) {
	if len(cfg.MirrorInstances) == 0 {
		return nil, model.TierError{Message: "no mirror instances configured"}
	}
	var lastErr error
	for _, inst := range cfg.MirrorInstances {
		items, err := f.parseFeed(ctx, cfg, strings.TrimRight(inst, "/")+path)
		if err != nil {
			lastErr = err
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (f *Fetcher) parseFeed(ctx context.Context, cfg Config, u string) ([]model.Item, error) {
	body, _, err := f.getBody(ctx, cfg, u, false)
	if err != nil {
		return nil, err
	}
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, err
	}
	return itemsFromFeed(feed, cfg.PageSize), nil
}

// splitMirrorURL matches feedURL against the configured instances and, on a
// match, returns the matched origin and the query part to replay elsewhere.
func splitMirrorURL(instances []string, feedURL string) (origin, rest string, ok bool) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", "", false
	}
	for _, inst := range instances {
		iu, err := url.Parse(inst)
		if err != nil {
			continue
		}
		if strings.EqualFold(u.Host, iu.Host) {
			rest := u.Path
			if u.RawQuery != "" {
				rest += "?" + u.RawQuery
			}
			return inst, rest, true
		}
	}
	return "", "", false
}

func sameOrigin(a, b string) bool {
	au, err1 := url.Parse(a)
	bu, err2 := url.Parse(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return strings.EqualFold(au.Host, bu.Host)
}

func hostOf(inst string) string {
	if u, err := url.Parse(inst); err == nil && u.Host != "" {
		return u.Host
	}
	return inst
}
