package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"relaybot/internal/model"
	"relaybot/internal/storage"
	"relaybot/pkg/logx"
)

type Config struct {
	UserAgent       string
	Timeout         time.Duration // per tier attempt
	APIBase         string
	AppID           string
	SessionCookie   string
	MirrorInstances []string
	ResolveTTL      time.Duration
	PageSize        int
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Result is the outcome of one fetch attempt. Items are newest-first.
// Errors holds one entry per failed tier; a populated Errors list with a
// non-empty Items list means a lower tier recovered the fetch.
type Result struct {
	Items  []model.Item
	Errors []model.TierError
}

// Exhausted reports whether every tier failed.
func (r Result) Exhausted() bool { return len(r.Items) == 0 && len(r.Errors) > 0 }

type Fetcher struct {
	mu  sync.RWMutex
	cfg Config

	http  *http.Client
	store storage.Store
	log   logx.Logger
}

// New creates a fetcher. store is used for the name→id resolution cache and
// may be nil (resolution then always goes to the network).
func New(cfg Config, store storage.Store, log logx.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 12
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		cfg: cfg,
		// The client carries no global timeout; each tier runs under its
		// own context deadline.
		http:  &http.Client{},
		store: store,
		log:   log,
	}
}

// Apply swaps fetch configuration at runtime (mirror lists, credentials).
func (f *Fetcher) Apply(cfg Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 12
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
}

func (f *Fetcher) config() Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg
}

// Fetch dispatches on the source kind. Each kind has exactly one handler;
// adding a kind means adding a case here and its handler, nothing else.
func (f *Fetcher) Fetch(ctx context.Context, src model.Source) Result {
	switch src.Kind {
	case model.KindProfile:
		return f.fetchProfile(ctx, src.Value)
	case model.KindHashtag:
		return f.fetchHashtag(ctx, src.Value)
	case model.KindFeed:
		return f.fetchFeedURL(ctx, src.Value)
	default:
		return Result{Errors: []model.TierError{{
			Tier:    "dispatch",
			Message: "unknown source kind " + string(src.Kind),
		}}}
	}
}

// runTiers walks the ladder in strict order, stopping at the first tier
// that yields at least one item. Tiers run sequentially on purpose:
// speculative concurrent attempts would burn quota against rate-limited
// upstreams before knowing the cheaper tier failed.
func (f *Fetcher) runTiers(ctx context.Context, subject string, tiers []tier) Result {
	cfg := f.config()
	var res Result
	for _, t := range tiers {
		tctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		items, err := t.run(tctx, cfg, subject)
		cancel()

		if err != nil {
			res.Errors = append(res.Errors, tierError(t.name, err))
			continue
		}
		if len(items) == 0 {
			// Profile and hashtag endpoints serve empty pages when the
			// upstream gates the content instead of erroring, so an empty
			// tier counts as a miss and the ladder keeps descending.
			res.Errors = append(res.Errors, model.TierError{Tier: t.name, Message: "no items"})
			continue
		}
		if len(items) > cfg.PageSize {
			items = items[:cfg.PageSize]
		}
		res.Items = items
		return res
	}
	return res
}

type tier struct {
	name string
	run  func(ctx context.Context, cfg Config, subject string) ([]model.Item, error)
}

func (f *Fetcher) fetchProfile(ctx context.Context, username string) Result {
	return f.runTiers(ctx, username, []tier{
		{"api", f.tierProfileAPI},
		{"query", f.tierProfileQuery},
		{"form", f.tierProfileForm},
		{"mirror", f.tierProfileMirror},
		{"embed", f.tierProfileEmbed},
	})
}

func (f *Fetcher) fetchHashtag(ctx context.Context, tag string) Result {
	return f.runTiers(ctx, tag, []tier{
		{"api", f.tierHashtagAPI},
		{"query", f.tierHashtagQuery},
		{"form", f.tierHashtagForm},
		{"mirror", f.tierHashtagMirror},
		{"embed", f.tierHashtagEmbed},
	})
}

func tierError(name string, err error) model.TierError {
	var te model.TierError
	if errors.As(err, &te) {
		if te.Tier == "" {
			te.Tier = name
		}
		return te
	}
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "timeout"
	}
	return model.TierError{Tier: name, Message: msg}
}
