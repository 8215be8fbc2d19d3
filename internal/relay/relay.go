// Package relay drives the fetch→dedup→format→deliver cycle across all
// configured channels.
package relay

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"relaybot/internal/alert"
	"relaybot/internal/deliver"
	"relaybot/internal/fetch"
	"relaybot/internal/format"
	"relaybot/internal/ledger"
	"relaybot/internal/model"
	"relaybot/internal/storage"
	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

type Config struct {
	// IntervalFloor clamps per-channel polling cadence from below.
	IntervalFloor time.Duration

	// Burst caps items delivered per (channel, source) per pass.
	Burst int

	// SendDelay spaces consecutive sends within one pass.
	SendDelay time.Duration
}

// PassStats summarizes one scheduler pass.
type PassStats struct {
	Channels    int // channels that were due and processed
	Sources     int // enabled sources fetched
	Delivered   int
	Degraded    int
	Failed      int
	RateLimited bool
}

type Relayer struct {
	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter // paces sends across the whole pass

	store     storage.Store
	ledger    *ledger.Ledger
	fetcher   *fetch.Fetcher
	deliverer *deliver.Deliverer
	alerter   *alert.Alerter
	log       logx.Logger
}

func New(cfg Config, store storage.Store, led *ledger.Ledger, f *fetch.Fetcher, d *deliver.Deliverer, al *alert.Alerter, log logx.Logger) *Relayer {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Relayer{
		store:     store,
		ledger:    led,
		fetcher:   f,
		deliverer: d,
		alerter:   al,
		log:       log,
	}
	r.Apply(cfg)
	return r
}

func (r *Relayer) Apply(cfg Config) {
	if cfg.IntervalFloor <= 0 {
		cfg.IntervalFloor = 10 * time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.SendDelay < 0 {
		cfg.SendDelay = 0
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendDelay > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.SendDelay), 1)
	}
	r.mu.Lock()
	r.cfg = cfg
	r.limiter = lim
	r.mu.Unlock()
}

func (r *Relayer) pace() *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiter
}

func (r *Relayer) config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// RunPass walks every channel once, processing those that are due. One
// channel's failure never touches another: each channel (and each source
// within it) runs behind its own panic barrier.
func (r *Relayer) RunPass(ctx context.Context) PassStats {
	cfg := r.config()
	var stats PassStats

	ids, err := r.store.ListChannelIDs(ctx)
	if err != nil {
		r.log.Error("listing channels failed", logx.Err(err))
		return stats
	}

	now := time.Now()
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		ch, err := r.store.GetChannel(ctx, id)
		if err != nil {
			r.log.Error("loading channel failed", logx.Int64("channel", id), logx.Err(err))
			continue
		}
		if !ch.Due(now, cfg.IntervalFloor) {
			continue
		}
		stats.Channels++

		r.runIsolated(fmt.Sprintf("channel %d", id), func() {
			r.processChannel(ctx, cfg, ch, &stats)
		})
		if stats.RateLimited {
			// The platform rate-limits per bot token, not per chat, so once
			// one batch trips it the remaining channels would too. Stop the
			// whole pass; untouched channels are still due next tick.
			break
		}
	}
	return stats
}

func (r *Relayer) processChannel(ctx context.Context, cfg Config, ch *model.Channel, stats *PassStats) {
	// The check timestamp advances before fetching. A crash mid-cycle then
	// costs one skipped interval instead of a hot retry loop.
	if err := r.store.TouchChannel(ctx, ch.ID, time.Now()); err != nil {
		r.log.Error("touch failed", logx.Int64("channel", ch.ID), logx.Err(err))
		return
	}

	log := r.log.With(logx.Int64("channel", ch.ID))

	for _, src := range ch.Sources {
		if ctx.Err() != nil || stats.RateLimited {
			return
		}
		if !src.Enabled {
			continue
		}
		stats.Sources++

		src := src
		r.runIsolated(fmt.Sprintf("channel %d source %s", ch.ID, src.ID), func() {
			r.processSource(ctx, cfg, ch, src, stats, log)
		})
	}
}

func (r *Relayer) processSource(ctx context.Context, cfg Config, ch *model.Channel, src model.Source, stats *PassStats, log logx.Logger) {
	log = log.With(logx.String("source", src.ID))

	res := r.fetcher.Fetch(ctx, src)
	if res.Exhausted() {
		log.Warn("fetch exhausted all tiers", logx.Int("tiers", len(res.Errors)))
		r.alerter.Warnf(ctx, "fetch failed for %s: %s", src.ID, tierSummary(res.Errors))
		return
	}
	if len(res.Errors) > 0 {
		log.Debug("fetch recovered by lower tier",
			logx.Int("failed_tiers", len(res.Errors)),
			logx.String("detail", tierSummary(res.Errors)))
	}

	// Items the media filter rejects are invisible to this source: never
	// delivered, never recorded, never holding a burst slot.
	items := filterItems(res.Items, src.MediaFilter)
	if len(items) == 0 {
		return
	}

	stored, err := r.store.LedgerIDs(ctx, ch.ID, src.ID)
	if err != nil {
		log.Error("ledger read failed", logx.Err(err))
		return
	}
	if len(stored) == 0 {
		// First sight of this source: mark the existing backlog as seen so
		// registration does not flood the channel with history.
		if err := r.ledger.SeedAll(ctx, ch.ID, src.ID, items); err != nil {
			log.Error("ledger seed failed", logx.Err(err))
		} else {
			log.Info("seeded source backlog", logx.Int("items", len(items)))
		}
		return
	}

	fresh, err := r.ledger.SelectNew(ctx, ch.ID, src.ID, items, cfg.Burst)
	if err != nil {
		log.Error("ledger select failed", logx.Err(err))
		return
	}
	if len(fresh) == 0 {
		return
	}

	settings := format.Resolve(format.HardDefaults(), ch.Format, src.Format)
	target := transport.ChatTarget{ChatID: ch.ID}

	var sentIDs []string
	for _, item := range fresh {
		if err := r.pace().Wait(ctx); err != nil {
			break
		}

		payload := format.Build(item, src, settings)
		status, err := r.deliverer.Deliver(ctx, target, payload)
		switch status {
		case deliver.StatusSent:
			stats.Delivered++
			sentIDs = append(sentIDs, item.ID)
		case deliver.StatusDegraded:
			stats.Degraded++
			sentIDs = append(sentIDs, item.ID)
		default:
			stats.Failed++
			log.Warn("delivery failed", logx.String("item", item.ID), logx.Err(err))
		}

		if transport.IsRateLimited(err) {
			// Everything unsent stays unrecorded and retries next cycle.
			stats.RateLimited = true
			log.Warn("rate limited, stopping batch", logx.Err(err))
			r.alerter.Warnf(ctx, "rate limited while delivering to %d, batch stopped", ch.ID)
			break
		}
	}

	if len(sentIDs) > 0 {
		if err := r.ledger.RecordSent(ctx, ch.ID, src.ID, sentIDs); err != nil {
			log.Error("ledger record failed", logx.Err(err))
		}
	} else if !stats.RateLimited && ctx.Err() == nil {
		// Every candidate failed outright. One bad item degrades; a whole
		// batch failing means the channel itself is broken, typically the
		// bot was removed or lost posting rights.
		log.Error("entire batch failed", logx.Int("items", len(fresh)))
		r.alerter.Criticalf(ctx, "channel %d: all %d item(s) from %s failed to send", ch.ID, len(fresh), src.ID)
	}
}

func filterItems(items []model.Item, f model.MediaFilter) []model.Item {
	if f == "" || f == model.FilterAll {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if f.Allows(it.MediaType) {
			out = append(out, it)
		}
	}
	return out
}

func tierSummary(errs []model.TierError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

func (r *Relayer) runIsolated(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic isolated",
				logx.String("scope", name),
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}
