// Package alert delivers operator notifications to the admin chat.
//
// Alerts are best-effort: a dropped alert is always preferable to an alert
// storm amplifying the incident it reports. A token bucket caps throughput
// and a dedup window suppresses repeats of the same text.
package alert

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

type Priority int

const (
	PriorityInfo Priority = iota
	PriorityWarn
	PriorityCritical
)

type Config struct {
	AdminChat int64

	// PerMinute caps alert sends; excess alerts are dropped, not queued.
	PerMinute int

	// DedupWindow suppresses identical alert texts within the window.
	DedupWindow time.Duration
}

const (
	defaultPerMinute   = 10
	defaultDedupWindow = 10 * time.Minute
	dedupMaxEntries    = 500
	sendTimeout        = 10 * time.Second
)

type Alerter struct {
	sender transport.Sender
	log    logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	dedup   map[uint64]time.Time
}

func New(cfg Config, sender transport.Sender, log logx.Logger) *Alerter {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Alerter{
		sender: sender,
		log:    log,
		dedup:  map[uint64]time.Time{},
	}
	a.Apply(cfg)
	return a
}

// Apply swaps the alert configuration at runtime.
func (a *Alerter) Apply(cfg Config) {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = defaultPerMinute
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}
	a.mu.Lock()
	a.cfg = cfg
	a.limiter = rate.NewLimiter(rate.Limit(float64(cfg.PerMinute)/60.0), cfg.PerMinute)
	a.mu.Unlock()
}

func (a *Alerter) Info(ctx context.Context, text string)     { a.send(ctx, PriorityInfo, text) }
func (a *Alerter) Warn(ctx context.Context, text string)     { a.send(ctx, PriorityWarn, text) }
func (a *Alerter) Critical(ctx context.Context, text string) { a.send(ctx, PriorityCritical, text) }

func (a *Alerter) Infof(ctx context.Context, format string, args ...any) {
	a.send(ctx, PriorityInfo, fmt.Sprintf(format, args...))
}

func (a *Alerter) Warnf(ctx context.Context, format string, args ...any) {
	a.send(ctx, PriorityWarn, fmt.Sprintf(format, args...))
}

func (a *Alerter) Criticalf(ctx context.Context, format string, args ...any) {
	a.send(ctx, PriorityCritical, fmt.Sprintf(format, args...))
}

func (a *Alerter) send(ctx context.Context, p Priority, text string) {
	if text == "" || a.sender == nil {
		return
	}

	a.mu.Lock()
	cfg := a.cfg
	lim := a.limiter
	a.mu.Unlock()

	if cfg.AdminChat == 0 {
		return
	}
	if !a.dedupAllow(text, cfg.DedupWindow) {
		a.log.Debug("alert suppressed (dedup)", logx.String("text", text))
		return
	}
	if !lim.Allow() {
		a.log.Warn("alert dropped (rate limit)", logx.String("text", text))
		return
	}

	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := a.sender.SendText(sctx, transport.ChatTarget{ChatID: cfg.AdminChat},
		prefixFor(p)+text, &transport.SendOptions{DisablePreview: true})
	if err != nil {
		a.log.Warn("alert send failed", logx.Err(err))
		return
	}
	a.log.Debug("alert sent", logx.Int("priority", int(p)))
}

func prefixFor(p Priority) string {
	switch {
	case p >= PriorityCritical:
		return "🚨 "
	case p >= PriorityWarn:
		return "⚠️ "
	}
	return "ℹ️ "
}

func (a *Alerter) dedupAllow(text string, window time.Duration) bool {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	key := h.Sum64()
	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	if until, ok := a.dedup[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range a.dedup {
		if !now.Before(until) {
			delete(a.dedup, k)
		}
	}
	if len(a.dedup) >= dedupMaxEntries {
		// Full after pruning: let the alert through rather than grow without
		// bound, it just loses suppression.
		return true
	}
	a.dedup[key] = now.Add(window)
	return true
}
