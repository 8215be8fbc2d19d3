// Package schedule owns the polling heartbeat: it fires relay passes on a
// fixed cadence and keeps a short run history for diagnostics.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"relaybot/internal/relay"
	"relaybot/pkg/logx"
)

type Config struct {
	// Tick is the pass cadence. Channels decide for themselves whether they
	// are due on any given pass, so the tick only bounds reaction latency.
	Tick time.Duration
}

const defaultTick = time.Minute

// RunRecord is one completed pass.
type RunRecord struct {
	At    time.Time       `json:"at"`
	Took  time.Duration   `json:"took"`
	Stats relay.PassStats `json:"stats"`
}

const historyMax = 50

type Service struct {
	relayer *relay.Relayer
	log     logx.Logger

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	entry   cron.EntryID
	runCtx  context.Context
	cancel  context.CancelFunc
	history []RunRecord

	running atomic.Bool
}

func New(cfg Config, relayer *relay.Relayer, log logx.Logger) *Service {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, relayer: relayer, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New()
	if err := s.scheduleLocked(); err != nil {
		s.cancel()
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Duration("tick", s.cfg.Tick))

	// Fire the first pass immediately; waiting a full tick after boot just
	// delays catching up on everything missed while down.
	go s.runPass()
	return nil
}

// Apply reschedules the heartbeat when the tick changes.
func (s *Service) Apply(cfg Config) error {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Tick == s.cfg.Tick {
		return nil
	}
	s.cfg = cfg
	if s.c == nil {
		return nil
	}
	s.c.Remove(s.entry)
	if err := s.scheduleLocked(); err != nil {
		return err
	}
	s.log.Info("scheduler retimed", logx.Duration("tick", cfg.Tick))
	return nil
}

func (s *Service) scheduleLocked() error {
	id, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Tick), s.runPass)
	if err != nil {
		return fmt.Errorf("scheduling tick: %w", err)
	}
	s.entry = id
	return nil
}

func (s *Service) runPass() {
	// A pass slower than the tick must not stack a second pass on top.
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("pass still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	start := time.Now()
	stats := s.relayer.RunPass(ctx)
	took := time.Since(start)

	s.appendHistory(RunRecord{At: start, Took: took, Stats: stats})
	s.log.Info("pass finished",
		logx.Duration("took", took),
		logx.Int("channels", stats.Channels),
		logx.Int("sources", stats.Sources),
		logx.Int("delivered", stats.Delivered),
		logx.Int("degraded", stats.Degraded),
		logx.Int("failed", stats.Failed),
		logx.Bool("rate_limited", stats.RateLimited))
}

func (s *Service) appendHistory(r RunRecord) {
	s.mu.Lock()
	s.history = append(s.history, r)
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.mu.Unlock()
}

// History returns the most recent pass records, oldest first.
func (s *Service) History() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunRecord(nil), s.history...)
}

// Stop halts the heartbeat and waits for an in-flight pass to finish,
// bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.runCtx = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}
