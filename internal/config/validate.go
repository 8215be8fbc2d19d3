package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTierTimeout   = 8 * time.Second
	DefaultResolveTTL    = 24 * time.Hour
	DefaultTick          = time.Minute
	DefaultIntervalFloor = 10 * time.Minute
	DefaultSendDelay     = 3 * time.Second
	DefaultBurst         = 5
	DefaultLedgerCap     = 50
	DefaultPageSize      = 12
	DefaultMaxUpload     = 50 << 20
	DefaultAPIBase       = "https://www.instagram.com"
)

// Validate checks the parts the process cannot run without and every
// duration string, so a bad config is rejected at load (and at hot reload)
// instead of surfacing mid-pass.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		return errors.New("storage.driver is required")
	}

	for path, raw := range map[string]string{
		"storage.busy_timeout": c.Storage.BusyTimeout,
		"fetch.tier_timeout":   c.Fetch.TierTimeout,
		"fetch.resolve_ttl":    c.Fetch.ResolveTTL,
		"relay.tick":           c.Relay.Tick,
		"relay.interval_floor": c.Relay.IntervalFloor,
		"relay.send_delay":     c.Relay.SendDelay,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}

	for i, inst := range c.Fetch.MirrorInstances {
		u, err := url.Parse(inst)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("fetch.mirror_instances[%d]: invalid origin %q", i, inst)
		}
	}
	return nil
}

// ParseDurationField parses a duration-string config value. Empty or
// whitespace-only means unset and yields zero; negative values are
// rejected. path names the field in the error.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for an
// unset value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

func (c *StorageConfig) Busy() time.Duration {
	d, _ := ParseDurationField("storage.busy_timeout", c.BusyTimeout)
	return d
}

func (c *FetchConfig) Timeout() time.Duration {
	d, _ := ParseDurationOrDefault("fetch.tier_timeout", c.TierTimeout, DefaultTierTimeout)
	return d
}

func (c *FetchConfig) TTL() time.Duration {
	d, _ := ParseDurationOrDefault("fetch.resolve_ttl", c.ResolveTTL, DefaultResolveTTL)
	return d
}

func (c *FetchConfig) Page() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return DefaultPageSize
}

func (c *FetchConfig) Base() string {
	if s := strings.TrimSpace(c.APIBase); s != "" {
		return strings.TrimRight(s, "/")
	}
	return DefaultAPIBase
}

func (c *RelayConfig) TickInterval() time.Duration {
	d, _ := ParseDurationOrDefault("relay.tick", c.Tick, DefaultTick)
	return d
}

func (c *RelayConfig) Floor() time.Duration {
	d, _ := ParseDurationOrDefault("relay.interval_floor", c.IntervalFloor, DefaultIntervalFloor)
	return d
}

func (c *RelayConfig) Delay() time.Duration {
	d, _ := ParseDurationOrDefault("relay.send_delay", c.SendDelay, DefaultSendDelay)
	return d
}

func (c *RelayConfig) BurstCap() int {
	if c.Burst > 0 {
		return c.Burst
	}
	return DefaultBurst
}

func (c *RelayConfig) Cap() int {
	if c.LedgerCap > 0 {
		return c.LedgerCap
	}
	return DefaultLedgerCap
}

func (c *RelayConfig) UploadCeiling() int64 {
	if c.MaxUploadBytes > 0 {
		return c.MaxUploadBytes
	}
	return DefaultMaxUpload
}
