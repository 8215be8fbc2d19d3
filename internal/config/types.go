package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Fetch    FetchConfig    `json:"fetch"`
	Relay    RelayConfig    `json:"relay"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// AdminChat receives operator alerts (exhausted fetches, rate limiting,
	// systemic delivery failures). 0 disables alerting.
	AdminChat int64 `json:"admin_chat,omitempty"`

	// AlertsPerMinute caps operator alerts so a broken upstream cannot
	// flood the admin chat. Default 10.
	AlertsPerMinute int `json:"alerts_per_minute,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./relaybot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// FetchConfig controls the upstream fetch tiers.
//
// All durations are Go duration strings (e.g. "8s", "24h").
type FetchConfig struct {
	UserAgent string `json:"user_agent,omitempty"`

	// TierTimeout bounds each fetch tier attempt. Default "8s".
	TierTimeout string `json:"tier_timeout,omitempty"`

	// APIBase is the origin of the source platform's structured API and
	// embed pages (e.g. "https://www.instagram.com").
	APIBase string `json:"api_base,omitempty"`

	// AppID is sent as the platform's application header on API tiers.
	AppID string `json:"app_id,omitempty"`

	// SessionCookie is the raw Cookie header value for the primary API tier.
	// Without it the primary tier usually gets a login redirect and the
	// fetcher falls through to the public tiers.
	SessionCookie string `json:"session_cookie,omitempty"`

	// MirrorInstances are fallback feed-mirror origins tried in order when a
	// mirror feed URL yields no items (failover by substitution).
	MirrorInstances []string `json:"mirror_instances,omitempty"`

	// ResolveTTL caches name→internal-id resolution. Default "24h".
	ResolveTTL string `json:"resolve_ttl,omitempty"`

	// PageSize bounds how many items one fetch returns. Default 12.
	PageSize int `json:"page_size,omitempty"`
}

// RelayConfig controls the scheduler loop and delivery pacing.
type RelayConfig struct {
	// Tick is how often a scheduling pass runs. Default "1m".
	Tick string `json:"tick,omitempty"`

	// IntervalFloor is the minimum per-channel cadence. Default "10m".
	IntervalFloor string `json:"interval_floor,omitempty"`

	// Burst is the max items delivered per source per cycle. Default 5.
	// Items beyond the cap stay undelivered and are reconsidered next cycle.
	Burst int `json:"burst,omitempty"`

	// LedgerCap bounds the per-(channel,source) set of delivered ids.
	// Default 50.
	LedgerCap int `json:"ledger_cap,omitempty"`

	// SendDelay spaces successive sends to the same channel. Default "3s".
	SendDelay string `json:"send_delay,omitempty"`

	// MaxUploadBytes is the re-upload ceiling; larger assets are reported
	// as size failures. Default 50 MiB.
	MaxUploadBytes int64 `json:"max_upload_bytes,omitempty"`
}
