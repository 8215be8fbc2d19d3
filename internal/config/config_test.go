package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  admin_chat: -100500
storage:
  driver: file
  path: ./store
fetch:
  tier_timeout: 5s
  mirror_instances:
    - https://mirror-a.example
    - https://mirror-b.example
relay:
  tick: 30s
  burst: 3
`

func TestParseYAML(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.AdminChat != -100500 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Fetch.Timeout() != 5*time.Second {
		t.Fatalf("tier timeout = %s", cfg.Fetch.Timeout())
	}
	if len(cfg.Fetch.MirrorInstances) != 2 {
		t.Fatalf("mirrors = %v", cfg.Fetch.MirrorInstances)
	}
	if cfg.Relay.TickInterval() != 30*time.Second || cfg.Relay.BurstCap() != 3 {
		t.Fatalf("relay = %+v", cfg.Relay)
	}
}

func TestParseJSON(t *testing.T) {
	body := `{"telegram":{"token":"t"},"storage":{"driver":"file","path":"./s"}}`
	m := NewManager(writeConfig(t, "config.json", body))
	if _, err := m.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		frag string // expected error substring
	}{
		{
			name: "unknown field",
			body: "telegram:\n  token: t\n  bogus: 1\nstorage:\n  driver: file\n",
			frag: "bogus",
		},
		{
			name: "missing token",
			body: "telegram:\n  token: \"\"\nstorage:\n  driver: file\n",
			frag: "telegram.token",
		},
		{
			name: "missing driver",
			body: "telegram:\n  token: t\nstorage:\n  driver: \"\"\n",
			frag: "storage.driver",
		},
		{
			name: "bad duration",
			body: "telegram:\n  token: t\nstorage:\n  driver: file\nrelay:\n  tick: soon\n",
			frag: "relay.tick",
		},
		{
			name: "bad mirror origin",
			body: "telegram:\n  token: t\nstorage:\n  driver: file\nfetch:\n  mirror_instances: [\"not a url\"]\n",
			frag: "mirror_instances",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(writeConfig(t, "config.yaml", tt.body))
			_, err := m.Parse()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.frag) {
				t.Fatalf("err = %v, want mention of %q", err, tt.frag)
			}
		})
	}
}

func TestAccessorDefaults(t *testing.T) {
	var cfg Config
	if cfg.Fetch.Timeout() != DefaultTierTimeout {
		t.Fatalf("timeout default = %s", cfg.Fetch.Timeout())
	}
	if cfg.Fetch.TTL() != DefaultResolveTTL {
		t.Fatalf("ttl default = %s", cfg.Fetch.TTL())
	}
	if cfg.Fetch.Page() != DefaultPageSize {
		t.Fatalf("page default = %d", cfg.Fetch.Page())
	}
	if cfg.Fetch.Base() != DefaultAPIBase {
		t.Fatalf("base default = %s", cfg.Fetch.Base())
	}
	if cfg.Relay.TickInterval() != DefaultTick {
		t.Fatalf("tick default = %s", cfg.Relay.TickInterval())
	}
	if cfg.Relay.Floor() != DefaultIntervalFloor {
		t.Fatalf("floor default = %s", cfg.Relay.Floor())
	}
	if cfg.Relay.BurstCap() != DefaultBurst || cfg.Relay.Cap() != DefaultLedgerCap {
		t.Fatalf("caps = %d %d", cfg.Relay.BurstCap(), cfg.Relay.Cap())
	}
	if cfg.Relay.UploadCeiling() != DefaultMaxUpload {
		t.Fatalf("ceiling = %d", cfg.Relay.UploadCeiling())
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("got %s, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %s, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration must be rejected")
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatal("garbage must be rejected")
	}
}
