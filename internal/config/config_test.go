package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
account: chirper
base_url: https://api.example.com/1
oauth_app:
  consumer_key: ck
  consumer_secret: cs
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Mode != ModeAggregate {
		t.Errorf("Mode = %q, want aggregate", cfg.Mode)
	}
	if !cfg.OAuth || !cfg.Commands || !cfg.FetchMentions || !cfg.ShowOldMentions {
		t.Error("boolean defaults not applied")
	}
	if cfg.FetchInterval != 60 {
		t.Errorf("FetchInterval = %d, want 60", cfg.FetchInterval)
	}
	if cfg.MessageLength != 140 {
		t.Errorf("MessageLength = %d, want 140", cfg.MessageLength)
	}
	if cfg.AutoReplyTimeout != 10800 {
		t.Errorf("AutoReplyTimeout = %d, want 10800", cfg.AutoReplyTimeout)
	}
}

func TestParseExplicitZeroSurvivesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + "message_length: 0\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MessageLength != 0 {
		t.Fatalf("MessageLength = %d, explicit zero overwritten", cfg.MessageLength)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing account", "base_url: https://x.example.com\noauth: false", "account is required"},
		{"missing base_url", "account: a\noauth: false", "base_url is required"},
		{"bad base_url", "account: a\nbase_url: not-a-url\noauth: false", "not a valid http(s) URL"},
		{"bad mode", "account: a\nbase_url: https://x.example.com\nmode: shouting\noauth: false", "mode"},
		{"bad interval", "account: a\nbase_url: https://x.example.com\nfetch_interval: -5\noauth: false", "fetch_interval"},
		{"bad cron", "account: a\nbase_url: https://x.example.com\nfetch_schedule: nonsense\noauth: false", "fetch_schedule"},
		{"oauth without key", "account: a\nbase_url: https://x.example.com", "consumer_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "birdfeed.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Account != "chirper" {
		t.Fatalf("Account = %q", cfg.Account)
	}
}

func TestAggregateMode(t *testing.T) {
	tests := []struct {
		mode string
		want bool
	}{
		{ModeAggregate, true},
		{ModeRoom, true},
		{ModeIndividual, false},
		{"Aggregate", true},
	}
	for _, tt := range tests {
		c := Config{Mode: tt.mode}
		if got := c.AggregateMode(); got != tt.want {
			t.Errorf("AggregateMode(%q) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestHostPrefix(t *testing.T) {
	tests := []struct {
		baseURL string
		want    string
	}{
		{"https://api.example.com/1", "example"},
		{"https://example.com", "example"},
		{"https://social.coop/api", "coop"},
		{"://bad", "feed"},
	}
	for _, tt := range tests {
		c := Config{BaseURL: tt.baseURL}
		if got := c.HostPrefix(); got != tt.want {
			t.Errorf("HostPrefix(%q) = %q, want %q", tt.baseURL, got, tt.want)
		}
	}
}
