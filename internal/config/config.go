// Package config provides YAML-based configuration loading for birdfeed.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Delivery modes. Individual renders feed items as direct messages from
// each author; Aggregate and Room render them into a single chat room.
const (
	ModeIndividual = "individual"
	ModeAggregate  = "aggregate"
	ModeRoom       = "room"
)

// Config is the top-level birdfeed configuration, loaded from config.yaml.
type Config struct {
	Account  string `yaml:"account"`
	Password string `yaml:"password"`
	BaseURL  string `yaml:"base_url"`

	Mode               string `yaml:"mode"`
	OAuth              bool   `yaml:"oauth"`
	Commands           bool   `yaml:"commands"`
	FetchInterval      int    `yaml:"fetch_interval"` // seconds
	FetchSchedule      string `yaml:"fetch_schedule"` // optional 5-field cron expression
	FetchMentions      bool   `yaml:"fetch_mentions"`
	MessageLength      int    `yaml:"message_length"` // characters; 0 = unlimited
	ShowIDs            bool   `yaml:"show_ids"`
	ShowOldMentions    bool   `yaml:"show_old_mentions"`
	AutoReplyTimeout   int    `yaml:"auto_reply_timeout"` // seconds
	SingleConversation bool   `yaml:"single_conversation"`

	OAuthApp  OAuthAppConfig  `yaml:"oauth_app"`
	Store     StoreConfig     `yaml:"store"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Discord   DiscordConfig   `yaml:"discord"`
}

// OAuthAppConfig identifies this application to the remote service. The
// endpoint URLs default to the conventional paths under the base URL.
type OAuthAppConfig struct {
	ConsumerKey     string `yaml:"consumer_key"`
	ConsumerSecret  string `yaml:"consumer_secret"`
	RequestTokenURL string `yaml:"request_token_url"`
	AuthorizeURL    string `yaml:"authorize_url"`
	AccessTokenURL  string `yaml:"access_token_url"`
}

// StoreConfig selects the account store backend. SQLite is the default;
// setting MySQLHost switches to a MySQL-compatible server.
type StoreConfig struct {
	Path      string `yaml:"path"` // sqlite file, or ":memory:"
	MySQLHost string `yaml:"mysql_host"`
	MySQLPort int    `yaml:"mysql_port"`
	Database  string `yaml:"database"`
}

// DashboardConfig holds settings for the optional status HTTP server.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DiscordConfig holds settings for the Discord presentation sink. When
// BotToken is empty the console sink is used instead.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// cronParser accepts standard 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// defaults returns a Config prefilled with default values. Parse unmarshals
// on top of it, so omitted fields keep these values while explicit zero
// values (e.g. message_length: 0 for unlimited) are preserved.
func defaults() Config {
	return Config{
		Mode:             ModeAggregate,
		OAuth:            true,
		Commands:         true,
		FetchInterval:    60,
		FetchMentions:    true,
		MessageLength:    140,
		ShowOldMentions:  true,
		AutoReplyTimeout: 10800,
		Store:            StoreConfig{Path: "birdfeed.db", MySQLPort: 3306},
		Dashboard:        DashboardConfig{Port: 8080},
	}
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Account == "" {
		errs = append(errs, "account is required")
	}
	if c.BaseURL == "" {
		errs = append(errs, "base_url is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("base_url %q is not a valid http(s) URL", c.BaseURL))
	}
	switch strings.ToLower(c.Mode) {
	case ModeIndividual, ModeAggregate, ModeRoom:
	default:
		errs = append(errs, fmt.Sprintf("mode %q is not one of individual, aggregate, room", c.Mode))
	}
	if c.FetchInterval <= 0 {
		errs = append(errs, "fetch_interval must be positive")
	}
	if c.FetchSchedule != "" {
		if _, err := cronParser.Parse(c.FetchSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("fetch_schedule %q: %v", c.FetchSchedule, err))
		}
	}
	if c.MessageLength < 0 {
		errs = append(errs, "message_length must be zero or positive")
	}
	if c.AutoReplyTimeout < 0 {
		errs = append(errs, "auto_reply_timeout must be zero or positive")
	}
	if c.OAuth && c.OAuthApp.ConsumerKey == "" {
		errs = append(errs, "oauth_app.consumer_key is required when oauth is enabled")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AggregateMode reports whether feed items are delivered to a chat room
// rather than as per-contact messages.
func (c *Config) AggregateMode() bool {
	switch strings.ToLower(c.Mode) {
	case ModeAggregate, ModeRoom:
		return true
	}
	return false
}

// HostPrefix derives the short service name from the base URL host. It is
// used to name the service buddy ("<prefix>_<account>") and the timeline
// room: "api.example.com" becomes "example".
func (c *Config) HostPrefix() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "feed"
	}
	prefix := u.Hostname()
	prefix = strings.TrimSuffix(prefix, ".com")
	if i := strings.LastIndex(prefix, "."); i >= 0 && len(prefix)-i > 4 {
		// At least 3 chars after the last dot: cut off any www/api prefix.
		prefix = prefix[i+1:]
	}
	if prefix == "" {
		return "feed"
	}
	return prefix
}
