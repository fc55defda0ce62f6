// Package config holds the global bot configuration: transport
// credentials, content location, admin command vocabulary and the
// quiet-hours schedule.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/adhocore/gronx"
	"github.com/titanous/json5"
)

// Config is the process-wide configuration. Per-tenant state lives in
// the content directory, not here.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	ContentDir string           `json:"content_dir"`
	Admin      AdminConfig      `json:"admin"`
	QuietHours QuietHoursConfig `json:"quiet_hours"`
}

// TelegramConfig configures the Bot API transport.
type TelegramConfig struct {
	Token string `json:"token"`
	Proxy string `json:"proxy"`
}

// AdminConfig is the admin command vocabulary. OperatorChat is the
// destination for private messages sent to the bot; private chats have
// no tenant, so the binding is global. Zero disables the forwarding.
type AdminConfig struct {
	CommandPrefix string `json:"command_prefix"`
	ReloadKeyword string `json:"reload_keyword"`
	WarnKeyword   string `json:"warn_keyword"`
	NoPermission  string `json:"no_permission"`
	OperatorChat  int64  `json:"operator_chat"`
}

// QuietHoursConfig holds the daily mute/unmute schedule, shared by all
// tenants that enable night_mute. Times are wall clock in Timezone.
type QuietHoursConfig struct {
	MuteCron   string `json:"mute_cron"`
	UnmuteCron string `json:"unmute_cron"`
	Timezone   string `json:"timezone"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ContentDir: "tenants",
		Admin: AdminConfig{
			CommandPrefix: "lynx_",
			ReloadKeyword: "reload",
			WarnKeyword:   "#warn",
			NoPermission:  "Эта команда доступна только администраторам.",
		},
		QuietHours: QuietHoursConfig{
			MuteCron:   "0 22 * * *",
			UnmuteCron: "0 8 * * *",
			Timezone:   "Europe/Moscow",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A
// missing file yields the defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("LYNXGUARD_TELEGRAM_TOKEN", &c.Telegram.Token)
	envStr("LYNXGUARD_TELEGRAM_PROXY", &c.Telegram.Proxy)
	envStr("LYNXGUARD_CONTENT_DIR", &c.ContentDir)
	envStr("LYNXGUARD_COMMAND_PREFIX", &c.Admin.CommandPrefix)
	envStr("LYNXGUARD_TIMEZONE", &c.QuietHours.Timezone)
	if v := os.Getenv("LYNXGUARD_OPERATOR_CHAT"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Admin.OperatorChat = id
		}
	}
}

// Validate checks the fields the process cannot run without.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is not configured (LYNXGUARD_TELEGRAM_TOKEN)")
	}
	g := gronx.New()
	if !g.IsValid(c.QuietHours.MuteCron) {
		return fmt.Errorf("invalid quiet-hours mute cron %q", c.QuietHours.MuteCron)
	}
	if !g.IsValid(c.QuietHours.UnmuteCron) {
		return fmt.Errorf("invalid quiet-hours unmute cron %q", c.QuietHours.UnmuteCron)
	}
	if _, err := time.LoadLocation(c.QuietHours.Timezone); err != nil {
		return fmt.Errorf("invalid quiet-hours timezone %q: %w", c.QuietHours.Timezone, err)
	}
	return nil
}

// Location resolves the quiet-hours timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.QuietHours.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
