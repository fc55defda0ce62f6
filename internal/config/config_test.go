package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Admin.CommandPrefix != "lynx_" || cfg.ContentDir != "tenants" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	// json5: unquoted keys and a trailing comma must parse.
	data := `{
		telegram: {token: "from-file"},
		content_dir: "data",
		admin: {operator_chat: 7},
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LYNXGUARD_TELEGRAM_TOKEN", "from-env")
	t.Setenv("LYNXGUARD_OPERATOR_CHAT", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Errorf("token = %q, env must override the file", cfg.Telegram.Token)
	}
	if cfg.ContentDir != "data" {
		t.Errorf("content_dir = %q, want file value", cfg.ContentDir)
	}
	if cfg.Admin.OperatorChat != 42 {
		t.Errorf("operator_chat = %d, env must override the file", cfg.Admin.OperatorChat)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with token", func(c *Config) { c.Telegram.Token = "t" }, false},
		{"missing token", func(c *Config) {}, true},
		{"bad mute cron", func(c *Config) {
			c.Telegram.Token = "t"
			c.QuietHours.MuteCron = "not a cron"
		}, true},
		{"bad timezone", func(c *Config) {
			c.Telegram.Token = "t"
			c.QuietHours.Timezone = "Mars/Olympus"
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
