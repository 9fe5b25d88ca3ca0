// Package config loads Settings the same way the original indexer's Rust
// service did: a default file, an optional override file, then environment
// variables, layered in that order of increasing precedence.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/oxidized-project/oxidized/internal/errors"
)

// DatabaseSettings configures the embedded SQL store.
type DatabaseSettings struct {
	URL          string `mapstructure:"url"`
	SQLXLogging  bool   `mapstructure:"sqlx_logging"`
}

// AppSettings toggles the indexer's background workers, mirroring the
// original service's per-task enable flags (§4/§5).
type AppSettings struct {
	Spider         bool `mapstructure:"spider"`
	UpdateInfo     bool `mapstructure:"update_info"`
	UpdateTrackers bool `mapstructure:"update_trackers"`
	Clean          bool `mapstructure:"clean"`
	FilterNSFW     bool `mapstructure:"filter_nsfw"`
}

// AuthSettings holds the optional API key guarding write and non-health
// read endpoints (§6).
type AuthSettings struct {
	APIKey string `mapstructure:"apikey"`
}

// Settings is the fully merged configuration, deserialized from
// default.yml, an optional config.yml, and OXIDIZED_-prefixed env vars.
type Settings struct {
	Database DatabaseSettings `mapstructure:"database"`
	App      AppSettings      `mapstructure:"app"`
	Auth     AuthSettings     `mapstructure:"auth"`
}

// Load builds a viper instance over default.yml (required), an optional
// config.yml override in the same directory, and environment variables
// prefixed OXIDIZED_ with "_" as the nested-key separator — e.g.
// OXIDIZED_DATABASE_URL overrides database.url.
func Load(configDir string) (*Settings, error) {
	v := viper.New()
	v.SetConfigName("default")
	v.SetConfigType("yml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "reading default.yml: %v", err)
	}

	override := viper.New()
	override.SetConfigName("config")
	override.SetConfigType("yml")
	override.AddConfigPath(configDir)
	if err := override.ReadInConfig(); err == nil {
		if err := v.MergeConfigMap(override.AllSettings()); err != nil {
			return nil, errors.Wrap(err, "merging config.yml: %v", err)
		}
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
		return nil, errors.Wrap(err, "reading config.yml: %v", err)
	}

	v.SetEnvPrefix("OXIDIZED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v, "database.url", "database.sqlx_logging",
		"app.spider", "app.update_info", "app.update_trackers", "app.clean", "app.filter_nsfw",
		"auth.apikey")

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "unmarshaling settings: %v", err)
	}
	return &s, nil
}

func bindEnv(v *viper.Viper, keys ...string) {
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
