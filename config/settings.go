package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override file settings.
const EnvPrefix = "SWITCHBOARD"

// Settings holds everything needed to bring up a routing context.
type Settings struct {
	Hub    HubConfig `json:"hub" mapstructure:"hub"`
	Shared Shared    `json:"shared" mapstructure:"shared"`
}

// DefaultSettings returns Settings with defaults for all sections.
func DefaultSettings() Settings {
	return Settings{
		Hub:    DefaultHubConfig(),
		Shared: DefaultShared(),
	}
}

func (c *Settings) Merge(source *Settings) {
	c.Hub.Merge(&source.Hub)
	c.Shared.Merge(&source.Shared)
}

// Load reads a config file, applies environment overrides and merges the
// result over DefaultSettings. The format follows the file extension.
func Load(filename string) (*Settings, error) {
	cfg := DefaultSettings()

	v := viper.New()
	v.SetConfigFile(filename)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Settings
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
