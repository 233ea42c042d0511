package config

import "github.com/spf13/viper"

// Load unmarshals the bound viper config (TOML file + environment + flags,
// wired by cmd/jobflowd) into an AppConfig and validates it.
func Load() (AppConfig, error) {
	out := DefaultAppConfig()
	if err := viper.Unmarshal(&out); err != nil {
		return AppConfig{}, err
	}
	if err := out.Validate(); err != nil {
		return AppConfig{}, err
	}
	return out, nil
}
