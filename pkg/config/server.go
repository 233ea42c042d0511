package config

import "fmt"

// ServerConfig is the bind address for the minimal HTTP health/metrics
// façade alongside the job API.
type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required" flag:"host" toml:"host"`
	Port uint   `mapstructure:"port" validate:"required,min=1,max=65535" flag:"port" toml:"port"`
}

func (s ServerConfig) Validate() error {
	return validateConfig(s)
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{Host: "127.0.0.1", Port: 8080}
}
