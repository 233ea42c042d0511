package config

// RepositoryConfig selects and configures the persistence backend.
type RepositoryConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory sqlite postgres" flag:"repo-driver" toml:"driver"`
	DSN    string `mapstructure:"dsn" validate:"required_unless=Driver memory" flag:"repo-dsn" toml:"dsn"`
}

func (r RepositoryConfig) Validate() error {
	return validateConfig(r)
}

// DefaultRepositoryConfig runs entirely in-memory, so jobflowd works out of
// the box with no DSN configured.
func DefaultRepositoryConfig() RepositoryConfig {
	return RepositoryConfig{Driver: "memory"}
}
