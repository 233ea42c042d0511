package config

// AppConfig is the root configuration unmarshalled from TOML + flags by
// viper, composed of one section per concern.
type AppConfig struct {
	Supervisor SupervisorConfig `mapstructure:"supervisor" toml:"supervisor"`
	Repository RepositoryConfig `mapstructure:"repository" toml:"repository"`
	Server     ServerConfig     `mapstructure:"server" toml:"server"`
}

func (a AppConfig) Validate() error {
	if err := a.Supervisor.Validate(); err != nil {
		return err
	}
	if err := a.Repository.Validate(); err != nil {
		return err
	}
	return a.Server.Validate()
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		Supervisor: DefaultSupervisorConfig(),
		Repository: DefaultRepositoryConfig(),
		Server:     DefaultServerConfig(),
	}
}
