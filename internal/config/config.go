package config

type Config interface {
	EnvConfig
	XeroConfig
	DatabaseConfig
	RedisConfig
	SecurityConfig
	SyncConfig
}

type mainConfig struct {
	EnvVars
	Xero
	Database
	Redis
	Security
	Sync
}

func New() Config {
	return mainConfig{}
}
