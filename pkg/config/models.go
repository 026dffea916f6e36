package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Broker    BrokerConfig
	Cache     CacheConfig
	Store     StoreConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type BrokerConfig struct {
	RedisURL string `mapstructure:"redisUrl"`
}

type CacheConfig struct {
	// Window is the maximum number of messages retained per conversation.
	Window int `mapstructure:"window"`
	// TTL is re-applied on every write; an idle conversation's cache expires.
	TTL time.Duration `mapstructure:"ttl"`
	// PageLimit is the page size for history reads.
	PageLimit int `mapstructure:"pageLimit"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `mapstructure:"databaseUrl"`
	SQLitePath  string `mapstructure:"sqlitePath"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}
