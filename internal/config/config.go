package config

// Config holds all application configuration.
// It is constructed once at process start and passed into component
// constructors; business logic never reads the environment directly.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all relational store settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains the cache/broker connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`

	// CacheTTLSeconds is the lifetime of cached task-list pages.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" validate:"gte=1"`

	// JobTTLSeconds is how long finished import-job state is retained
	// before it expires from the result backend.
	JobTTLSeconds int `mapstructure:"job_ttl_seconds" validate:"gte=60"`
}

// AuthConfig contains authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeSeconds int    `mapstructure:"token_lifetime_seconds" validate:"gte=60"`
}

// WorkerConfig contains async import worker pool settings.
type WorkerConfig struct {
	Count int `mapstructure:"count" validate:"gte=1,lte=64"`

	// StuckJobAgeSeconds is how long a claimed job may sit in the
	// processing queue before the janitor requeues it.
	StuckJobAgeSeconds int `mapstructure:"stuck_job_age_seconds" validate:"gte=30"`
}
