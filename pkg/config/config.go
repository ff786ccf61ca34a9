// Package config loads gateway settings from the environment, with an
// optional .env file for local development.
package config

import (
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/august4056/parallel/pkg/hardening"
	"github.com/august4056/parallel/pkg/store"
)

type Config struct {
	Environment string `env:"APP_ENV,default=development"`
	ListenAddr  string `env:"LISTEN_ADDR,default=:8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	MaxBodyBytes       int64  `env:"MAX_BODY_BYTES,default=1048576"`
	StrictProdSecurity string `env:"STRICT_PROD_SECURITY,default=true"`

	AuthMode           string `env:"AUTH_MODE,default=hs256"`
	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string `env:"SUPABASE_JWT_SECRET"`

	GraderDispatchURL   string `env:"GRADER_DISPATCH_URL"`
	GraderDispatchToken string `env:"GRADER_DISPATCH_TOKEN"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisDB            int    `env:"REDIS_DB,default=0"`
	RedisRequireTLS    string `env:"REDIS_REQUIRE_TLS"`
	RedisTLS           string `env:"REDIS_TLS"`
	RedisTLSInsecure   string `env:"REDIS_TLS_INSECURE"`
	RedisTLSServerName string `env:"REDIS_TLS_SERVER_NAME"`
	RedisTLSCACertFile string `env:"REDIS_TLS_CA_CERT_FILE"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE,default=120"`

	AuditHashSalt string `env:"AUDIT_HASH_SALT"`
	AuditRedact   bool   `env:"AUDIT_REDACT,default=false"`

	ShutdownGraceSec int `env:"SHUTDOWN_GRACE_SEC,default=10"`
}

// Load reads .env if present, then decodes the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Issuer is the auth issuer URL derived from the store URL, empty when the
// store URL is unset.
func (c Config) Issuer() string {
	base := strings.TrimRight(strings.TrimSpace(c.SupabaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/auth/v1"
}

// RedisOptions maps the config onto the redis constructor.
func (c Config) RedisOptions() store.RedisOptions {
	isTrue := func(raw string) bool {
		return strings.EqualFold(strings.TrimSpace(raw), "true")
	}
	return store.RedisOptions{
		Addr:          c.RedisAddr,
		Password:      c.RedisPassword,
		DB:            c.RedisDB,
		RequireTLS:    isTrue(c.RedisRequireTLS),
		TLSEnabled:    isTrue(c.RedisTLS),
		TLSInsecure:   isTrue(c.RedisTLSInsecure),
		TLSServerName: c.RedisTLSServerName,
		TLSCACertFile: c.RedisTLSCACertFile,
	}
}

// HardeningOptions maps the config onto the startup validation surface.
func (c Config) HardeningOptions() hardening.Options {
	return hardening.Options{
		Service:            "gateway",
		Environment:        c.Environment,
		StrictProdSecurity: c.StrictProdSecurity,
		AuthMode:           c.AuthMode,
		JWTSecret:          c.SupabaseJWTSecret,
		SupabaseURL:        c.SupabaseURL,
		ServiceKey:         c.SupabaseServiceKey,
		RedisAddr:          c.RedisAddr,
		RedisRequireTLS:    c.RedisRequireTLS,
		RedisTLSInsecure:   c.RedisTLSInsecure,
		CORSAllowedOrigins: c.CORSAllowedOrigins,
	}
}
