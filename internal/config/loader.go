package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/affinity/internal/domain/model"
)

const (
	envPrefix  = "AFFINITY_"
	envFileVar = "AFFINITY_ENV_FILE"
	configVar  = "AFFINITY_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if AFFINITY_CONFIG is set
//  3. env (prefix AFFINITY_), seeded from .env without overriding the
//     process environment
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if path := os.Getenv(configVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrapLoad(path, err)
		}
	}

	// AFFINITY_QUEUE_SIZE -> queue_size. Underscores stay so keys match
	// the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, wrapLoad("env", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, wrapInvalid("decode", err)
	}
	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(envFileVar)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapLoad(path, err)
	}
	return nil
}

// splitOrigins accepts both a YAML list and a comma separated string.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// Validate checks every key the process depends on at startup.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr", "must not be empty")
	case c.Store != StoreSQLite && c.Store != StoreMemory:
		return invalid("store", "must be sqlite or memory")
	case c.Store == StoreSQLite && c.DBPath == "":
		return invalid("db_path", "must not be empty for the sqlite store")
	case c.LogFormat != "json" && c.LogFormat != "console":
		return invalid("log_format", "must be json or console")
	case c.QueueSize <= 0:
		return invalid("queue_size", "must be positive")
	case c.WorkerCount <= 0:
		return invalid("worker_count", "must be positive")
	case c.DedupeSize <= 0:
		return invalid("dedupe_size", "must be positive")
	case c.RateLimitRequests <= 0:
		return invalid("rate_limit_requests", "must be positive")
	case c.RateLimitWindow <= 0:
		return invalid("rate_limit_window", "must be positive")
	case c.RequestTimeout <= 0:
		return invalid("request_timeout", "must be positive")
	case c.ShutdownTimeout <= 0:
		return invalid("shutdown_timeout", "must be positive")
	case c.BreakerMaxFailures == 0:
		return invalid("breaker_max_failures", "must be positive")
	case c.BreakerTimeout <= 0:
		return invalid("breaker_timeout", "must be positive")
	}

	for key, domain := range c.GameDomains {
		if _, err := model.ParseGameID(key); err != nil {
			return wrapInvalid("game_domains", err)
		}
		if _, err := model.ParseDomain(domain); err != nil {
			return wrapInvalid("game_domains."+key, err)
		}
	}
	return nil
}
