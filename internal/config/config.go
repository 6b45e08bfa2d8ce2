// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"vrpsolver/internal/opt"
)

type Config struct {
	Port          string   `yaml:"port"`
	DatabaseURL   string   `yaml:"database_url"`
	SQLitePath    string   `yaml:"sqlite_path"`
	DBMigrate     bool     `yaml:"db_migrate"`
	MigrationsDir string   `yaml:"migrations_dir"`
	RedisURL      string   `yaml:"redis_url"`
	AllowOrigins  []string `yaml:"allow_origins"`

	Auth     Auth     `yaml:"auth"`
	Rate     Rate     `yaml:"rate"`
	Webhooks Webhooks `yaml:"webhooks"`
	Solver   Solver   `yaml:"solver"`
	Log      Log      `yaml:"log"`
}

type Auth struct {
	Mode        string `yaml:"mode"` // dev, hmac, jwks
	HMACSecret  string `yaml:"hmac_secret"`
	JWKSURL     string `yaml:"jwks_url"`
	TenantClaim string `yaml:"tenant_claim"`
	RoleClaim   string `yaml:"role_claim"`
}

// Rate limits requests per tenant. RPS 0 disables limiting.
type Rate struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Webhooks struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

// Solver holds the service-wide defaults; tenants may override them through
// the optimizer config endpoints.
type Solver struct {
	MaxExactJobs     int    `yaml:"max_exact_jobs"`
	DefaultAlgorithm string `yaml:"default_algorithm"`
	Objective        string `yaml:"objective"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Port:      "8080",
		DBMigrate: true,
		Auth:      Auth{Mode: "dev", TenantClaim: "tenant", RoleClaim: "role"},
		Rate:      Rate{RPS: 0, Burst: 20},
		Webhooks:  Webhooks{MaxAttempts: 10, PollInterval: 2 * time.Second, BatchSize: 50},
		Solver:    Solver{MaxExactJobs: opt.DefaultMaxExactJobs, DefaultAlgorithm: string(opt.AlgorithmAuto), Objective: opt.DurationWithService.String()},
		Log:       Log{Level: "info", Format: "text"},
	}
}

// Load reads path (or $VRP_CONFIG when path is empty), then applies the
// environment.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path == "" {
		path, _ = lookup("VRP_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("SQLITE_PATH", &c.SQLitePath)
	str("DB_MIGRATIONS_DIR", &c.MigrationsDir)
	if v, ok := lookup("DB_MIGRATE"); ok && v != "" {
		c.DBMigrate = v != "false" && v != "0"
	}
	str("REDIS_URL", &c.RedisURL)
	if v, ok := lookup("ALLOW_ORIGINS"); ok && v != "" {
		c.AllowOrigins = splitList(v)
	}

	str("AUTH_MODE", &c.Auth.Mode)
	c.Auth.Mode = strings.ToLower(c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	str("AUTH_JWKS_URL", &c.Auth.JWKSURL)
	str("AUTH_TENANT_CLAIM", &c.Auth.TenantClaim)
	str("AUTH_ROLE_CLAIM", &c.Auth.RoleClaim)

	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_RPS: %w", err))
		} else {
			c.Rate.RPS = f
		}
	}
	num("RATE_BURST", &c.Rate.Burst)

	num("WEBHOOK_MAX_ATTEMPTS", &c.Webhooks.MaxAttempts)
	if v, ok := lookup("WEBHOOK_POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WEBHOOK_POLL_INTERVAL: %w", err))
		} else {
			c.Webhooks.PollInterval = d
		}
	}

	num("EXACT_MAX_JOBS", &c.Solver.MaxExactJobs)
	str("DEFAULT_ALGORITHM", &c.Solver.DefaultAlgorithm)
	str("OBJECTIVE", &c.Solver.Objective)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	return errors.Join(errs...)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			return errors.New("auth mode hmac requires AUTH_HMAC_SECRET")
		}
	case "jwks":
		if c.Auth.JWKSURL == "" {
			return errors.New("auth mode jwks requires AUTH_JWKS_URL")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if _, err := opt.ParseAlgorithm(c.Solver.DefaultAlgorithm); err != nil {
		return err
	}
	if o := c.Solver.Objective; o != "" && o != "duration" && o != "travel" {
		return fmt.Errorf("unknown objective %q (want duration or travel)", o)
	}
	if c.Solver.MaxExactJobs < 0 {
		return errors.New("max_exact_jobs must be >= 0")
	}
	if c.Webhooks.MaxAttempts < 1 {
		return errors.New("webhook max attempts must be >= 1")
	}
	if c.Rate.RPS < 0 || c.Rate.Burst < 0 {
		return errors.New("rate limits must be >= 0")
	}
	if c.DatabaseURL != "" && c.SQLitePath != "" {
		return errors.New("set at most one of DATABASE_URL and SQLITE_PATH")
	}
	return nil
}

// StoreKind names the backend selected by the config.
func (c Config) StoreKind() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.SQLitePath != "":
		return "sqlite"
	default:
		return "memory"
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
