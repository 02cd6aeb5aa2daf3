/*
Package config loads server settings.

PRECEDENCE (highest first):
  1. command-line flags bound with BindPFlag
  2. FLEETLOG_* environment variables (http.port -> FLEETLOG_HTTP_PORT)
  3. a .env file in the working directory (loaded into the environment)
  4. the optional config file (yaml, toml or json)
  5. defaults below
*/
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/fleetlog/fleet"
)

const EnvPrefix = "FLEETLOG"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTP      HTTPConfig
	DB        DBConfig
	Auth      AuthConfig
	App       AppConfig
	CORS      CORSConfig
	Scheduler SchedulerConfig
	Seed      SeedConfig
}

type HTTPConfig struct {
	Port      int
	StaticDir string
}

type DBConfig struct {
	Driver string
	Path   string
	URL    string
}

type AuthConfig struct {
	Secret        string
	SessionTTL    time.Duration
	AdminEmail    string
	AdminPassword string
}

type AppConfig struct {
	Language fleet.Language
	Timezone string
	Location *time.Location
}

type CORSConfig struct {
	AllowedOrigins []string
}

type SchedulerConfig struct {
	SweepInterval time.Duration
	Enabled       bool
}

type SeedConfig struct {
	Scenario string
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.static_dir", "")
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.path", "fleetlog.db")
	v.SetDefault("db.url", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)
	v.SetDefault("auth.admin_email", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("app.language", string(fleet.LangFR))
	v.SetDefault("app.timezone", "Africa/Kinshasa")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("scheduler.sweep_interval", 15*time.Minute)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("seed.scenario", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env and the optional config file into v and decodes it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[Config] Ignoring .env: %v", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:      v.GetInt("http.port"),
			StaticDir: v.GetString("http.static_dir"),
		},
		DB: DBConfig{
			Driver: strings.ToLower(v.GetString("db.driver")),
			Path:   v.GetString("db.path"),
			URL:    v.GetString("db.url"),
		},
		Auth: AuthConfig{
			Secret:        v.GetString("auth.secret"),
			SessionTTL:    v.GetDuration("auth.session_ttl"),
			AdminEmail:    v.GetString("auth.admin_email"),
			AdminPassword: v.GetString("auth.admin_password"),
		},
		App: AppConfig{
			Language: fleet.Language(strings.ToLower(v.GetString("app.language"))),
			Timezone: v.GetString("app.timezone"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetStringSlice("cors.allowed_origins")),
		},
		Scheduler: SchedulerConfig{
			SweepInterval: v.GetDuration("scheduler.sweep_interval"),
			Enabled:       v.GetBool("scheduler.enabled"),
		},
		Seed: SeedConfig{
			Scenario: v.GetString("seed.scenario"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("db.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.URL == "" {
			return errors.New("db.url is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown db.driver %q (use sqlite, postgres or memory)", c.DB.Driver)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required (set FLEETLOG_AUTH_SECRET)")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("invalid auth.session_ttl %s", c.Auth.SessionTTL)
	}
	if c.Auth.AdminEmail != "" && c.Auth.AdminPassword == "" {
		return errors.New("auth.admin_password is required when auth.admin_email is set")
	}
	if !c.App.Language.Valid() {
		return fmt.Errorf("unsupported app.language %q (use fr or en)", c.App.Language)
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return fmt.Errorf("invalid app.timezone %q: %w", c.App.Timezone, err)
	}
	c.App.Location = loc
	if c.Scheduler.Enabled && c.Scheduler.SweepInterval <= 0 {
		return fmt.Errorf("invalid scheduler.sweep_interval %s", c.Scheduler.SweepInterval)
	}
	return nil
}

// splitList accepts both list values and a single comma-separated env string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
