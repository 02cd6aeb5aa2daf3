package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleetlog/config"
	"github.com/warp/fleetlog/fleet"
)

func TestLoad_DefaultsWithSecret(t *testing.T) {
	t.Setenv("FLEETLOG_AUTH_SECRET", "s3cret")

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, config.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "fleetlog.db", cfg.DB.Path)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, fleet.LangFR, cfg.App.Language)
	assert.Equal(t, "Africa/Kinshasa", cfg.App.Location.String())
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.SweepInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLEETLOG_AUTH_SECRET", "s3cret")
	t.Setenv("FLEETLOG_HTTP_PORT", "9090")
	t.Setenv("FLEETLOG_DB_DRIVER", "memory")
	t.Setenv("FLEETLOG_APP_LANGUAGE", "EN")
	t.Setenv("FLEETLOG_CORS_ALLOWED_ORIGINS", "https://a.cd, https://b.cd")

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, config.DriverMemory, cfg.DB.Driver)
	assert.Equal(t, fleet.LangEN, cfg.App.Language)
	assert.Equal(t, []string{"https://a.cd", "https://b.cd"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetlog.yaml")
	yaml := "db:\n  driver: postgres\n  url: postgres://fleet@localhost/fleet\nauth:\n  secret: from-file\n  session_ttl: 2h\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)

	assert.Equal(t, config.DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://fleet@localhost/fleet", cfg.DB.URL)
	assert.Equal(t, "from-file", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"unknown driver", map[string]string{"FLEETLOG_DB_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"FLEETLOG_DB_DRIVER": "postgres"}},
		{"bad language", map[string]string{"FLEETLOG_APP_LANGUAGE": "de"}},
		{"bad timezone", map[string]string{"FLEETLOG_APP_TIMEZONE": "Mars/Olympus"}},
		{"admin without password", map[string]string{"FLEETLOG_AUTH_ADMIN_EMAIL": "admin@shoppi.cd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name != "missing secret" {
				t.Setenv("FLEETLOG_AUTH_SECRET", "s3cret")
			} else {
				t.Setenv("FLEETLOG_AUTH_SECRET", "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load(config.New(), "")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("FLEETLOG_AUTH_SECRET", "s3cret")

	_, err := config.Load(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
