package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var configEnvVars = []string{
	"IMS_ADDRESS", "IMS_LOG_LEVEL", "DATABASE_URL", "DB_POOL_SIZE", "DB_POOL_RECYCLE",
	"AUTH_USERNAME", "AUTH_PASSWORD_HASH", "IMS_INTEGRITY_SCHEDULE",
}

// clearEnv 清空配置相关的环境变量，测试结束后自动恢复
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ims.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8000", cfg.Address)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.Equal(t, "sqlite:///./inference_instances.db", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.False(t, cfg.Auth.Enabled())
	assert.Empty(t, cfg.Audit.IntegritySchedule)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	path := writeConfig(t, `
address: 127.0.0.1:9000
log_level: debug
database:
  url: postgres://ims:pw@db:5432/ims
  max_open_conns: 20
  conn_max_lifetime: 30m
auth:
  username: admin
  password_hash: "`+string(hash)+`"
audit:
  integrity_schedule: "@every 1h"
`)

	t.Setenv("DB_POOL_SIZE", "3")
	t.Setenv("DB_POOL_RECYCLE", "120")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Address)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, "postgres://ims:pw@db:5432/ims", cfg.Database.URL)
	assert.Equal(t, 3, cfg.Database.MaxOpenConns)
	assert.Equal(t, 2*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, "@every 1h", cfg.Audit.IntegritySchedule)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "missing file", yaml: "", env: nil},
		{name: "bad yaml", yaml: "address: [", env: nil},
		{name: "bad log level", yaml: "log_level: loud", env: nil},
		{name: "unsupported scheme", yaml: "database:\n  url: oracle://x", env: nil},
		{name: "bad pool size env", yaml: "address: a", env: map[string]string{"DB_POOL_SIZE": "many"}},
		{name: "plain password", yaml: "auth:\n  username: admin\n  password_hash: admin123", env: nil},
		{name: "bad schedule", yaml: "audit:\n  integrity_schedule: every tuesday", env: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "missing.yaml")
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestParseDatabaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url         string
		wantDialect Dialect
		wantDSN     string
		wantErr     bool
	}{
		{url: "sqlite:///./inference_instances.db", wantDialect: DialectSQLite, wantDSN: "./inference_instances.db"},
		{url: "sqlite:////var/lib/ims/ims.db", wantDialect: DialectSQLite, wantDSN: "/var/lib/ims/ims.db"},
		{url: "mysql://ims:pw@db:3306/ims", wantDialect: DialectMySQL, wantDSN: "ims:pw@tcp(db:3306)/ims?parseTime=true"},
		{url: "postgresql://ims:pw@db:5432/ims?sslmode=disable", wantDialect: DialectPostgres, wantDSN: "postgres://ims:pw@db:5432/ims?sslmode=disable"},
		{url: "sqlite://", wantErr: true},
		{url: "mysql://db:3306", wantErr: true},
		{url: "inference.db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			dialect, dsn, err := ParseDatabaseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDialect, dialect)
			assert.Equal(t, tt.wantDSN, dsn)
		})
	}
}
