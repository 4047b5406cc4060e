package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "VESPL", cfg.Company.Prefix)
	assert.Equal(t, 4, cfg.Company.FiscalYearStartMonth)
	assert.Equal(t, 3, cfg.Workflow.MaxEscalationLevel)
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: "9090"
database:
  driver: sqlite
  dsn: ":memory:"
company:
  prefix: ACME
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "ACME", cfg.Company.Prefix)
	// untouched sections keep their defaults
	assert.Equal(t, 4, cfg.Company.FiscalYearStartMonth)
	assert.Equal(t, 24, cfg.Workflow.EscalationIntervalHours)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("COMPANY_PREFIX", "VTR")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "VTR", cfg.Company.Prefix)
	assert.Equal(t, 2525, cfg.SMTP.Port)
}

func TestParseRedisURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.parseRedisURL("redis://:s3cret@cache.internal:6380/2")

	assert.Equal(t, "s3cret", cfg.Redis.Password)
	assert.Equal(t, "cache.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestCompanyLocation_Fallback(t *testing.T) {
	c := CompanyConfig{Timezone: "Not/AZone"}
	assert.NotNil(t, c.Location())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Company.Prefix = "SAVED"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SAVED", loaded.Company.Prefix)
}
