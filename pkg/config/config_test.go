package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/aadhaar-coverage/pkg/coverage"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"COVERAGE_PROFILE", "COVERAGE_PROFILE_FILE", "COVERAGE_OUTPUT_DIR",
		"METRICS_TEXTFILE", "CHUNK_SIZE", "LOG_LEVEL", "LOG_FORMAT",
		"SNOWFLAKE_ACCOUNT", "SNOWFLAKE_USER", "SNOWFLAKE_PASSWORD", "SNOWFLAKE_WAREHOUSE",
		"SNOWFLAKE_DEMO_TABLES", "SNOWFLAKE_ENROLL_TABLES", "SNOWFLAKE_BIO_TABLES",
		"POSTGRES_DB", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DRIVER",
		"EXPORT_DRIVER", "EXPORT_DSN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "national", cfg.Profile)
	assert.Equal(t, "analysis_results", cfg.OutputDir)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Nil(t, cfg.Snowflake)
	assert.Nil(t, cfg.Postgres)
	assert.Nil(t, cfg.Export)
	assert.Empty(t, cfg.SnowflakeTables)
}

func TestLoadConfigDatabases(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DB", "aadhaar")
	t.Setenv("POSTGRES_USER", "analyst")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DRIVER", "postgres")
	t.Setenv("EXPORT_DRIVER", "sqlite")
	t.Setenv("EXPORT_DSN", "file:coverage.db")
	t.Setenv("CHUNK_SIZE", "250")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.NotNil(t, cfg.Postgres)
	assert.Equal(t, "postgres", cfg.Postgres.Driver)
	assert.Equal(t, "coverage", cfg.Postgres.Schema)
	assert.Contains(t, cfg.Postgres.ConnectionString(), "dbname=aadhaar")
	assert.Contains(t, cfg.Postgres.ConnectionString(), "statement_timeout=300000")
	require.NotNil(t, cfg.Export)
	assert.Equal(t, "sqlite", cfg.Export.Driver)
	assert.Equal(t, 250, cfg.ChunkSize)
}

func TestLoadConfigRejectsTablesWithoutSnowflake(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNOWFLAKE_DEMO_TABLES", `"DEMO_2024", DEMO_2025 ,`)

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigSnowflakeTables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNOWFLAKE_ACCOUNT", "acme-xy123")
	t.Setenv("SNOWFLAKE_USER", "loader")
	t.Setenv("SNOWFLAKE_PASSWORD", "secret")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH")
	t.Setenv("SNOWFLAKE_DEMO_TABLES", `"DEMO_2024", DEMO_2025 ,`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.Snowflake)
	assert.Equal(t, []string{"DEMO_2024", "DEMO_2025"}, cfg.SnowflakeTables["demo"])
	assert.NotContains(t, cfg.SnowflakeTables, "bio")
}

func TestLoadConfigPartialPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DB", "aadhaar")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "POSTGRES_USER")
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is already set, even to ""
	os.Unsetenv("COVERAGE_OUTPUT_DIR")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("COVERAGE_OUTPUT_DIR=from_env_file\n"), 0o644))

	require.NoError(t, LoadEnvFile(path, filepath.Join(t.TempDir(), "missing.env")))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from_env_file", cfg.OutputDir)
}

func TestBuiltinProfilesValidate(t *testing.T) {
	for name, p := range Builtin() {
		assert.NoError(t, p.Validate(), name)
	}

	p, err := LookupProfile("district")
	require.NoError(t, err)
	assert.Equal(t, model.ColDate, p.DateColumn)
	assert.Contains(t, p.Keys, p.DateColumn)

	p, err = LookupProfile("national")
	require.NoError(t, err)
	assert.Equal(t, model.ColDate, p.DateColumn)
	assert.NotContains(t, p.Keys, p.DateColumn)
	assert.Equal(t, []string{"demo", "enroll", "bio"}, p.Tags())

	_, err = LookupProfile("regional")
	assert.ErrorContains(t, err, "national")
}

func TestBuiltinProfilesAreIndependent(t *testing.T) {
	a, _ := LookupProfile("national")
	a.Keys[0] = "changed"
	b, _ := LookupProfile("national")
	assert.Equal(t, model.ColState, b.Keys[0])
	assert.Equal(t, model.ColState, model.GeoKeys[0])
}

func TestProfileYAMLRoundTrip(t *testing.T) {
	p, err := LookupProfile("national")
	require.NoError(t, err)

	data, err := p.Marshal()
	require.NoError(t, err)

	back, err := ParseProfile(data)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestParseProfileFile(t *testing.T) {
	doc := `
name: pilot
keys: [state, district, pincode]
datasets:
  - tag: demo
    values: [demo_age_5_17]
  - tag: enroll
    values: [age_5_17]
metrics:
  ratios:
    - name: enroll_ratio_5_17
      numerator: enroll_age_5_17
      denominator: demo_age_5_17
  flags:
    - name: low
      column: enroll_ratio_5_17
      op: "<"
      threshold: 0.2
outputs:
  summary: pilot.csv
`
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := LoadProfileFile(path)
	require.NoError(t, err)
	assert.Equal(t, "outer", p.Join)
	assert.Equal(t, coverage.Less, p.Metrics.Flags[0].Op)
	assert.Equal(t, "demo", p.Dataset("demo").Tag)
	assert.Nil(t, p.Dataset("bio"))
}

func TestParseProfileRejectsUnknownFields(t *testing.T) {
	_, err := ParseProfile([]byte("name: x\nkeys: [state]\nwindow: 7\n"))
	assert.Error(t, err)
}

func TestProfileValidate(t *testing.T) {
	p, _ := LookupProfile("national")
	p.Join = "cross"
	assert.Error(t, p.Validate())

	p, _ = LookupProfile("national")
	p.Datasets = p.Datasets[:1]
	assert.Error(t, p.Validate())

	p, _ = LookupProfile("national")
	p.Datasets[1].Tag = "demo"
	assert.ErrorContains(t, p.Validate(), "duplicate")

	p, _ = LookupProfile("national")
	p.DateColumn = "demo_age_5_17"
	assert.ErrorContains(t, p.Validate(), "can't be summed")

	// A date column doesn't have to be a key
	p, _ = LookupProfile("national")
	p.DateColumn = "month"
	assert.NoError(t, p.Validate())
}
