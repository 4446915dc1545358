package connector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/aadhaar-coverage/pkg/config"
)

func TestCreateSinkConnectorSQLite(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "coverage.db")
	cfg := &config.Config{Export: &config.ExportConfig{Driver: "sqlite", DSN: dsn}}

	conn, driver, err := NewConnectorFactory(cfg, nil).CreateSinkConnector(ctx)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "sqlite", driver)
	assert.Empty(t, conn.Schema())
	assert.Equal(t, 1, conn.DB().Stats().MaxOpenConnections)
}

func TestCreateSinkConnectorUnconfigured(t *testing.T) {
	_, _, err := NewConnectorFactory(&config.Config{}, nil).CreateSinkConnector(context.Background())
	assert.ErrorIs(t, err, ErrNoSinkConfigured)
}

func TestGenericConnectorUnknownDriver(t *testing.T) {
	_, err := NewGenericConnector(context.Background(), &config.ExportConfig{Driver: "nosuchdriver", DSN: "x"})
	assert.Error(t, err)
}

func TestGenericConnectorValidate(t *testing.T) {
	conn, err := NewGenericConnector(context.Background(), &config.ExportConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, conn.Validate(context.Background()))
}

func TestOpenHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenericConnector(ctx, &config.ExportConfig{Driver: "sqlite", DSN: ":memory:"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolApplySkipsZero(t *testing.T) {
	conn, err := NewGenericConnector(context.Background(), &config.ExportConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	Pool{}.Apply(conn.DB())
	assert.Equal(t, 1, conn.DB().Stats().MaxOpenConnections)

	Pool{MaxOpen: 3}.Apply(conn.DB())
	assert.Equal(t, 3, conn.DB().Stats().MaxOpenConnections)
}

func TestRegisterPoolMetrics(t *testing.T) {
	conn, err := NewGenericConnector(context.Background(), &config.ExportConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, "sink", conn))

	families, err := reg.Gather()
	require.NoError(t, err)
	var maxOpen float64 = -1
	for _, mf := range families {
		if mf.GetName() == "go_sql_max_open_connections" {
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, "sink", mf.GetMetric()[0].GetLabel()[0].GetValue())
			maxOpen = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, maxOpen)

	// Same name twice is rejected
	assert.Error(t, RegisterPoolMetrics(reg, "sink", conn))
	assert.NoError(t, RegisterPoolMetrics(nil, "sink", conn))
}

func TestBuildSnowflakeDSN(t *testing.T) {
	dsn, err := BuildSnowflakeDSN(&config.SnowflakeConfig{
		Account:      "acme-xy123",
		User:         "loader",
		Password:     "secret",
		Database:     "AADHAAR",
		Schema:       "PUBLIC",
		Warehouse:    "COMPUTE_WH",
		QueryTimeout: 90 * time.Second,
	})
	require.NoError(t, err)
	assert.Contains(t, dsn, "loader:secret@acme-xy123")
	assert.Contains(t, dsn, "warehouse=COMPUTE_WH")
	assert.Contains(t, dsn, "STATEMENT_TIMEOUT_IN_SECONDS=90")
}

func TestNilConfigs(t *testing.T) {
	ctx := context.Background()
	_, err := NewPostgresConnector(ctx, nil)
	assert.Error(t, err)
	_, err = NewSnowflakeConnector(ctx, nil)
	assert.Error(t, err)
}
