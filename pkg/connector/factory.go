// pkg/connector/factory.go
package connector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/config"
)

// ErrNoSinkConfigured is returned when neither an export database nor
// PostgreSQL is configured
var ErrNoSinkConfigured = errors.New("no SQL export configured (set EXPORT_DRIVER/EXPORT_DSN or POSTGRES_*)")

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.logger.Info("Creating Snowflake connector")

	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.logger.Info("Creating PostgreSQL connector")

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// CreateExportConnector creates a connector for the EXPORT_DRIVER database
func (f *ConnectorFactory) CreateExportConnector(ctx context.Context) (*GenericConnector, error) {
	f.logger.Info("Creating export connector")

	connector, err := NewGenericConnector(ctx, f.cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("failed to create export connector: %w", err)
	}

	return connector, nil
}

// CreateSinkConnector returns the database results are written to.
// An explicit export database wins over PostgreSQL.
func (f *ConnectorFactory) CreateSinkConnector(ctx context.Context) (DatabaseConnector, string, error) {
	var (
		conn   DatabaseConnector
		driver string
		err    error
	)
	switch {
	case f.cfg.Export != nil:
		conn, err = f.CreateExportConnector(ctx)
		driver = f.cfg.Export.Driver
	case f.cfg.Postgres != nil:
		conn, err = f.CreatePostgresConnector(ctx)
		driver = f.cfg.Postgres.Driver
	default:
		return nil, "", ErrNoSinkConfigured
	}
	if err != nil {
		return nil, "", err
	}

	if err := conn.Validate(ctx); err != nil {
		conn.Close()
		return nil, "", err
	}
	return conn, driver, nil
}
