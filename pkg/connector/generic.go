// pkg/connector/generic.go
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/David-Botos/aadhaar-coverage/pkg/config"
)

// GenericConnector wraps any registered database/sql driver, used for
// file-backed exports such as sqlite.
type GenericConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.ExportConfig
}

// NewGenericConnector opens cfg.Driver with cfg.DSN
func NewGenericConnector(ctx context.Context, cfg *config.ExportConfig) (*GenericConnector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("export database is not configured")
	}
	logger := zap.L().Named("export-connector")
	logger.Info("Opening export database", zap.String("driver", cfg.Driver))

	var pool Pool
	if cfg.Driver == "sqlite" {
		// One writer at a time
		pool = Pool{MaxOpen: 1, MaxIdle: 1}
	}
	db, err := open(ctx, cfg.Driver, cfg.DSN, pool, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	return &GenericConnector{db: db, logger: logger, cfg: cfg}, nil
}

// DB returns the underlying database connection
func (c *GenericConnector) DB() *sqlx.DB {
	return c.db
}

// Schema returns the configured schema, usually empty
func (c *GenericConnector) Schema() string {
	return c.cfg.Schema
}

// Validate runs a trivial query
func (c *GenericConnector) Validate(ctx context.Context) error {
	var one int
	if err := c.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("failed to validate %s database: %w", c.cfg.Driver, err)
	}
	return nil
}

// Close closes the database connection
func (c *GenericConnector) Close() error {
	c.logger.Info("Closing export database", zap.String("driver", c.cfg.Driver))
	logPoolStats(c.logger, c.cfg.Driver, c.db)
	return c.db.Close()
}
