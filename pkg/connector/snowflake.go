// pkg/connector/snowflake.go
package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/config"
	"github.com/David-Botos/aadhaar-coverage/pkg/loader"
)

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake
type SnowflakeConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig) (*SnowflakeConnector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Snowflake is not configured")
	}
	logger := zap.L().Named("snowflake-connector")

	dsn, err := BuildSnowflakeDSN(cfg)
	if err != nil {
		return nil, err
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	db, err := open(ctx, "snowflake", dsn, Pool{
		MaxOpen:     cfg.MaxOpenConns,
		MaxIdle:     cfg.MaxIdleConns,
		MaxLifetime: cfg.ConnMaxLifetime,
		MaxIdleTime: cfg.ConnMaxIdleTime,
	}, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	return &SnowflakeConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// BuildSnowflakeDSN builds a DSN with Snowflake's DSN builder.
// The statement timeout travels as a session parameter so every pooled
// connection carries it.
func BuildSnowflakeDSN(cfg *config.SnowflakeConfig) (string, error) {
	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Schema:        cfg.Schema,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}
	if cfg.QueryTimeout > 0 {
		timeout := fmt.Sprintf("%d", int(cfg.QueryTimeout.Seconds()))
		sfConfig.Params = map[string]*string{"STATEMENT_TIMEOUT_IN_SECONDS": &timeout}
	}

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return "", fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}
	return dsn, nil
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sqlx.DB {
	return c.db
}

// Schema returns the configured schema
func (c *SnowflakeConnector) Schema() string {
	return c.cfg.Schema
}

// Validate verifies the Snowflake connection and access rights
func (c *SnowflakeConnector) Validate(ctx context.Context) error {
	var role, database, warehouse string
	err := c.db.QueryRowxContext(ctx, "SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	// Verify we're connected to the correct database
	if !strings.EqualFold(database, c.cfg.Database) {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, c.cfg.Database)
	}

	return nil
}

// Close closes the database connection
func (c *SnowflakeConnector) Close() error {
	c.logger.Info("Closing Snowflake connection")
	logPoolStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// GetTables retrieves all tables in the configured schema
func (c *SnowflakeConnector) GetTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := c.db.SelectContext(ctx, &tables,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name`,
		strings.ToUpper(c.cfg.Schema))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tables from schema %s: %w", c.cfg.Schema, err)
	}
	return tables, nil
}

// TableSources returns a loader source per table. Each table is read with one
// streamed query; Snowflake gives no stable order for OFFSET paging.
func (c *SnowflakeConnector) TableSources(ctx context.Context, tables []string) ([]loader.Source, error) {
	existing, err := c.GetTables(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[strings.ToUpper(t)] = true
	}

	sources := make([]loader.Source, 0, len(tables))
	for _, t := range tables {
		if !known[strings.ToUpper(t)] {
			return nil, fmt.Errorf("table %s not found in schema %s", t, c.cfg.Schema)
		}
		src := loader.NewTableSource(c.db, t)
		src.Label = fmt.Sprintf("snowflake:%s.%s", c.cfg.Schema, t)
		if c.cfg.QueryTimeout > 0 {
			src.Timeout = c.cfg.QueryTimeout
		}
		sources = append(sources, src)
	}
	return sources, nil
}
