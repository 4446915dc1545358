// pkg/connector/connector.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// DatabaseConnector is a validated connection used as a source or a sink
type DatabaseConnector interface {
	// DB returns the underlying database handle
	DB() *sqlx.DB

	// Schema is the schema tables are written to, empty for the default
	Schema() string

	// Validate verifies the connection and permissions
	Validate(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error
}

// Pool holds connection pool limits; zero values keep the driver default
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Apply sets the non-zero limits on db
func (p Pool) Apply(db *sqlx.DB) {
	if p.MaxOpen > 0 {
		db.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		db.SetMaxIdleConns(p.MaxIdle)
	}
	if p.MaxLifetime > 0 {
		db.SetConnMaxLifetime(p.MaxLifetime)
	}
	if p.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.MaxIdleTime)
	}
}

// open opens driver/dsn, applies the pool and pings within pingTimeout.
// The handle is closed again if the ping fails.
func open(ctx context.Context, driver, dsn string, pool Pool, pingTimeout time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	pool.Apply(db)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("ping timed out after %v: %w", pingTimeout, err)
		}
		return nil, err
	}
	return db, nil
}

// logPoolStats logs pool usage, typically when a connection closes
func logPoolStats(logger *zap.Logger, name string, db *sqlx.DB) {
	stats := db.Stats()
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConnections),
		zap.Int64("wait_count", stats.WaitCount),
		zap.Duration("wait_duration", stats.WaitDuration),
		zap.Int64("max_lifetime_closed", stats.MaxLifetimeClosed),
	)
}

// RegisterPoolMetrics exports the connection pool statistics of conn as
// go_sql_* metrics labelled db_name=name.
func RegisterPoolMetrics(reg prometheus.Registerer, name string, conn DatabaseConnector) error {
	if reg == nil {
		return nil
	}
	if err := reg.Register(collectors.NewDBStatsCollector(conn.DB().DB, name)); err != nil {
		return fmt.Errorf("failed to register pool metrics for %s: %w", name, err)
	}
	return nil
}
