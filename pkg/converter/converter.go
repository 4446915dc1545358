// pkg/converter/converter.go
package converter

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Dialect is the SQL flavor a table is written to
type Dialect string

const (
	Postgres  Dialect = "postgres"
	Snowflake Dialect = "snowflake"
	SQLite    Dialect = "sqlite"
)

// DialectForDriver maps a database/sql driver name to its dialect
func DialectForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "snowflake":
		return Snowflake, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", driver)
	}
}

// TypeConverter handles mapping of column kinds and values to SQL
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	Dialect Dialect
	// Whether to treat empty strings as NULL
	EmptyStringAsNull bool
	// Store dates as YYYY-MM-DD text instead of driver time values
	DateAsText bool
}

// DefaultConfig returns the default configuration for a dialect
func DefaultConfig(d Dialect) TypeConverterConfig {
	return TypeConverterConfig{
		Dialect:           d,
		EmptyStringAsNull: true,
		DateAsText:        d == SQLite,
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger, d Dialect) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig(d))
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeConverter{
		logger: logger,
		config: config,
	}
}

// Dialect returns the target dialect
func (c *TypeConverter) Dialect() Dialect { return c.config.Dialect }

// SQLType returns the column type used for a kind
func (c *TypeConverter) SQLType(kind model.Kind) string {
	switch c.config.Dialect {
	case Snowflake:
		switch kind {
		case model.KindNumber:
			return "FLOAT"
		case model.KindBool:
			return "BOOLEAN"
		case model.KindDate:
			return "DATE"
		default:
			return "VARCHAR"
		}
	case SQLite:
		switch kind {
		case model.KindNumber:
			return "REAL"
		case model.KindBool:
			return "INTEGER"
		default:
			return "TEXT"
		}
	default:
		switch kind {
		case model.KindNumber:
			return "DOUBLE PRECISION"
		case model.KindBool:
			return "BOOLEAN"
		case model.KindDate:
			return "DATE"
		default:
			return "TEXT"
		}
	}
}

// GenerateColumnDefinitions creates column definitions for a table.
// Key columns are NOT NULL.
func (c *TypeConverter) GenerateColumnDefinitions(columns []model.Column) []string {
	definitions := make([]string, 0, len(columns))

	for _, col := range columns {
		nullability := "NULL"
		if col.IsKey {
			nullability = "NOT NULL"
		}

		def := fmt.Sprintf("%s %s %s",
			QuoteIdentifier(col.Name),
			c.SQLType(col.Kind),
			nullability)

		definitions = append(definitions, def)
	}

	return definitions
}

// QualifiedName quotes a table name, prefixed by schema when set
func QualifiedName(schema, table string) string {
	if schema == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

// QuoteIdentifier lowercases and quotes an identifier so every dialect
// resolves it to the same case-sensitive name
func QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(strings.ToLower(name))
}
