//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

type PostgresSinkSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	dsn       string
}

func TestPostgresSinkSuite(t *testing.T) {
	suite.Run(t, new(PostgresSinkSuite))
}

func (s *PostgresSinkSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("aadhaar"),
		tcpostgres.WithUsername("analyst"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.dsn = dsn
}

func (s *PostgresSinkSuite) TearDownSuite() {
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *PostgresSinkSuite) open(driver string) *sqlx.DB {
	db, err := sqlx.Open(driver, s.dsn)
	s.Require().NoError(err)
	s.T().Cleanup(func() { db.Close() })
	return db
}

func (s *PostgresSinkSuite) TestWriteTableBothDrivers() {
	ctx := context.Background()

	for _, driver := range []string{"pgx", "postgres"} {
		db := s.open(driver)
		schema := "coverage_" + driver
		_, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema)
		s.Require().NoError(err)

		sink, err := NewSQLSink(db, nil, Options{Schema: schema, BatchSize: 2})
		s.Require().NoError(err)

		n, err := sink.WriteTable(ctx, "run-1", "summary", resultTable())
		s.Require().NoError(err)
		s.EqualValues(3, n)

		var flagged int
		s.Require().NoError(db.GetContext(ctx, &flagged,
			`SELECT COUNT(*) FROM `+schema+`.summary WHERE low_enroll_5_17_flag`))
		s.Equal(1, flagged, driver)
	}
}

func (s *PostgresSinkSuite) TestWriteDatedTable() {
	ctx := context.Background()
	db := s.open("pgx")
	sink, err := NewSQLSink(db, nil, Options{})
	s.Require().NoError(err)

	tbl := model.NewTable("dated",
		model.Column{Name: "date", Kind: model.KindDate, IsKey: true},
		model.Column{Name: "pincode", Kind: model.KindText, IsKey: true},
	)
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tbl.Append(model.Row{"date": day, "pincode": "641001"})

	_, err = sink.WriteTable(ctx, "run-1", "dated", tbl)
	s.Require().NoError(err)

	var got time.Time
	require.NoError(s.T(), db.GetContext(ctx, &got, `SELECT date FROM dated`))
	s.True(got.Equal(day))
}
