package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

func TestDialectForDriver(t *testing.T) {
	for driver, want := range map[string]Dialect{"pgx": Postgres, "postgres": Postgres, "snowflake": Snowflake, "sqlite": SQLite} {
		got, err := DialectForDriver(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DialectForDriver("oracle")
	assert.Error(t, err)
}

func TestGenerateColumnDefinitions(t *testing.T) {
	cols := []model.Column{
		{Name: "pincode", Kind: model.KindText, IsKey: true},
		{Name: "enroll_ratio_5_17", Kind: model.KindNumber},
		{Name: "low_enroll_5_17", Kind: model.KindBool},
		{Name: "date", Kind: model.KindDate, IsKey: true},
	}

	pg := NewTypeConverter(nil, Postgres).GenerateColumnDefinitions(cols)
	assert.Equal(t, []string{
		`"pincode" TEXT NOT NULL`,
		`"enroll_ratio_5_17" DOUBLE PRECISION NULL`,
		`"low_enroll_5_17" BOOLEAN NULL`,
		`"date" DATE NOT NULL`,
	}, pg)

	lite := NewTypeConverter(nil, SQLite).GenerateColumnDefinitions(cols)
	assert.Equal(t, `"low_enroll_5_17" INTEGER NULL`, lite[2])
	assert.Equal(t, `"date" TEXT NOT NULL`, lite[3])

	sf := NewTypeConverter(nil, Snowflake).GenerateColumnDefinitions(cols)
	assert.Equal(t, `"pincode" VARCHAR NOT NULL`, sf[0])
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"demo_age_17_"`, QuoteIdentifier("DEMO_AGE_17_"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
	// Names are cut at a NUL byte
	assert.Equal(t, `"state"`, QuoteIdentifier("State\x00; DROP TABLE x"))
	assert.Equal(t, `"coverage"."summary"`, QualifiedName("coverage", "summary"))
	assert.Equal(t, `"summary"`, QualifiedName("", "summary"))
}

func TestConvertRow(t *testing.T) {
	cols := []model.Column{
		{Name: "date", Kind: model.KindDate},
		{Name: "pincode", Kind: model.KindText},
		{Name: "ratio", Kind: model.KindNumber},
		{Name: "flag", Kind: model.KindBool},
	}
	d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	row := model.Row{"date": d, "pincode": "041001", "ratio": 0.25, "flag": true}

	pg, err := NewTypeConverter(nil, Postgres).ConvertRow(row, cols)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{d, "041001", 0.25, true}, pg)

	lite, err := NewTypeConverter(nil, SQLite).ConvertRow(row, cols)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"2025-03-01", "041001", 0.25, int64(1)}, lite)

	row["ratio"] = nil
	pg, err = NewTypeConverter(nil, Postgres).ConvertRow(row, cols)
	require.NoError(t, err)
	assert.Nil(t, pg[2])
}

func TestConvertValueErrors(t *testing.T) {
	c := NewTypeConverter(nil, Postgres)
	_, err := c.ConvertValue("many", model.KindNumber, "age")
	assert.Error(t, err)
	_, err = c.ConvertValue("maybe", model.KindBool, "flag")
	assert.Error(t, err)
	_, err = c.ConvertValue(42.0, model.KindDate, "date")
	assert.Error(t, err)

	v, err := c.ConvertValue("12", model.KindNumber, "age")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
}
