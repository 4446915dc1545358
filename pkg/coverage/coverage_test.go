package coverage

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

func mergedTable(rows ...[4]float64) *model.Table {
	t := model.NewTable("merged",
		model.Column{Name: model.ColPincode, IsKey: true},
		model.Column{Name: "demo_age_5_17", Kind: model.KindNumber},
		model.Column{Name: "enroll_age_5_17", Kind: model.KindNumber},
		model.Column{Name: "bio_age_5_17", Kind: model.KindNumber},
		model.Column{Name: "weight", Kind: model.KindNumber},
	)
	for i, r := range rows {
		t.Append(model.Row{
			model.ColPincode:  fmt.Sprintf("P%d", i),
			"demo_age_5_17":   r[0],
			"enroll_age_5_17": r[1],
			"bio_age_5_17":    r[2],
			"weight":          r[3],
		})
	}
	return t
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 0.2, SafeDivide(20, 100))
	assert.Equal(t, 0.0, SafeDivide(20, 0))
	assert.Equal(t, 0.0, SafeDivide(0, 0))
	assert.Equal(t, 0.0, SafeDivide(5, -1))
	assert.Equal(t, 0.0, SafeDivide(math.Inf(1), 2))
	assert.Equal(t, 0.0, SafeDivide(math.NaN(), 2))
}

func TestComputeRatioScenario(t *testing.T) {
	tbl := mergedTable([4]float64{100, 20, 0, 0}, [4]float64{0, 5, 0, 0})
	res, err := Compute(tbl, Config{
		Ratios: []Ratio{{Name: "enroll_ratio_5_17", Numerator: "enroll_age_5_17", Denominator: "demo_age_5_17"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.2, res.Table.Rows[0]["enroll_ratio_5_17"])
	assert.Equal(t, 0.0, res.Table.Rows[1]["enroll_ratio_5_17"], "zero denominator yields exactly 0")
	assert.Equal(t, model.KindNumber, res.Table.Column("enroll_ratio_5_17").Kind)
}

func TestFlagThresholdIsStrict(t *testing.T) {
	tbl := mergedTable([4]float64{100, 19, 0, 0}, [4]float64{100, 20, 0, 0}, [4]float64{100, 90, 0, 0})
	res, err := Compute(tbl, Config{
		Ratios: []Ratio{{Name: "r", Numerator: "enroll_age_5_17", Denominator: "demo_age_5_17"}},
		Flags: []Flag{
			{Name: "low", Column: "r", Op: Less, Threshold: 0.2},
			{Name: "high", Column: "r", Op: Greater, Threshold: 0.8},
			{Name: "low_incl", Column: "r", Op: LessEqual, Threshold: 0.2},
		},
	})
	require.NoError(t, err)

	rows := res.Table.Rows
	assert.Equal(t, true, rows[0]["low"], "0.19 < 0.2")
	assert.Equal(t, false, rows[1]["low"], "0.2 is not < 0.2")
	assert.Equal(t, true, rows[1]["low_incl"])
	assert.Equal(t, true, rows[2]["high"])
	assert.Equal(t, 1, res.FlagCounts["low"])
	assert.Equal(t, 2, res.FlagCounts["low_incl"])
	assert.Equal(t, model.KindBool, res.Table.Column("low").Kind)
}

func TestTopKStableDescending(t *testing.T) {
	var rows [][4]float64
	for i := 0; i < 100; i++ {
		rows = append(rows, [4]float64{0, 0, 0, float64(i % 10)})
	}
	tbl := mergedTable(rows...)

	top := TopK(tbl, "top", "weight", 5)
	require.Equal(t, 5, top.Len())
	assert.Equal(t, 100, tbl.Len(), "source table untouched")

	want := []string{"P9", "P19", "P29", "P39", "P49"}
	for i, row := range top.Rows {
		assert.Equal(t, 9.0, row["weight"])
		assert.Equal(t, want[i], row[model.ColPincode], "ties keep input order")
	}
}

func TestPercentRankAveragesTies(t *testing.T) {
	got := PercentRank([]float64{10, 20, 20, 30})
	assert.InDeltaSlice(t, []float64{25, 62.5, 62.5, 100}, got, 1e-9)

	assert.Empty(t, PercentRank(nil))
	assert.Equal(t, []float64{100}, PercentRank([]float64{3}))
}

func TestScoreWeightedAndScaled(t *testing.T) {
	tbl := mergedTable([4]float64{100, 10, 50, 0}, [4]float64{100, 50, 0, 0}, [4]float64{100, 0, 100, 0})
	cfg := Config{
		Ratios: []Ratio{
			{Name: "enroll_rate", Numerator: "enroll_age_5_17", Denominator: "demo_age_5_17"},
			{Name: "bio_rate", Numerator: "bio_age_5_17", Denominator: "demo_age_5_17"},
		},
		Score: &Score{Name: "priority_score", Scale: ScalePercentRank, Terms: []Term{
			{Column: "enroll_rate", Weight: 0.4},
			{Column: "bio_rate", Weight: 0.6},
		}},
		Extracts: []Extract{{Name: "intervention", Column: "priority_score", TopK: 2}},
	}
	res, err := Compute(tbl, cfg)
	require.NoError(t, err)

	// raw: 0.34, 0.2, 0.6
	assert.InDelta(t, 200.0/3, res.Table.Rows[0]["priority_score"].(float64), 1e-9)
	assert.InDelta(t, 100.0/3, res.Table.Rows[1]["priority_score"].(float64), 1e-9)
	assert.InDelta(t, 100.0, res.Table.Rows[2]["priority_score"].(float64), 1e-9)

	top := res.Extract("intervention")
	require.NotNil(t, top)
	require.Equal(t, 2, top.Len())
	assert.Equal(t, "P2", top.Rows[0][model.ColPincode])
	assert.Equal(t, "P0", top.Rows[1][model.ColPincode])
}

func TestScoreInvertedUnscaled(t *testing.T) {
	tbl := mergedTable([4]float64{100, 10, 5, 0})
	res, err := Compute(tbl, Config{
		Ratios: []Ratio{
			{Name: "enroll_rate", Numerator: "enroll_age_5_17", Denominator: "demo_age_5_17"},
			{Name: "bio_completion", Numerator: "bio_age_5_17", Denominator: "enroll_age_5_17"},
		},
		Score: &Score{Name: "priority_score", Terms: []Term{
			{Column: "enroll_rate", Weight: 0.6, Invert: true},
			{Column: "bio_completion", Weight: 0.4, Invert: true},
		}},
	})
	require.NoError(t, err)
	// (1-0.1)*0.6 + (1-0.5)*0.4
	assert.InDelta(t, 0.74, res.Table.Rows[0]["priority_score"].(float64), 1e-9)
}

func TestFilterExtractSorted(t *testing.T) {
	tbl := mergedTable([4]float64{100, 15, 0, 0}, [4]float64{100, 50, 0, 0}, [4]float64{100, 5, 0, 0})
	res, err := Compute(tbl, Config{
		Ratios:   []Ratio{{Name: "r", Numerator: "enroll_age_5_17", Denominator: "demo_age_5_17"}},
		Extracts: []Extract{{Name: "low", Column: "r", Op: Less, Threshold: 0.2}},
	})
	require.NoError(t, err)

	low := res.Extract("low")
	require.Equal(t, 2, low.Len())
	assert.Equal(t, "P2", low.Rows[0][model.ColPincode])
	assert.Equal(t, "P0", low.Rows[1][model.ColPincode])
	assert.Equal(t, 3, res.Table.Len())
}

func TestComputeUnknownColumn(t *testing.T) {
	tbl := mergedTable([4]float64{1, 1, 1, 1})
	_, err := Compute(tbl, Config{
		Ratios: []Ratio{{Name: "bio_ratio", Numerator: "bio_age_17_", Denominator: "demo_age_17_"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUnknownColumn))

	var uc *model.UnknownColumnError
	require.True(t, errors.As(err, &uc))
	assert.Equal(t, "bio_ratio", uc.Item)
	assert.Equal(t, "bio_age_17_", uc.Column)
	assert.False(t, tbl.HasColumn("bio_ratio"), "nothing written on failure")
}

func TestConfigValidateRejectsBadOp(t *testing.T) {
	err := Config{Flags: []Flag{{Name: "f", Column: "weight", Op: "!="}}}.Validate([]string{"weight"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown comparison")
}

func TestCorrelation(t *testing.T) {
	tbl := mergedTable(
		[4]float64{1, 2, 5, 7},
		[4]float64{2, 4, 4, 7},
		[4]float64{3, 6, 3, 7},
	)
	corr, err := Correlation(tbl, []string{"demo_age_5_17", "enroll_age_5_17", "bio_age_5_17", "weight"})
	require.NoError(t, err)
	require.Equal(t, 4, corr.Len())

	v, err := CorrelationValue(corr, "demo_age_5_17", "enroll_age_5_17")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	v, _ = CorrelationValue(corr, "demo_age_5_17", "bio_age_5_17")
	assert.InDelta(t, -1.0, v, 1e-9)

	v, _ = CorrelationValue(corr, "weight", "weight")
	assert.True(t, math.IsNaN(v), "constant column has no correlation")

	_, err = Correlation(tbl, []string{"nope"})
	assert.True(t, errors.Is(err, model.ErrUnknownColumn))
}
