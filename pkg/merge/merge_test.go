package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

func aggTable(name string, cols []string, rows ...[]interface{}) *model.Table {
	t := model.NewTable(name,
		model.Column{Name: model.ColState, IsKey: true},
		model.Column{Name: model.ColDistrict, IsKey: true},
		model.Column{Name: model.ColPincode, IsKey: true},
	)
	for _, c := range cols {
		t.Columns = append(t.Columns, model.Column{Name: c, Kind: model.KindNumber})
	}
	for _, r := range rows {
		row := model.Row{model.ColState: r[0], model.ColDistrict: r[1], model.ColPincode: r[2]}
		for i, c := range cols {
			row[c] = r[3+i]
		}
		t.Append(row)
	}
	return t
}

type MergeSuite struct {
	suite.Suite
	demo, enroll, bio *model.Table
}

func (s *MergeSuite) SetupTest() {
	s.demo = aggTable("demo", []string{"demo_age_5_17"},
		[]interface{}{"S1", "D1", "P1", 100.0},
		[]interface{}{"S1", "D2", "P2", 50.0},
	)
	s.enroll = aggTable("enroll", []string{"enroll_age_5_17"},
		[]interface{}{"S1", "D1", "P1", 20.0},
		[]interface{}{"S0", "D0", "P0", 7.0},
	)
	s.bio = aggTable("bio", []string{"bio_age_5_17"},
		[]interface{}{"S9", "D9", "P9", 3.0},
	)
}

func (s *MergeSuite) TestOuterJoinIsUnionOfKeys() {
	out, err := Merge([]*model.Table{s.demo, s.enroll, s.bio}, Options{Keys: model.GeoKeys})
	s.Require().NoError(err)

	s.Equal(4, out.Len())
	s.Equal([]string{"state", "district", "pincode", "demo_age_5_17", "enroll_age_5_17", "bio_age_5_17"}, out.ColumnNames())

	var pincodes []string
	for _, r := range out.Rows {
		pincodes = append(pincodes, r[model.ColPincode].(string))
	}
	s.Equal([]string{"P0", "P1", "P2", "P9"}, pincodes, "outer join sorts by key")
}

func (s *MergeSuite) TestZeroFillLeavesNoAbsentCells() {
	out, err := Merge([]*model.Table{s.demo, s.enroll, s.bio}, Options{Keys: model.GeoKeys})
	s.Require().NoError(err)

	for _, row := range out.Rows {
		for _, c := range out.Columns {
			s.NotNil(row[c.Name], "column %s", c.Name)
		}
	}
}

func (s *MergeSuite) TestKeyOnlyInBiometricSurvives() {
	out, err := Merge([]*model.Table{s.demo, s.enroll, s.bio}, Options{Keys: model.GeoKeys})
	s.Require().NoError(err)

	last := out.Rows[out.Len()-1]
	s.Equal("P9", last[model.ColPincode])
	s.Equal(0.0, last["demo_age_5_17"])
	s.Equal(0.0, last["enroll_age_5_17"])
	s.Equal(3.0, last["bio_age_5_17"])
}

func (s *MergeSuite) TestLeftJoinKeepsLeftRowsInOrder() {
	demo := aggTable("demo", []string{"demo_age_5_17"},
		[]interface{}{"S2", "D1", "P5", 10.0},
		[]interface{}{"S1", "D1", "P1", 100.0},
	)
	out, err := Merge([]*model.Table{demo, s.enroll, s.bio}, Options{Keys: model.GeoKeys, Mode: Left})
	s.Require().NoError(err)

	s.Require().Equal(2, out.Len())
	s.Equal("P5", out.Rows[0][model.ColPincode])
	s.Equal(0.0, out.Rows[0]["enroll_age_5_17"])
	s.Equal(20.0, out.Rows[1]["enroll_age_5_17"])
}

func (s *MergeSuite) TestMissingKeyColumn() {
	broken := model.NewTable("enroll", model.Column{Name: model.ColState})
	_, err := Merge([]*model.Table{s.demo, broken}, Options{Keys: model.GeoKeys})
	s.Require().Error(err)
	s.True(errors.Is(err, model.ErrSchemaMismatch))

	var sm *model.SchemaMismatchError
	s.Require().True(errors.As(err, &sm))
	s.Equal("enroll", sm.Dataset)
	s.Equal("merge", sm.Stage)
}

func (s *MergeSuite) TestCollidingColumnsGetSuffixes() {
	other := aggTable("other", []string{"demo_age_5_17"}, []interface{}{"S1", "D1", "P1", 1.0})
	out, err := Merge([]*model.Table{s.demo, other}, Options{Keys: model.GeoKeys})
	s.Require().NoError(err)
	s.True(out.HasColumn("demo_age_5_17_x"))
	s.True(out.HasColumn("demo_age_5_17_y"))
}

func (s *MergeSuite) TestInputsAreNotMutated() {
	_, err := Merge([]*model.Table{s.demo, s.enroll}, Options{Keys: model.GeoKeys})
	s.Require().NoError(err)
	s.Equal(2, s.demo.Len())
	s.False(s.demo.HasColumn("enroll_age_5_17"))
}

func TestMergeSuite(t *testing.T) {
	suite.Run(t, new(MergeSuite))
}

func TestDoublePrefixRenames(t *testing.T) {
	renames := DoublePrefixRenames(
		[]string{"demo_demo_age_5_17", "demo_age_17_", "bio_bio_age_17_", "state"},
		[]string{"demo", "enroll", "bio"},
	)
	assert.Equal(t, map[string]string{
		"demo_demo_age_5_17": "demo_age_5_17",
		"bio_bio_age_17_":    "bio_age_17_",
	}, renames)

	tbl := aggTable("demo", []string{"demo_demo_age_5_17"}, []interface{}{"S1", "D1", "P1", 4.0})
	out, err := Merge([]*model.Table{tbl}, Options{Keys: model.GeoKeys, Renames: renames})
	require.NoError(t, err)
	assert.Equal(t, 4.0, out.Rows[0]["demo_age_5_17"])
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Outer, m)

	m, err = ParseMode("LEFT")
	require.NoError(t, err)
	assert.Equal(t, Left, m)

	_, err = ParseMode("cross")
	assert.Error(t, err)
}
