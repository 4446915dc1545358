// pkg/config/profile.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/David-Botos/aadhaar-coverage/pkg/coverage"
	"github.com/David-Botos/aadhaar-coverage/pkg/merge"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Dataset describes one input dataset and the value columns summed per key
type Dataset struct {
	Tag     string            `yaml:"tag"`
	Values  []string          `yaml:"values"`
	Renames map[string]string `yaml:"renames,omitempty"`
}

// Outputs names the CSV files written for the final table
type Outputs struct {
	Summary     string `yaml:"summary"`
	Correlation string `yaml:"correlation,omitempty"`
	Workbook    string `yaml:"workbook,omitempty"`
}

// Console selects the extract printed after a run
type Console struct {
	Extract string   `yaml:"extract,omitempty"`
	Columns []string `yaml:"columns,omitempty"`
}

// BarChart is a top-N bar chart of one column
type BarChart struct {
	Column string `yaml:"column"`
	TopN   int    `yaml:"top_n"`
	File   string `yaml:"file"`
}

// ScatterChart plots Y against X for every row
type ScatterChart struct {
	X    string `yaml:"x"`
	Y    string `yaml:"y"`
	File string `yaml:"file"`
}

// StackedChart stacks Columns for the top-N rows by SortBy
type StackedChart struct {
	SortBy  string   `yaml:"sort_by"`
	Columns []string `yaml:"columns"`
	TopN    int      `yaml:"top_n"`
	File    string   `yaml:"file"`
}

// Charts lists the optional PNG renderings
type Charts struct {
	Bar     *BarChart     `yaml:"bar,omitempty"`
	Scatter *ScatterChart `yaml:"scatter,omitempty"`
	Stacked *StackedChart `yaml:"stacked,omitempty"`
	Heatmap string        `yaml:"heatmap,omitempty"`
}

// Profile is a complete analysis configuration
type Profile struct {
	Name            string            `yaml:"name"`
	Keys            []string          `yaml:"keys"`
	DateColumn      string            `yaml:"date_column,omitempty"`
	Join            string            `yaml:"join"`
	Suffixes        []string          `yaml:"suffixes,flow,omitempty"`
	Datasets        []Dataset         `yaml:"datasets"`
	Renames         map[string]string `yaml:"renames,omitempty"`
	FixDoublePrefix bool              `yaml:"fix_double_prefix,omitempty"`
	Metrics         coverage.Config   `yaml:"metrics"`
	Outputs         Outputs           `yaml:"outputs"`
	Console         Console           `yaml:"console,omitempty"`
	Charts          Charts            `yaml:"charts,omitempty"`
}

// Tags returns the dataset tags in load order
func (p *Profile) Tags() []string {
	tags := make([]string, len(p.Datasets))
	for i, d := range p.Datasets {
		tags[i] = d.Tag
	}
	return tags
}

// Dataset returns the dataset with tag, or nil
func (p *Profile) Dataset(tag string) *Dataset {
	for i := range p.Datasets {
		if p.Datasets[i].Tag == tag {
			return &p.Datasets[i]
		}
	}
	return nil
}

// Validate checks the parts of a profile that don't depend on input data
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if len(p.Keys) == 0 {
		return fmt.Errorf("profile %s: keys are required", p.Name)
	}
	if len(p.Datasets) < 2 {
		return fmt.Errorf("profile %s: at least two datasets are required", p.Name)
	}
	if _, err := merge.ParseMode(p.Join); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	if len(p.Suffixes) != 0 && len(p.Suffixes) != 2 {
		return fmt.Errorf("profile %s: suffixes must be a pair", p.Name)
	}

	seen := make(map[string]bool)
	for _, d := range p.Datasets {
		if d.Tag == "" {
			return fmt.Errorf("profile %s: dataset without tag", p.Name)
		}
		if seen[d.Tag] {
			return fmt.Errorf("profile %s: duplicate dataset %q", p.Name, d.Tag)
		}
		seen[d.Tag] = true
		if len(d.Values) == 0 {
			return fmt.Errorf("profile %s: dataset %s has no value columns", p.Name, d.Tag)
		}
		if p.DateColumn != "" && contains(d.Values, p.DateColumn) {
			return fmt.Errorf("profile %s: date column %q can't be summed in dataset %s", p.Name, p.DateColumn, d.Tag)
		}
	}

	if p.Outputs.Summary == "" {
		return fmt.Errorf("profile %s: summary output is required", p.Name)
	}
	return nil
}

// Marshal encodes the profile as YAML
func (p *Profile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseProfile decodes a YAML profile, rejecting unknown fields
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if p.Join == "" {
		p.Join = string(merge.Outer)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfileFile reads a YAML profile from disk
func LoadProfileFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// LookupProfile returns a built-in profile by name
func LookupProfile(name string) (*Profile, error) {
	builtins := Builtin()
	p, ok := builtins[name]
	if !ok {
		names := make([]string, 0, len(builtins))
		for n := range builtins {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown profile %q (available: %v)", name, names)
	}
	return p, nil
}

// ResolveProfile prefers the profile file when one is configured
func (c *Config) ResolveProfile() (*Profile, error) {
	if c.ProfileFile != "" {
		return LoadProfileFile(c.ProfileFile)
	}
	return LookupProfile(c.Profile)
}

// Builtin returns fresh copies of the built-in profiles
func Builtin() map[string]*Profile {
	return map[string]*Profile{
		"national": nationalProfile(),
		"district": districtProfile(),
	}
}

func nationalProfile() *Profile {
	return &Profile{
		Name:       "national",
		Keys:       append([]string(nil), model.GeoKeys...),
		DateColumn: model.ColDate, // parsed, not grouped on
		Join:       string(merge.Outer),
		Datasets: []Dataset{
			{Tag: "demo", Values: []string{"demo_age_5_17", "demo_age_17_"}},
			{Tag: "enroll", Values: []string{"age_0_5", "age_5_17", "age_18_greater"}},
			{Tag: "bio", Values: []string{"bio_age_5_17", "bio_age_17_"}},
		},
		FixDoublePrefix: true,
		Metrics: coverage.Config{
			Ratios: []coverage.Ratio{
				{Name: "enroll_ratio_5_17", Numerator: "enroll_age_5_17", Denominator: "demo_age_5_17"},
				{Name: "enroll_ratio_17_plus", Numerator: "enroll_age_18_greater", Denominator: "demo_age_17_"},
				{Name: "bio_ratio_5_17", Numerator: "bio_age_5_17", Denominator: "demo_age_5_17"},
				{Name: "bio_ratio_17_plus", Numerator: "bio_age_17_", Denominator: "demo_age_17_"},
			},
			Flags: []coverage.Flag{
				{Name: "low_enroll_5_17_flag", Column: "enroll_ratio_5_17", Op: coverage.Less, Threshold: 0.2},
				{Name: "low_enroll_17_plus_flag", Column: "enroll_ratio_17_plus", Op: coverage.Less, Threshold: 0.2},
				{Name: "high_bio_5_17_flag", Column: "bio_ratio_5_17", Op: coverage.Greater, Threshold: 0.8},
				{Name: "high_bio_17_plus_flag", Column: "bio_ratio_17_plus", Op: coverage.Greater, Threshold: 0.8},
			},
			Score: &coverage.Score{
				Name: "priority_score",
				Terms: []coverage.Term{
					{Column: "enroll_ratio_5_17", Weight: 0.4},
					{Column: "bio_ratio_17_plus", Weight: 0.6},
				},
				Scale: coverage.ScalePercentRank,
			},
			Extracts: []coverage.Extract{
				{Name: "low_enroll_5_17", Column: "enroll_ratio_5_17", Op: coverage.Less, Threshold: 0.2, Output: "low_enroll_5_17.csv"},
				{Name: "low_enroll_17_plus", Column: "enroll_ratio_17_plus", Op: coverage.Less, Threshold: 0.2},
				{Name: "high_bio_5_17", Column: "bio_ratio_5_17", Op: coverage.Greater, Threshold: 0.8, Descending: true},
				{Name: "high_bio_17_plus", Column: "bio_ratio_17_plus", Op: coverage.Greater, Threshold: 0.8, Descending: true, Output: "high_bio_17_plus.csv"},
				{Name: "intervention", Column: "priority_score", TopK: 5, Descending: true},
			},
			Correlation: []string{"demo_age_5_17", "enroll_age_5_17", "bio_age_5_17", "enroll_ratio_5_17"},
		},
		Outputs: Outputs{
			Summary:     "aadhaar_analysis_summary.csv",
			Correlation: "correlation_matrix.csv",
			Workbook:    "aadhaar_analysis.xlsx",
		},
		Console: Console{
			Extract: "intervention",
			Columns: []string{model.ColState, model.ColDistrict, "priority_score"},
		},
		Charts: Charts{
			Bar:     &BarChart{Column: "enroll_ratio_5_17", TopN: 20, File: "top_enroll_ratio_5_17.png"},
			Scatter: &ScatterChart{X: "demo_age_5_17", Y: "enroll_age_5_17", File: "population_vs_enrollment.png"},
			Stacked: &StackedChart{
				SortBy:  "enroll_age_5_17",
				Columns: []string{"enroll_age_0_5", "enroll_age_5_17", "enroll_age_18_greater"},
				TopN:    10,
				File:    "enrollment_by_age_group.png",
			},
			Heatmap: "correlation_heatmap.png",
		},
	}
}

func districtProfile() *Profile {
	return &Profile{
		Name:       "district",
		Keys:       append([]string(nil), model.DatedGeoKeys...),
		DateColumn: model.ColDate,
		Join:       string(merge.Left),
		Datasets: []Dataset{
			{Tag: "demo", Values: []string{"demo_age_5_17", "demo_age_17_"}},
			{Tag: "enroll", Values: []string{"age_0_5", "age_5_17", "age_18_greater"}},
			{Tag: "bio", Values: []string{"bio_age_5_17", "bio_age_17_"}},
		},
		Metrics: coverage.Config{
			Ratios: []coverage.Ratio{
				{Name: "enroll_rate_5_17", Numerator: "enroll_age_5_17", Denominator: "demo_age_5_17"},
				{Name: "enroll_rate_17_plus", Numerator: "enroll_age_18_greater", Denominator: "demo_age_17_"},
				{Name: "bio_completion_5_17", Numerator: "bio_age_5_17", Denominator: "enroll_age_5_17"},
				{Name: "bio_completion_17_plus", Numerator: "bio_age_17_", Denominator: "enroll_age_18_greater"},
			},
			Flags: []coverage.Flag{
				{Name: "low_enrollment_flag", Column: "enroll_rate_5_17", Op: coverage.Less, Threshold: 0.05},
				{Name: "biometric_gap_flag", Column: "bio_completion_5_17", Op: coverage.Less, Threshold: 0.6},
			},
			Score: &coverage.Score{
				Name: "priority_score",
				Terms: []coverage.Term{
					{Column: "enroll_rate_5_17", Weight: 0.6, Invert: true},
					{Column: "bio_completion_5_17", Weight: 0.4, Invert: true},
				},
				Scale: coverage.ScaleNone,
			},
			Extracts: []coverage.Extract{
				{Name: "high_risk", Column: "priority_score", TopK: 10, Descending: true, Output: "aadhaar_high_risk_pincodes.csv"},
				{Name: "low_enrollment", Column: "enroll_rate_5_17", Op: coverage.Less, Threshold: 0.05, Output: "aadhaar_low_enrollment.csv"},
			},
		},
		Outputs: Outputs{
			Summary: "aadhaar_analysis_output.csv",
		},
		Console: Console{
			Extract: "high_risk",
			Columns: []string{model.ColDate, model.ColDistrict, model.ColPincode, "priority_score"},
		},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
