// pkg/coverage/config.go
package coverage

import (
	"fmt"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Op is a threshold comparison
type Op string

const (
	Less         Op = "<"
	LessEqual    Op = "<="
	Greater      Op = ">"
	GreaterEqual Op = ">="
)

// Holds reports whether value op threshold is true
func (o Op) Holds(value, threshold float64) bool {
	switch o {
	case Less:
		return value < threshold
	case LessEqual:
		return value <= threshold
	case Greater:
		return value > threshold
	case GreaterEqual:
		return value >= threshold
	default:
		return false
	}
}

// Valid reports whether o is a known comparison
func (o Op) Valid() bool {
	switch o {
	case Less, LessEqual, Greater, GreaterEqual:
		return true
	}
	return false
}

// Scale selects how a score is rescaled
type Scale string

const (
	ScaleNone        Scale = "none"
	ScalePercentRank Scale = "percent_rank"
)

// Ratio derives Name = Numerator / Denominator per row
type Ratio struct {
	Name        string `yaml:"name"`
	Numerator   string `yaml:"numerator"`
	Denominator string `yaml:"denominator"`
}

// Flag derives a boolean column from a threshold on Column
type Flag struct {
	Name      string  `yaml:"name"`
	Column    string  `yaml:"column"`
	Op        Op      `yaml:"op"`
	Threshold float64 `yaml:"threshold"`
}

// Term is one weighted component of a score.
// Invert uses 1 - value instead of value.
type Term struct {
	Column string  `yaml:"column"`
	Weight float64 `yaml:"weight"`
	Invert bool    `yaml:"invert,omitempty"`
}

// Score is a weighted sum of terms, optionally rescaled
type Score struct {
	Name  string `yaml:"name"`
	Terms []Term `yaml:"terms"`
	Scale Scale  `yaml:"scale,omitempty"`
}

// Extract selects rows for a separate output.
// With TopK > 0 it keeps the first TopK rows sorted descending by Column;
// otherwise it keeps rows where Column Op Threshold holds, sorted by Column.
type Extract struct {
	Name       string  `yaml:"name"`
	Column     string  `yaml:"column"`
	Op         Op      `yaml:"op,omitempty"`
	Threshold  float64 `yaml:"threshold,omitempty"`
	Descending bool    `yaml:"descending,omitempty"`
	TopK       int     `yaml:"top_k,omitempty"`
	Output     string  `yaml:"output,omitempty"` // file name, empty to keep in memory only
}

// Config lists the metric formulas applied to a merged table, in order
type Config struct {
	Ratios      []Ratio   `yaml:"ratios"`
	Flags       []Flag    `yaml:"flags,omitempty"`
	Score       *Score    `yaml:"score,omitempty"`
	Extracts    []Extract `yaml:"extracts,omitempty"`
	Correlation []string  `yaml:"correlation,omitempty"`
}

// Validate checks the formulas against the columns available in a table.
// Columns produced by earlier formulas count as available.
func (c Config) Validate(columns []string) error {
	available := make(map[string]bool, len(columns))
	for _, col := range columns {
		available[col] = true
	}
	need := func(item, col string) error {
		if !available[col] {
			return &model.UnknownColumnError{Stage: "metrics", Item: item, Column: col}
		}
		return nil
	}

	for _, r := range c.Ratios {
		if r.Name == "" {
			return fmt.Errorf("ratio with numerator %q has no name", r.Numerator)
		}
		if err := need(r.Name, r.Numerator); err != nil {
			return err
		}
		if err := need(r.Name, r.Denominator); err != nil {
			return err
		}
		available[r.Name] = true
	}
	for _, f := range c.Flags {
		if !f.Op.Valid() {
			return fmt.Errorf("flag %s: unknown comparison %q", f.Name, f.Op)
		}
		if err := need(f.Name, f.Column); err != nil {
			return err
		}
		available[f.Name] = true
	}
	if s := c.Score; s != nil {
		if len(s.Terms) == 0 {
			return fmt.Errorf("score %s has no terms", s.Name)
		}
		switch s.Scale {
		case "", ScaleNone, ScalePercentRank:
		default:
			return fmt.Errorf("score %s: unknown scale %q", s.Name, s.Scale)
		}
		for _, t := range s.Terms {
			if err := need(s.Name, t.Column); err != nil {
				return err
			}
		}
		available[s.Name] = true
	}
	for _, e := range c.Extracts {
		if e.TopK <= 0 && !e.Op.Valid() {
			return fmt.Errorf("extract %s: unknown comparison %q", e.Name, e.Op)
		}
		if err := need(e.Name, e.Column); err != nil {
			return err
		}
	}
	for _, col := range c.Correlation {
		if err := need("correlation", col); err != nil {
			return err
		}
	}
	return nil
}
