package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the coverage pipeline. Typed errors below match them
// with errors.Is so callers can branch without type assertions.
var (
	ErrEmptyInput     = errors.New("empty input")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrMalformedValue = errors.New("malformed value")
)

// EmptyInputError reports a dataset with no sources
type EmptyInputError struct {
	Dataset string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("dataset %q: no input sources provided", e.Dataset)
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// SchemaMismatchError reports required columns absent from a table
type SchemaMismatchError struct {
	Dataset string
	Stage   string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("dataset %q, stage %s: missing required columns [%s]",
		e.Dataset, e.Stage, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// UnknownColumnError reports a configured formula referencing a missing column
type UnknownColumnError struct {
	Stage  string
	Item   string // ratio, flag, score or extract name
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("stage %s: %s references unknown column %q", e.Stage, e.Item, e.Column)
}

func (e *UnknownColumnError) Is(target error) bool { return target == ErrUnknownColumn }

// MalformedValue builds an ErrMalformedValue with cell coordinates.
// Without a source, row is the position in the dataset's combined table.
func MalformedValue(dataset, source, column string, row int, value interface{}) error {
	if source == "" {
		return fmt.Errorf("%w: dataset %q combined row %d column %q: %v",
			ErrMalformedValue, dataset, row, column, value)
	}
	return fmt.Errorf("%w: dataset %q source %q row %d column %q: %v",
		ErrMalformedValue, dataset, source, row, column, value)
}
