// pkg/pipeline/error.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Stage names a step of a run
type Stage string

const (
	StageLoad      Stage = "load"
	StageAggregate Stage = "aggregate"
	StageMerge     Stage = "merge"
	StageMetrics   Stage = "metrics"
	StageOutput    Stage = "output"
	StageExport    Stage = "export"
)

// Stages lists every stage in run order
var Stages = []Stage{StageLoad, StageAggregate, StageMerge, StageMetrics, StageOutput, StageExport}

// StageError records which stage and dataset a run failed in.
// Run returns one for every failure after the profile is accepted.
type StageError struct {
	Stage   Stage
	Dataset string // empty for stages that span datasets
	Err     error
}

func (e *StageError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", e.Stage))
	if e.Dataset != "" {
		sb.WriteString(fmt.Sprintf("Dataset: %s ", e.Dataset))
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", e.Err.Error()))
	}
	return sb.String()
}

func (e *StageError) Unwrap() error { return e.Err }

func stageError(stage Stage, dataset string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Dataset: dataset, Err: err}
}

// Category classifies a run failure for logs and exit codes
type Category int

const (
	CategoryUnknown Category = iota
	CategoryInput           // no sources, unreadable file
	CategorySchema          // missing key or metric column
	CategoryData            // malformed cell
	CategoryIO              // output or database failure
	CategoryCanceled
)

// String returns a string representation of the category
func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "Input"
	case CategorySchema:
		return "Schema"
	case CategoryData:
		return "Data"
	case CategoryIO:
		return "IO"
	case CategoryCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Categorize maps an error from Run onto a category
func Categorize(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, model.ErrEmptyInput):
		return CategoryInput
	case errors.Is(err, model.ErrSchemaMismatch), errors.Is(err, model.ErrUnknownColumn):
		return CategorySchema
	case errors.Is(err, model.ErrMalformedValue):
		return CategoryData
	case isCanceled(err):
		return CategoryCanceled
	}

	var se *StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case StageLoad:
			return CategoryInput
		case StageOutput, StageExport:
			return CategoryIO
		}
	}
	return CategoryUnknown
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
