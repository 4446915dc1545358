// pkg/cleaner/operations.go
package cleaner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// dayFirstLayouts are tried in order. Day-first layouts come before ISO so
// that 03/04/2025 reads as 3 April.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var thousandsPattern = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// parseDayFirst parses a date string, day before month
func parseDayFirst(s string, layouts []string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date from '%s'", cleaned)
}

// cleanDate converts a date cell to time.Time
func (c *DataCleaner) cleanDate(cc model.CleaningContext, value interface{}) (interface{}, *model.CleaningOperation, error) {
	switch val := value.(type) {
	case time.Time:
		return val, nil, nil
	case string:
		t, err := parseDayFirst(val, c.cfg.DateLayouts)
		if err != nil {
			return nil, nil, model.MalformedValue(cc.Dataset, cc.Source, cc.ColumnName, cc.RowNumber, val)
		}
		return t, nil, nil
	default:
		return nil, nil, model.MalformedValue(cc.Dataset, cc.Source, cc.ColumnName, cc.RowNumber, value)
	}
}

// cleanKey converts a key cell to trimmed text.
// Numeric pincodes from typed sources become their integer text.
func cleanKey(cc model.CleaningContext, value interface{}) (interface{}, *model.CleaningOperation) {
	switch val := value.(type) {
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed != val {
			return trimmed, newOperation(cc, val, trimmed, "whitespace_trim", "padded_key")
		}
		return val, nil
	default:
		text := toString(value)
		return text, newOperation(cc, value, text, "type_standardization", "key_as_text")
	}
}

// cleanMeasure converts a non-key cell to float64, bool or text
func cleanMeasure(cc model.CleaningContext, value interface{}) (interface{}, *model.CleaningOperation) {
	switch val := value.(type) {
	case float64, bool:
		return val, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		f, err := toFloat(val)
		if err != nil {
			return val, nil
		}
		return f, nil
	case time.Time:
		return val, nil
	case string:
		trimmed := strings.TrimSpace(val)
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f, nil
		}
		if thousandsPattern.MatchString(trimmed) {
			stripped := strings.ReplaceAll(trimmed, ",", "")
			if f, err := strconv.ParseFloat(stripped, 64); err == nil {
				return f, newOperation(cc, val, stripped, "type_standardization", "thousands_separator")
			}
		}
		switch strings.ToLower(trimmed) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return trimmed, nil
	default:
		return toString(val), nil
	}
}

func newOperation(cc model.CleaningContext, original interface{}, newValue, op, reason string) *model.CleaningOperation {
	return &model.CleaningOperation{
		Dataset:       cc.Dataset,
		Source:        cc.Source,
		ColumnName:    cc.ColumnName,
		OriginalValue: original,
		NewValue:      newValue,
		RowNumber:     cc.RowNumber,
		Operation:     op,
		Reason:        reason,
	}
}

// Helper functions

// toString converts an interface to string
func toString(v interface{}) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return model.FormatNumber(val)
	case float32:
		return model.FormatNumber(float64(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}

// toFloat attempts to convert a value to float64
func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}
