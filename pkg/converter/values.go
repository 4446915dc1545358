// pkg/converter/values.go
package converter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// ConvertValue converts a cell to a driver value for a column of kind
func (c *TypeConverter) ConvertValue(value interface{}, kind model.Kind, colName string) (interface{}, error) {
	// Handle NULL values
	if c.isNull(value) {
		return nil, nil
	}

	switch kind {
	case model.KindNumber:
		return convertToNumeric(value, colName)
	case model.KindBool:
		b, err := convertToBoolean(value, colName)
		if err != nil {
			return nil, err
		}
		if c.config.Dialect == SQLite {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return b, nil
	case model.KindDate:
		t, err := convertToDate(value, colName)
		if err != nil {
			return nil, err
		}
		if c.config.DateAsText {
			return t.Format("2006-01-02"), nil
		}
		return t, nil
	default:
		return model.FormatValue(value), nil
	}
}

// ConvertRow converts a row into driver values in column order
func (c *TypeConverter) ConvertRow(row model.Row, columns []model.Column) ([]interface{}, error) {
	values := make([]interface{}, len(columns))
	for i, col := range columns {
		v, err := c.ConvertValue(row[col.Name], col.Kind, col.Name)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// isNull determines if a value should be treated as NULL
func (c *TypeConverter) isNull(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok && s == "" && c.config.EmptyStringAsNull {
		return true
	}
	return false
}

// convertToNumeric converts a value to float64
func convertToNumeric(value interface{}, colName string) (interface{}, error) {
	if f, ok := model.ToFloat(value); ok {
		return f, nil
	}
	if s, ok := value.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("column %s: cannot convert string '%s' to numeric", colName, s)
	}
	return nil, fmt.Errorf("column %s: cannot convert %T to numeric", colName, value)
}

// convertToBoolean converts a value to boolean
func convertToBoolean(value interface{}, colName string) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		// 0.0 is false, anything else is true
		return v != 0.0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "yes", "1":
			return true, nil
		case "false", "f", "no", "0":
			return false, nil
		}
		return false, fmt.Errorf("column %s: cannot convert string '%s' to boolean", colName, v)
	default:
		return false, fmt.Errorf("column %s: cannot convert %T to boolean", colName, value)
	}
}

// convertToDate converts a value to a time.Time
func convertToDate(value interface{}, colName string) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("column %s: cannot parse '%s' as date", colName, v)
	default:
		return time.Time{}, fmt.Errorf("column %s: cannot convert %T to date", colName, value)
	}
}
