// pkg/model/cleaning.go
package model

// CleaningOperation represents a single normalization applied to a cell
type CleaningOperation struct {
	Dataset       string      // Dataset tag (demo, enroll, bio)
	Source        string      // Source name (file path or table)
	ColumnName    string      // Column that was cleaned
	OriginalValue interface{} // Original value (may be nil)
	NewValue      string      // New value after cleaning
	RowNumber     int         // 1-based data row number within the source
	Operation     string      // Type of cleaning performed (e.g., "null_token")
	Reason        string      // Reason for cleaning (e.g., "blank_cell")
}

// CleaningContext contains information needed for cleaning a value
type CleaningContext struct {
	Dataset    string
	Source     string
	ColumnName string
	RowNumber  int
	IsKey      bool
	IsDate     bool
}
