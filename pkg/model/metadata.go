// pkg/model/metadata.go
package model

import "strings"

// Kind is the value type held by a column
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
	KindDate
)

// String returns the lowercase name of the kind
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Column represents metadata about a table column
type Column struct {
	Name  string // Column name after header normalization
	Kind  Kind   // Value type of the column
	IsKey bool   // Whether column is part of the join key
}

// Well-known column names shared by every dataset
const (
	ColState    = "state"
	ColDistrict = "district"
	ColPincode  = "pincode"
	ColDate     = "date"
)

// GeoKeys is the geographic join key
var GeoKeys = []string{ColState, ColDistrict, ColPincode}

// DatedGeoKeys is the geographic join key refined by date
var DatedGeoKeys = []string{ColDate, ColState, ColDistrict, ColPincode}

// KindForKey returns the kind a key column is stored as.
// Pincodes stay text so leading zeros survive.
func KindForKey(name string) Kind {
	if strings.EqualFold(name, ColDate) {
		return KindDate
	}
	return KindText
}

// NormalizeColumnName strips stray whitespace around a header
func NormalizeColumnName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
}
