// Package schema converts configured column specs into the platform's wire
// format for table create and update calls.
package schema

import (
	"encoding/json"
	"strconv"
	"strings"

	"cube-sync/internal/domain"
)

// typeCodes maps logical type names to the platform's fixed integer codes.
var typeCodes = map[string]int{
	"BIGINT":    0,
	"BIT":       2,
	"CHAR":      3,
	"DATETIME":  4,
	"DECIMAL":   5,
	"FLOAT":     6,
	"INT":       8,
	"INTEGER":   8,
	"SMALLINT":  16,
	"TEXT":      18,
	"TIMESTAMP": 19,
	"TINYINT":   20,
	"VARCHAR":   22,
	"DATE":      31,
	"TIME":      32,
}

// WireColumn is a column record as submitted to the platform.
type WireColumn struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        int         `json:"type"`
	Hidden      bool        `json:"hidden"`
	Indexed     bool        `json:"indexed"`
	Description *string     `json:"description"`
	Import      bool        `json:"import"`
	IsCustom    bool        `json:"isCustom"`
	Expression  *string     `json:"expression"`
	Size        int         `json:"size"`
	Precision   LengthPart  `json:"precision"`
	Scale       LengthPart  `json:"scale"`
}

// Length is the size/precision/scale triple derived from a size string.
type Length struct {
	Size      int
	Precision LengthPart
	Scale     LengthPart
}

// LengthPart is one side of a "precision,scale" size, forwarded as written.
// Number literals encode as JSON numbers, anything else as a JSON string.
type LengthPart string

// MarshalJSON implements json.Marshaler.
func (p LengthPart) MarshalJSON() ([]byte, error) {
	if isNumber(string(p)) {
		return []byte(p), nil
	}
	return json.Marshal(string(p))
}

// TypeCode returns the platform code for a type name, case-insensitively.
func TypeCode(name string) (int, error) {
	code, ok := typeCodes[strings.ToUpper(name)]
	if !ok {
		return 0, &domain.UnrecognizedTypeError{Type: name}
	}
	return code, nil
}

// SplitLength interprets a raw size string. Anything containing a comma
// yields size 0 with the first two comma-separated parts as precision and
// scale, unchecked; anything else is a plain integer size.
func SplitLength(raw string) (Length, error) {
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		return Length{
			Size:      0,
			Precision: LengthPart(strings.TrimSpace(parts[0])),
			Scale:     LengthPart(strings.TrimSpace(parts[1])),
		}, nil
	}

	size := 0
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return Length{}, &domain.InvalidLengthError{Size: raw}
		}
		size = n
	}
	return Length{Size: size, Precision: "0", Scale: "0"}, nil
}

// isNumber reports whether s is a JSON number literal.
func isNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return json.Valid([]byte(s))
}

// ReformatColumns converts configured columns into wire records, failing on
// the first unknown type or malformed size.
func ReformatColumns(columns []domain.ColumnSpec) ([]WireColumn, error) {
	out := make([]WireColumn, 0, len(columns))
	for _, col := range columns {
		code, err := TypeCode(col.Type)
		if err != nil {
			return nil, err
		}
		length, err := SplitLength(col.Size)
		if err != nil {
			return nil, err
		}
		out = append(out, WireColumn{
			ID:        col.ID,
			Name:      col.Name,
			Type:      code,
			Import:    true,
			Size:      length.Size,
			Precision: length.Precision,
			Scale:     length.Scale,
		})
	}
	return out, nil
}
