package schema

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order when text has to be read as a date.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"Jan-2006",
	"2006-01",
}

// ToFloat64 is a utility function that converts a value of various numeric types
// to a float64. It returns the converted float64 and a boolean indicating whether
// the conversion was successful.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case decimal.Decimal:
		return val.InexactFloat64(), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IsNumber reports whether v holds a Go numeric value. Unlike ToFloat64 it
// does not accept numeric text.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, decimal.Decimal:
		return true
	}
	return false
}

// IsInteger reports whether v holds a Go integer value.
func IsInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// ToDecimal converts a numeric value to a decimal.Decimal.
func ToDecimal(v any) (decimal.Decimal, bool) {
	if i, ok := IntegerOf(v); ok {
		return decimal.NewFromBigInt(i, 0), true
	}
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case float32:
		return decimal.NewFromFloat32(val), true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(val), true
	}
	f, ok := ToFloat64(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// ToTime converts time values and date-like text to a time.Time.
func ToTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// IsNull reports whether v is a missing value: nil or a NaN float.
func IsNull(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(val)
	case float32:
		return math.IsNaN(float64(val))
	case *time.Time:
		return val == nil
	}
	return false
}

// ToText renders a value the way it is shown in headers and text predicates.
func ToText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case decimal.Decimal:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Compare orders two values: nulls last, numbers numerically, times
// chronologically, booleans false before true, everything else by text.
// Values of different families are ordered by family.
func Compare(a, b any) int {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}

	fa, fb := family(a), family(b)
	if fa != fb {
		return cmpInt(fa, fb)
	}

	switch fa {
	case familyNumber:
		c, _ := CompareNumbers(a, b)
		return c
	case familyTime:
		x, _ := ToTime(a)
		y, _ := ToTime(b)
		return x.Compare(y)
	case familyBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return strings.Compare(ToText(a), ToText(b))
}

// CompareNumbers orders two numeric values. Integers and floats compare
// exactly at any magnitude; other pairs are compared as float64, numeric text
// included. It reports false when either side is not a number.
func CompareNumbers(a, b any) (int, bool) {
	if x, ok := IntegerOf(a); ok {
		if y, ok := IntegerOf(b); ok {
			return x.Cmp(y), true
		}
	}
	if x, ok := exactNumber(a); ok {
		if y, ok := exactNumber(b); ok {
			return x.Cmp(y), true
		}
	}
	x, okX := ToFloat64(a)
	y, okY := ToFloat64(b)
	if !okX || !okY {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

// exactNumber holds Go integers and non-NaN floats without rounding.
func exactNumber(v any) (*big.Float, bool) {
	if i, ok := IntegerOf(v); ok {
		return new(big.Float).SetInt(i), true
	}
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	default:
		return nil, false
	}
	if math.IsNaN(f) {
		return nil, false
	}
	return new(big.Float).SetFloat64(f), true
}

const (
	familyNumber = iota
	familyTime
	familyBool
	familyText
)

func family(v any) int {
	switch v.(type) {
	case time.Time, *time.Time:
		return familyTime
	case bool:
		return familyBool
	}
	if IsNumber(v) {
		return familyNumber
	}
	return familyText
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
