package schema

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// KeyOf returns a canonical, type-tagged key for a single value. Numerically
// equal numbers share a key whatever their Go type; text "1" and the number 1
// do not. Integers are keyed exactly at any magnitude.
func KeyOf(v any) string {
	var b strings.Builder
	writeKey(&b, v)
	return b.String()
}

// TupleKey returns the canonical key of an ordered tuple of values. Text
// parts carry their length, so no choice of text can make two different
// tuples share a key.
func TupleKey(values []any) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		writeKey(&b, v)
	}
	return b.String()
}

func writeKey(b *strings.Builder, v any) {
	if IsNull(v) {
		b.WriteString("z:")
		return
	}
	switch val := v.(type) {
	case string:
		writeText(b, "s", val)
		return
	case bool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(val))
		return
	case time.Time:
		b.WriteString("t:")
		b.WriteString(val.UTC().Format(time.RFC3339Nano))
		return
	}
	if n, ok := numberKey(v); ok {
		b.WriteString("n:")
		b.WriteString(n)
		return
	}
	writeText(b, "o", ToText(v))
}

func writeText(b *strings.Builder, tag, s string) {
	b.WriteString(tag)
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// numberKey renders integral numbers as exact decimal integers and every
// other number in shortest float form.
func numberKey(v any) (string, bool) {
	if i, ok := IntegerOf(v); ok {
		return i.String(), true
	}
	switch val := v.(type) {
	case decimal.Decimal:
		if val.IsInteger() {
			return val.BigInt().String(), true
		}
		f := val.InexactFloat64()
		if decimal.NewFromFloat(f).Equal(val) {
			return strconv.FormatFloat(f, 'g', -1, 64), true
		}
		return val.String(), true
	case float32, float64:
		f, _ := ToFloat64(val)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			i, _ := new(big.Float).SetFloat64(f).Int(nil)
			return i.String(), true
		}
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return "", false
}

// IntegerOf returns v as an exact integer when v holds a Go integer type.
func IntegerOf(v any) (*big.Int, bool) {
	switch val := v.(type) {
	case int:
		return big.NewInt(int64(val)), true
	case int8:
		return big.NewInt(int64(val)), true
	case int16:
		return big.NewInt(int64(val)), true
	case int32:
		return big.NewInt(int64(val)), true
	case int64:
		return big.NewInt(val), true
	case uint:
		return new(big.Int).SetUint64(uint64(val)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(val)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(val)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(val)), true
	case uint64:
		return new(big.Int).SetUint64(val), true
	}
	return nil, false
}
