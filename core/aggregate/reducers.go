package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/shopspring/decimal"
)

// nonNull drops nil and NaN values.
func nonNull(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if !schema.IsNull(v) {
			out = append(out, v)
		}
	}
	return out
}

// floats converts the non-null values to float64. Text is not coerced.
func floats(values []any) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if schema.IsNull(v) {
			continue
		}
		if !schema.IsNumber(v) {
			return nil, fmt.Errorf("non-numeric value %v (%T)", v, v)
		}
		f, _ := schema.ToFloat64(v)
		if math.IsInf(f, 0) {
			return nil, fmt.Errorf("infinite value")
		}
		out = append(out, f)
	}
	return out, nil
}

func decimals(values []any) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		if schema.IsNull(v) {
			continue
		}
		if !schema.IsNumber(v) {
			return nil, fmt.Errorf("non-numeric value %v (%T)", v, v)
		}
		d, ok := schema.ToDecimal(v)
		if !ok {
			return nil, fmt.Errorf("value %v is not finite", v)
		}
		out = append(out, d)
	}
	return out, nil
}

func reduceSum(values []any, _ map[string]any) (any, error) {
	ds, err := decimals(values)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return numericResult(total, len(ds) > 0 && allIntegers(values)), nil
}

func reduceMean(values []any, _ map[string]any) (any, error) {
	ds, err := decimals(values)
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, nil
	}
	return decimal.Avg(ds[0], ds[1:]...).InexactFloat64(), nil
}

func reduceProd(values []any, _ map[string]any) (any, error) {
	ds, err := decimals(values)
	if err != nil {
		return nil, err
	}
	total := decimal.NewFromInt(1)
	for _, d := range ds {
		total = total.Mul(d)
	}
	return numericResult(total, len(ds) > 0 && allIntegers(values)), nil
}

// allIntegers reports whether every non-null value holds a Go integer type.
func allIntegers(values []any) bool {
	for _, v := range values {
		if schema.IsNull(v) {
			continue
		}
		if !schema.IsInteger(v) {
			return false
		}
	}
	return true
}

// numericResult returns an int64 for integer totals that fit, the exact
// decimal for integer totals that do not, and a float64 otherwise.
func numericResult(total decimal.Decimal, integral bool) any {
	if !integral {
		return total.InexactFloat64()
	}
	if i := total.BigInt(); i.IsInt64() {
		return i.Int64()
	}
	return total
}

func reduceMedian(values []any, _ map[string]any) (any, error) {
	return quantileOf(values, 0.5)
}

func reduceQuantile(values []any, params map[string]any) (any, error) {
	q, err := quantileParam(params)
	if err != nil {
		return nil, err
	}
	return quantileOf(values, q)
}

func quantileParam(params map[string]any) (float64, error) {
	raw, ok := params["q"]
	if !ok || raw == nil {
		return 0.5, nil
	}
	q, ok := schema.ToFloat64(raw)
	if !ok {
		return 0, fmt.Errorf("quantile parameter q=%v is not a number", raw)
	}
	if q < 0 || q > 1 || math.IsNaN(q) {
		return 0, fmt.Errorf("quantile parameter q=%v outside [0, 1]", q)
	}
	return q, nil
}

// quantileOf interpolates linearly between the closest ranks.
func quantileOf(values []any, q float64) (any, error) {
	xs, err := floats(values)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, nil
	}
	sort.Float64s(xs)
	pos := q * float64(len(xs)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	low, high := xs[int(lo)], xs[int(hi)]
	return low + (high-low)*(pos-lo), nil
}

func reduceMode(values []any, _ map[string]any) (any, error) {
	present := nonNull(values)
	if len(present) == 0 {
		return nil, nil
	}
	counts := make(map[string]int, len(present))
	firsts := make(map[string]any, len(present))
	for _, v := range present {
		k := schema.KeyOf(v)
		if _, ok := firsts[k]; !ok {
			firsts[k] = v
		}
		counts[k]++
	}
	var best any
	bestCount := 0
	for k, n := range counts {
		v := firsts[k]
		if n > bestCount || (n == bestCount && schema.Compare(v, best) < 0) {
			best, bestCount = v, n
		}
	}
	return best, nil
}

func reduceCount(values []any, _ map[string]any) (any, error) {
	return len(nonNull(values)), nil
}

func reduceSize(values []any, _ map[string]any) (any, error) {
	return len(values), nil
}

func reduceMin(values []any, _ map[string]any) (any, error) {
	return extreme(values, -1), nil
}

func reduceMax(values []any, _ map[string]any) (any, error) {
	return extreme(values, 1), nil
}

// extreme returns the smallest (sign -1) or largest (sign 1) non-null value.
func extreme(values []any, sign int) any {
	var best any
	for _, v := range values {
		if schema.IsNull(v) {
			continue
		}
		if best == nil || schema.Compare(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}

func reduceFirst(values []any, _ map[string]any) (any, error) {
	for _, v := range values {
		if !schema.IsNull(v) {
			return v, nil
		}
	}
	return nil, nil
}

func reduceLast(values []any, _ map[string]any) (any, error) {
	for i := len(values) - 1; i >= 0; i-- {
		if !schema.IsNull(values[i]) {
			return values[i], nil
		}
	}
	return nil, nil
}

func reduceNUnique(values []any, _ map[string]any) (any, error) {
	return len(distinct(values)), nil
}

func reduceUnique(values []any, _ map[string]any) (any, error) {
	return distinct(values), nil
}

// distinct returns the non-null values in first-seen order without repeats.
func distinct(values []any) []any {
	seen := make(map[string]struct{}, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		if schema.IsNull(v) {
			continue
		}
		k := schema.KeyOf(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

func reduceValues(values []any, _ map[string]any) (any, error) {
	out := make([]any, len(values))
	copy(out, values)
	return out, nil
}

// moments returns the count, mean and the sums of the 2nd, 3rd and 4th powers
// of the deviations from the mean.
func moments(xs []float64) (n, mean, m2, m3, m4 float64) {
	n = float64(len(xs))
	for _, x := range xs {
		mean += x
	}
	mean /= n
	for _, x := range xs {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	return
}

func variance(values []any) (float64, bool, error) {
	xs, err := floats(values)
	if err != nil {
		return 0, false, err
	}
	if len(xs) < 2 {
		return 0, false, nil
	}
	n, _, m2, _, _ := moments(xs)
	return m2 / (n - 1), true, nil
}

func reduceVar(values []any, _ map[string]any) (any, error) {
	v, ok, err := variance(values)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func reduceStd(values []any, _ map[string]any) (any, error) {
	v, ok, err := variance(values)
	if err != nil || !ok {
		return nil, err
	}
	return math.Sqrt(v), nil
}

// reduceSkew is the adjusted Fisher-Pearson coefficient.
func reduceSkew(values []any, _ map[string]any) (any, error) {
	xs, err := floats(values)
	if err != nil {
		return nil, err
	}
	if len(xs) < 3 {
		return nil, nil
	}
	n, _, m2, m3, _ := moments(xs)
	if m2 == 0 {
		return 0.0, nil
	}
	g1 := (m3 / n) / math.Pow(m2/n, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2), nil
}

// reduceKurtosis is the bias-corrected excess kurtosis.
func reduceKurtosis(values []any, _ map[string]any) (any, error) {
	xs, err := floats(values)
	if err != nil {
		return nil, err
	}
	if len(xs) < 4 {
		return nil, nil
	}
	n, _, m2, _, m4 := moments(xs)
	if m2 == 0 {
		return 0.0, nil
	}
	num := n * (n + 1) * (n - 1) * m4
	den := (n - 2) * (n - 3) * m2 * m2
	adj := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return num/den - adj, nil
}
