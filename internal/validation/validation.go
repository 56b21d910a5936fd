// Package validation collects field errors as snake_case codes, keyed by field
// path ("lines[0].quantity"). The first code recorded for a field wins.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

func (v Violations) Add(field, code string) {
	if _, ok := v[field]; !ok {
		v[field] = code
	}
}

// Error lists the violations in field order, so Violations can travel as an error.
func (v Violations) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + v[f]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Indexed builds the key of a field inside a list ("lines", 2, "vat_rate").
func Indexed(list string, i int, field string) string {
	return fmt.Sprintf("%s[%d].%s", list, i, field)
}

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func MaxLength(field, value string, max int, v Violations) {
	if len([]rune(value)) > max {
		v.Add(field, "too_long")
	}
}

func NonNegative(field string, d decimal.Decimal, v Violations) {
	if d.IsNegative() {
		v.Add(field, "must_not_be_negative")
	}
}

// MaxPlaces rejects values carrying more than places significant decimals
// ("1.500" passes with 1, "0.125" does not with 2).
func MaxPlaces(field string, d decimal.Decimal, places int32, v Violations) {
	if !d.Equal(d.Truncate(places)) {
		v.Add(field, "too_many_decimals")
	}
}

// Max rejects values above maxVal, typically the capacity of a numeric column.
func Max(field string, d, maxVal decimal.Decimal, v Violations) {
	if d.GreaterThan(maxVal) {
		v.Add(field, "too_large")
	}
}

func Range(field string, d, minVal, maxVal decimal.Decimal, v Violations) {
	if d.LessThan(minVal) || d.GreaterThan(maxVal) {
		v.Add(field, "out_of_range")
	}
}
