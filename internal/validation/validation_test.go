package validation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidators(t *testing.T) {
	v := Violations{}
	Required("description", "  ", v)
	NonNegative("quantity", d("-1"), v)
	MaxPlaces("unit_price_net", d("10.005"), 2, v)
	Range("completion_pct", d("100.01"), d("0"), d("100"), v)
	MaxLength("title", "abcdef", 5, v)
	Max("total_gross", d("1000000000000.00"), d("999999999999.99"), v)

	want := Violations{
		"total_gross":    "too_large",
		"description":    "required",
		"quantity":       "must_not_be_negative",
		"unit_price_net": "too_many_decimals",
		"completion_pct": "out_of_range",
		"title":          "too_long",
	}
	if len(v) != len(want) {
		t.Fatalf("got %v, want %v", v, want)
	}
	for k, code := range want {
		if v[k] != code {
			t.Errorf("%s = %q, want %q", k, v[k], code)
		}
	}
}

func TestValidators_Accept(t *testing.T) {
	v := Violations{}
	Required("description", "Dépose cuisine", v)
	NonNegative("quantity", d("0"), v)
	MaxPlaces("unit_price_net", d("10.50"), 2, v)
	MaxPlaces("quantity", d("1.500"), 1, v)
	Range("completion_pct", d("100"), d("0"), d("100"), v)
	Range("completion_pct", d("0"), d("0"), d("100"), v)
	MaxLength("title", "Réfection", 9, v)
	Max("quantity", d("999999999.999"), d("999999999.999"), v)
	if !v.Empty() {
		t.Fatalf("unexpected violations %v", v)
	}
}

func TestViolations_FirstCodeWins(t *testing.T) {
	v := Violations{}
	v.Add("quantity", "required")
	NonNegative("quantity", d("-2"), v)
	if v["quantity"] != "required" {
		t.Fatalf("code overwritten: %q", v["quantity"])
	}
}

func TestViolations_Error(t *testing.T) {
	v := Violations{"b": "required", "a": "out_of_range"}
	if got := v.Error(); got != "validation failed: a: out_of_range, b: required" {
		t.Fatalf("Error() = %q", got)
	}
	if got := Indexed("lines", 2, "vat_rate"); got != "lines[2].vat_rate" {
		t.Fatalf("Indexed = %q", got)
	}
}
