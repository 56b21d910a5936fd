// Package billing holds the pure money computations behind quotes and invoices:
// multi-rate VAT allocation, subcontractor reverse charge and progressive billing
// ("situations de travaux"). Nothing here touches the database or the clock.
package billing

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rate is a VAT rate applicable to French construction work, stored in basis points
// (2000 = 20 %).
type Rate int32

const (
	RateReduced      Rate = 550  // 5,5 % travaux de rénovation énergétique
	RateIntermediate Rate = 1000 // 10 % travaux d'amélioration / entretien
	RateStandard     Rate = 2000 // 20 % taux normal
)

// Rates lists the allowed rates in ascending order.
var Rates = []Rate{RateReduced, RateIntermediate, RateStandard}

var ErrUnknownRate = errors.New("unsupported vat rate")

var hundred = decimal.NewFromInt(100)

// Valid reports whether r is one of the allowed BTP rates.
func (r Rate) Valid() bool {
	switch r {
	case RateReduced, RateIntermediate, RateStandard:
		return true
	}
	return false
}

// Percent returns the rate as a percentage (5.5, 10, 20).
func (r Rate) Percent() decimal.Decimal {
	return decimal.New(int64(r), -2)
}

func (r Rate) String() string {
	return r.Percent().String()
}

// ParseRate accepts "20", "5.5", "5,5" or "20%".
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRate, s)
	}
	return RateFromPercent(d)
}

// RateFromPercent maps a percentage to a Rate.
func RateFromPercent(p decimal.Decimal) (Rate, error) {
	bp := p.Mul(hundred)
	if !bp.Equal(bp.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRate, p)
	}
	r := Rate(bp.IntPart())
	if !r.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRate, p)
	}
	return r, nil
}

// MarshalJSON writes the rate as a bare JSON number (5.5, 10, 20).
func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted string.
func (r *Rate) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*r = 0
		return nil
	}
	parsed, err := ParseRate(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the rate in basis points.
func (r Rate) Value() (driver.Value, error) {
	return int64(r), nil
}

func (r *Rate) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*r = Rate(v)
	case float64:
		*r = Rate(int64(v))
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		*r = Rate(d.IntPart())
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		*r = Rate(d.IntPart())
	case nil:
		*r = 0
	default:
		return fmt.Errorf("billing: cannot scan %T into Rate", src)
	}
	return nil
}
