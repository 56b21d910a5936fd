package billing

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the currency minor-unit precision (EUR cents).
const MoneyPlaces = 2

// RoundMoney rounds half away from zero (0.125 -> 0.13) to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// LineItem is the computation view of a document line.
type LineItem struct {
	Description  string
	Quantity     decimal.Decimal
	UnitPriceNet decimal.Decimal
	Rate         Rate
}

// Net returns quantity x unit price at full precision.
func (l LineItem) Net() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPriceNet)
}

// RateTotal is the net base and VAT of one rate group.
type RateTotal struct {
	Rate Rate
	Net  decimal.Decimal
	VAT  decimal.Decimal
}

// Allocation is the VAT breakdown of a set of lines.
type Allocation struct {
	PerRate    []RateTotal
	TotalNet   decimal.Decimal
	TotalVAT   decimal.Decimal
	TotalGross decimal.Decimal
}

// ByRate returns the group for r, if any line used it.
func (a Allocation) ByRate(r Rate) (RateTotal, bool) {
	for _, rt := range a.PerRate {
		if rt.Rate == r {
			return rt, true
		}
	}
	return RateTotal{}, false
}

// Allocate groups lines by VAT rate and computes the totals. Lines of a group are
// summed at full precision and rounded once at the group boundary; the VAT of each
// group is rounded independently before summing. Signs are not checked here.
func Allocate(lines []LineItem) Allocation {
	groups := make(map[Rate]decimal.Decimal)
	for _, l := range lines {
		groups[l.Rate] = groups[l.Rate].Add(l.Net())
	}

	a := Allocation{PerRate: make([]RateTotal, 0, len(groups))}
	for _, r := range slices.Sorted(maps.Keys(groups)) {
		net := RoundMoney(groups[r])
		vat := RoundMoney(net.Mul(r.Percent()).Div(hundred))
		a.PerRate = append(a.PerRate, RateTotal{Rate: r, Net: net, VAT: vat})
		a.TotalNet = a.TotalNet.Add(net)
		a.TotalVAT = a.TotalVAT.Add(vat)
	}
	a.TotalGross = a.TotalNet.Add(a.TotalVAT)
	return a
}
