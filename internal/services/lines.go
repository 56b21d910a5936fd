package services

import (
	"github.com/diewo77/chantierpro/internal/billing"
	"github.com/diewo77/chantierpro/internal/models"
	"github.com/diewo77/chantierpro/internal/validation"
	"github.com/shopspring/decimal"
)

// Capacities of the numeric(12,3) quantity and numeric(14,2) amount columns.
var (
	maxQuantity = decimal.RequireFromString("999999999.999")
	maxAmount   = decimal.RequireFromString("999999999999.99")
)

// LineInput is a line item as submitted by a client.
type LineInput struct {
	Description  string
	Quantity     decimal.Decimal
	UnitPriceNet decimal.Decimal
	VATRate      billing.Rate
	Trade        string
}

func validateLine(l LineInput, key func(string) string, v validation.Violations) {
	validation.Required(key("description"), l.Description, v)
	validation.MaxLength(key("description"), l.Description, 500, v)
	validation.NonNegative(key("quantity"), l.Quantity, v)
	validation.MaxPlaces(key("quantity"), l.Quantity, 3, v)
	validation.Max(key("quantity"), l.Quantity, maxQuantity, v)
	validation.NonNegative(key("unit_price_net"), l.UnitPriceNet, v)
	validation.MaxPlaces(key("unit_price_net"), l.UnitPriceNet, billing.MoneyPlaces, v)
	validation.Max(key("unit_price_net"), l.UnitPriceNet, maxAmount, v)
	switch {
	case l.VATRate == 0:
		v.Add(key("vat_rate"), "required")
	case !l.VATRate.Valid():
		v.Add(key("vat_rate"), "unsupported_rate")
	}
	validation.MaxLength(key("trade"), l.Trade, 100, v)
}

// checkTotals rejects documents whose totals no longer fit the amount columns.
func checkTotals(doc *models.Document) error {
	if doc.TotalNet.GreaterThan(maxAmount) || doc.TotalGross.GreaterThan(maxAmount) {
		return invalid("total_gross", "too_large")
	}
	return nil
}

func validateLines(lines []LineInput, v validation.Violations) {
	for i, l := range lines {
		validateLine(l, func(f string) string { return validation.Indexed("lines", i, f) }, v)
	}
}

// buildLines numbers new lines after the positions already used.
func buildLines(in []LineInput, documentID uint, firstPosition int) []models.LineItem {
	out := make([]models.LineItem, len(in))
	for i, l := range in {
		out[i] = models.LineItem{
			DocumentID:   documentID,
			Position:     firstPosition + i,
			Description:  l.Description,
			Quantity:     l.Quantity,
			UnitPriceNet: l.UnitPriceNet,
			VATRate:      l.VATRate,
			Trade:        l.Trade,
		}
	}
	return out
}

func copyLines(src []models.LineItem) []models.LineItem {
	out := make([]models.LineItem, len(src))
	for i, l := range src {
		out[i] = models.LineItem{
			Position:     l.Position,
			Description:  l.Description,
			Quantity:     l.Quantity,
			UnitPriceNet: l.UnitPriceNet,
			VATRate:      l.VATRate,
			Trade:        l.Trade,
		}
	}
	return out
}

func nextPosition(lines []models.LineItem) int {
	next := 0
	for _, l := range lines {
		if l.Position >= next {
			next = l.Position + 1
		}
	}
	return next
}
