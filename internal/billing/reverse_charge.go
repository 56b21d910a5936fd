package billing

import "github.com/shopspring/decimal"

// DefaultLegalMention is printed on subcontracting documents under autoliquidation
// when no wording is configured.
const DefaultLegalMention = "Autoliquidation : TVA due par le preneur assujetti (art. 283-2 nonies du CGI)"

// ReverseCharge applies the subcontractor reverse-charge rule. LegalMention is the
// jurisdiction-specific text attached to documents when the rule is active.
type ReverseCharge struct {
	LegalMention string
}

// Totals are the figures printed on a document once reverse charge is decided.
type Totals struct {
	TotalNet     decimal.Decimal
	TotalVAT     decimal.Decimal
	TotalGross   decimal.Decimal
	LegalMention *string
}

// Apply passes the allocation through when disabled. When enabled, VAT is zeroed,
// gross equals net and the legal mention is set. It does not check document status.
func (rc ReverseCharge) Apply(a Allocation, enabled bool) Totals {
	if !enabled {
		return Totals{TotalNet: a.TotalNet, TotalVAT: a.TotalVAT, TotalGross: a.TotalGross}
	}
	mention := rc.LegalMention
	if mention == "" {
		mention = DefaultLegalMention
	}
	return Totals{
		TotalNet:     a.TotalNet,
		TotalVAT:     decimal.Zero,
		TotalGross:   a.TotalNet,
		LegalMention: &mention,
	}
}
