package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestReverseCharge_Disabled(t *testing.T) {
	a := Allocate([]LineItem{line("1", "100.00", RateStandard)})
	got := ReverseCharge{LegalMention: "x"}.Apply(a, false)

	if got.LegalMention != nil {
		t.Fatalf("LegalMention = %q, want nil", *got.LegalMention)
	}
	if !got.TotalNet.Equal(a.TotalNet) || !got.TotalVAT.Equal(a.TotalVAT) || !got.TotalGross.Equal(a.TotalGross) {
		t.Fatalf("totals changed: %+v vs %+v", got, a)
	}
}

func TestReverseCharge_Enabled(t *testing.T) {
	const mention = "TVA non applicable - autoliquidation"
	a := Allocate([]LineItem{line("1", "100.00", RateStandard)})
	got := ReverseCharge{LegalMention: mention}.Apply(a, true)

	if !got.TotalVAT.IsZero() {
		t.Errorf("TotalVAT = %s, want 0", got.TotalVAT)
	}
	if !got.TotalGross.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("TotalGross = %s, want 100.00", got.TotalGross)
	}
	if got.LegalMention == nil || *got.LegalMention != mention {
		t.Errorf("LegalMention = %v, want %q", got.LegalMention, mention)
	}
}

func TestReverseCharge_ZeroesEveryAllocation(t *testing.T) {
	allocations := []Allocation{
		Allocate(nil),
		Allocate([]LineItem{line("2", "50.00", RateIntermediate), line("1", "200.00", RateStandard)}),
		Allocate([]LineItem{line("12.5", "38.40", RateReduced), line("3", "19.99", RateIntermediate)}),
	}
	for i, a := range allocations {
		got := ReverseCharge{}.Apply(a, true)
		if !got.TotalVAT.IsZero() {
			t.Errorf("#%d: TotalVAT = %s, want 0", i, got.TotalVAT)
		}
		if !got.TotalGross.Equal(a.TotalNet) {
			t.Errorf("#%d: TotalGross = %s, want %s", i, got.TotalGross, a.TotalNet)
		}
		if got.LegalMention == nil || *got.LegalMention != DefaultLegalMention {
			t.Errorf("#%d: expected default legal mention, got %v", i, got.LegalMention)
		}
	}
}
