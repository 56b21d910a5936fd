package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction qualifies an imbalance between physical and financial progress.
type Direction string

const (
	UnderBilled Direction = "under-billed"
	OverBilled  Direction = "over-billed"
)

// ProgressMode selects how per-situation completion percentages are combined.
type ProgressMode string

const (
	// ModeMean averages the percentages (incremental reading).
	ModeMean ProgressMode = "mean"
	// ModeLatest keeps the last situation's percentage (cumulative reading).
	ModeLatest ProgressMode = "latest"
)

var ErrUnknownProgressMode = errors.New("unknown progress mode")

// ParseProgressMode validates a configured mode; empty means ModeMean.
func ParseProgressMode(s string) (ProgressMode, error) {
	switch ProgressMode(s) {
	case "", ModeMean:
		return ModeMean, nil
	case ModeLatest:
		return ModeLatest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProgressMode, s)
}

// DefaultImbalanceThreshold is the tolerated gap, in percentage points, between
// physical and financial progress.
var DefaultImbalanceThreshold = decimal.NewFromInt(10)

// Situation is one progressive invoice as seen by the tracker, in chronological order.
type Situation struct {
	CompletionPct decimal.Decimal
	TotalGross    decimal.Decimal
}

// Progress summarises the situations billed against a quote.
type Progress struct {
	PhysicalPct       decimal.Decimal
	FinancialPct      decimal.Decimal
	TotalBilledGross  decimal.Decimal
	RemainingToBill   decimal.Decimal
	ImbalanceDetected bool
	Direction         Direction
}

// Tracker computes progressive billing figures.
type Tracker struct {
	ThresholdPct decimal.Decimal
	Mode         ProgressMode
}

// NewTracker returns a tracker with the default threshold in mean mode.
func NewTracker() Tracker {
	return Tracker{ThresholdPct: DefaultImbalanceThreshold, Mode: ModeMean}
}

// Track compares physical and financial progress. The financial percentage is not
// capped and RemainingToBill goes negative on overbilling. Direction is always
// set: under-billed when physical progress is ahead, over-billed otherwise.
func (t Tracker) Track(parentTotalNet decimal.Decimal, situations []Situation) Progress {
	var p Progress
	for _, s := range situations {
		p.TotalBilledGross = p.TotalBilledGross.Add(s.TotalGross)
	}
	p.RemainingToBill = parentTotalNet.Sub(p.TotalBilledGross)

	physical := t.physical(situations)
	var financial decimal.Decimal
	if parentTotalNet.IsPositive() {
		financial = p.TotalBilledGross.Mul(hundred).Div(parentTotalNet)
	}

	p.ImbalanceDetected = physical.Sub(financial).Abs().GreaterThan(t.ThresholdPct)
	p.Direction = OverBilled
	if physical.GreaterThan(financial) {
		p.Direction = UnderBilled
	}
	p.PhysicalPct = physical.Round(2)
	p.FinancialPct = financial.Round(2)
	return p
}

func (t Tracker) physical(situations []Situation) decimal.Decimal {
	if len(situations) == 0 {
		return decimal.Zero
	}
	if t.Mode == ModeLatest {
		return situations[len(situations)-1].CompletionPct
	}
	var sum decimal.Decimal
	for _, s := range situations {
		sum = sum.Add(s.CompletionPct)
	}
	return sum.Div(decimal.NewFromInt(int64(len(situations))))
}

// Overbilling reports whether the situations billed more than the quote allows.
type Overbilling struct {
	Detected         bool
	ParentTotalGross decimal.Decimal
	BilledGross      decimal.Decimal
	Tolerance        decimal.Decimal
	Excess           decimal.Decimal
}

// CheckOverbilling flags billed gross exceeding parentTotalGross + tolerance.
// Excess is the amount billed above the parent total, zero when under it.
func CheckOverbilling(parentTotalGross decimal.Decimal, situations []Situation, tolerance decimal.Decimal) Overbilling {
	o := Overbilling{ParentTotalGross: parentTotalGross, Tolerance: tolerance}
	for _, s := range situations {
		o.BilledGross = o.BilledGross.Add(s.TotalGross)
	}
	if excess := o.BilledGross.Sub(parentTotalGross); excess.IsPositive() {
		o.Excess = excess
	}
	o.Detected = o.BilledGross.GreaterThan(parentTotalGross.Add(tolerance))
	return o
}
