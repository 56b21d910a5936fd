package services

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/chantierpro/internal/billing"
	"github.com/diewo77/chantierpro/internal/workflow"
	"github.com/shopspring/decimal"
)

func situation(pct, net string) SituationInput {
	return SituationInput{
		CompletionPct: decimal.RequireFromString(pct),
		Notes:         "gros oeuvre",
		Lines:         []LineInput{line("1", net, billing.RateStandard)},
	}
}

// Reverse charge keeps gross equal to net, so the amounts read like the
// tracker inputs.
func TestCreateSituation_NumberingAndProgress(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	quote := acceptedQuote(t, svc, CreateInput{Title: "Maison Dupont", ReverseCharge: true, Lines: []LineInput{line("1", "10000.00", billing.RateStandard)}})

	first, err := svc.CreateSituation(ctx, quote.ID, 1, situation("30", "3000.00"))
	if err != nil {
		t.Fatalf("first situation: %v", err)
	}
	second, err := svc.CreateSituation(ctx, quote.ID, 1, situation("60", "6500.00"))
	if err != nil {
		t.Fatalf("second situation: %v", err)
	}

	s := second.Situation
	if *first.Situation.SituationNumber != 1 || *s.SituationNumber != 2 {
		t.Fatalf("numbers = %d, %d", *first.Situation.SituationNumber, *s.SituationNumber)
	}
	if s.Type != workflow.Facture || s.Status != workflow.Draft || !s.ReverseCharge || *s.ParentQuoteID != quote.ID {
		t.Fatalf("situation = %+v", s)
	}
	if s.Title != "Situation n°2 - Maison Dupont" {
		t.Errorf("title = %q", s.Title)
	}

	p := second.Progress
	assertMoney(t, "physical", p.PhysicalPct, "45")
	assertMoney(t, "financial", p.FinancialPct, "95")
	assertMoney(t, "billed", p.TotalBilledGross, "9500")
	assertMoney(t, "remaining", p.RemainingToBill, "500")
	if !p.ImbalanceDetected || p.Direction != billing.OverBilled {
		t.Errorf("imbalance = %v %q", p.ImbalanceDetected, p.Direction)
	}
	if second.Overbilling.Detected {
		t.Error("overbilling flagged below the quote total")
	}

	third, err := svc.CreateSituation(ctx, quote.ID, 1, situation("70", "100.00"))
	if err != nil {
		t.Fatal(err)
	}
	if *third.Situation.SituationNumber != 3 || third.Parent.SituationCount != 3 {
		t.Fatalf("third number = %d count = %d", *third.Situation.SituationNumber, third.Parent.SituationCount)
	}
	got, _ := svc.Get(ctx, quote.ID)
	if got.SituationCount != 3 || got.Status != workflow.Accepted {
		t.Fatalf("quote after situations = %s count=%d", got.Status, got.SituationCount)
	}
}

func TestCreateSituation_OverbillingIsReportedNotRefused(t *testing.T) {
	svc := newTestService(t)
	quote := acceptedQuote(t, svc, CreateInput{ReverseCharge: true, Lines: []LineInput{line("1", "10000.00", billing.RateStandard)}})

	res, err := svc.CreateSituation(context.Background(), quote.ID, 1, situation("100", "11000.00"))
	if err != nil {
		t.Fatalf("overbilling situation refused: %v", err)
	}
	if !res.Overbilling.Detected {
		t.Fatal("overbilling not detected")
	}
	assertMoney(t, "excess", res.Overbilling.Excess, "1000")
	assertMoney(t, "remaining", res.Progress.RemainingToBill, "-1000")
	assertMoney(t, "financial", res.Progress.FinancialPct, "110")
}

func TestCreateSituation_Guards(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	draft, _ := svc.Create(ctx, 1, CreateInput{Type: workflow.Devis, Lines: []LineInput{line("1", "10", billing.RateStandard)}})
	if _, err := svc.CreateSituation(ctx, draft.ID, 1, situation("10", "1")); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("draft parent: %v", err)
	}
	inv, _ := svc.Create(ctx, 1, CreateInput{Type: workflow.Facture})
	if _, err := svc.CreateSituation(ctx, inv.ID, 1, situation("10", "1")); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("invoice parent: %v", err)
	}
	if _, err := svc.CreateSituation(ctx, 9999, 1, situation("10", "1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown parent: %v", err)
	}

	quote := acceptedQuote(t, svc, CreateInput{Lines: []LineInput{line("1", "10", billing.RateStandard)}})
	cases := map[string]SituationInput{
		"completion_pct": situation("120", "1"),
		"lines":          {CompletionPct: decimal.NewFromInt(10)},
	}
	for field, in := range cases {
		_, err := svc.CreateSituation(ctx, quote.ID, 1, in)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Fields[field] == "" {
			t.Errorf("%s: err = %v", field, err)
		}
	}
	got, _ := svc.Get(ctx, quote.ID)
	if got.SituationCount != 0 {
		t.Fatalf("rejected situations consumed numbers: %d", got.SituationCount)
	}
}

func TestSituations_ExcludesCancelledFromTracking(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	quote := acceptedQuote(t, svc, CreateInput{ReverseCharge: true, Lines: []LineInput{line("1", "1000.00", billing.RateStandard)}})

	if _, err := svc.CreateSituation(ctx, quote.ID, 1, situation("20", "200.00")); err != nil {
		t.Fatal(err)
	}
	second, err := svc.CreateSituation(ctx, quote.ID, 1, situation("50", "500.00"))
	if err != nil {
		t.Fatal(err)
	}
	mustTransition(t, svc, second.Situation.ID, workflow.Cancel)

	report, err := svc.Situations(ctx, quote.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Situations) != 2 || *report.Situations[1].SituationNumber != 2 {
		t.Fatalf("situations = %d", len(report.Situations))
	}
	assertMoney(t, "billed", report.Progress.TotalBilledGross, "200")
	assertMoney(t, "physical", report.Progress.PhysicalPct, "20")
	if report.Progress.ImbalanceDetected {
		t.Error("balanced progress flagged")
	}

	third, err := svc.CreateSituation(ctx, quote.ID, 1, situation("60", "400.00"))
	if err != nil {
		t.Fatal(err)
	}
	if *third.Situation.SituationNumber != 3 {
		t.Fatalf("cancelled number reused: %d", *third.Situation.SituationNumber)
	}
}

func TestSituations_ParentMustBeQuote(t *testing.T) {
	svc := newTestService(t)
	inv, _ := svc.Create(context.Background(), 1, CreateInput{Type: workflow.Facture})
	_, err := svc.Situations(context.Background(), inv.ID)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["parent_id"] != "not_a_quote" {
		t.Fatalf("err = %v", err)
	}
}
