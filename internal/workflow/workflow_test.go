package workflow

import (
	"errors"
	"slices"
	"testing"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		action Action
		want   Status
		ok     bool
	}{
		{"send draft quote", Snapshot{Type: Devis, Status: Draft, LineCount: 1}, Send, Sent, true},
		{"send empty draft", Snapshot{Type: Devis, Status: Draft}, Send, "", false},
		{"send already sent", Snapshot{Type: Facture, Status: Sent, LineCount: 2}, Send, "", false},
		{"accept sent quote", Snapshot{Type: Devis, Status: Sent, LineCount: 1}, Accept, Accepted, true},
		{"refuse sent quote", Snapshot{Type: Devis, Status: Sent, LineCount: 1}, Refuse, Refused, true},
		{"accept draft quote", Snapshot{Type: Devis, Status: Draft, LineCount: 1}, Accept, "", false},
		{"accept invoice", Snapshot{Type: Facture, Status: Sent, LineCount: 1}, Accept, "", false},
		{"pay sent invoice", Snapshot{Type: Facture, Status: Sent, LineCount: 1}, Pay, Paid, true},
		{"pay draft invoice", Snapshot{Type: Facture, Status: Draft, LineCount: 1}, Pay, "", false},
		{"pay quote", Snapshot{Type: Devis, Status: Sent, LineCount: 1}, Pay, "", false},
		{"convert accepted quote", Snapshot{Type: Devis, Status: Accepted, LineCount: 1}, Convert, Accepted, true},
		{"convert converted quote", Snapshot{Type: Devis, Status: Accepted, HasLinkedInvoice: true}, Convert, "", false},
		{"convert sent quote", Snapshot{Type: Devis, Status: Sent, LineCount: 1}, Convert, "", false},
		{"situation from accepted quote", Snapshot{Type: Devis, Status: Accepted}, Spawn, Accepted, true},
		{"situation after convert", Snapshot{Type: Devis, Status: Accepted, HasLinkedInvoice: true}, Spawn, Accepted, true},
		{"situation from invoice", Snapshot{Type: Facture, Status: Sent}, Spawn, "", false},
		{"edit draft", Snapshot{Type: Facture, Status: Draft}, Edit, Draft, true},
		{"edit sent", Snapshot{Type: Facture, Status: Sent}, Edit, "", false},
		{"cancel draft", Snapshot{Type: Devis, Status: Draft}, Cancel, Cancelled, true},
		{"cancel sent invoice", Snapshot{Type: Facture, Status: Sent}, Cancel, Cancelled, true},
		{"cancel accepted quote", Snapshot{Type: Devis, Status: Accepted}, Cancel, Cancelled, true},
		{"cancel paid invoice", Snapshot{Type: Facture, Status: Paid}, Cancel, "", false},
		{"cancel cancelled", Snapshot{Type: Devis, Status: Cancelled}, Cancel, "", false},
		{"send refused", Snapshot{Type: Devis, Status: Refused, LineCount: 1}, Send, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.snap, tt.action)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Fatalf("Next = %s, want %s", got, tt.want)
				}
				return
			}
			var te *TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TransitionError, got %v", err)
			}
			if te.Reason == "" || te.Action != tt.action || te.From != tt.snap.Status {
				t.Fatalf("incomplete error %+v", te)
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatal("error does not match ErrInvalidTransition")
			}
		})
	}
}

func TestAcceptedQuoteIsFrozen(t *testing.T) {
	quote := Snapshot{Type: Devis, Status: Accepted, LineCount: 3}

	if _, err := Next(quote, Edit); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("editing an accepted quote: got %v", err)
	}

	if _, err := Next(quote, Convert); err != nil {
		t.Fatalf("first convert: %v", err)
	}
	quote.HasLinkedInvoice = true
	_, err := Next(quote, Convert)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("second convert: got %v", err)
	}
	if te.Reason != "quote already converted to an invoice" {
		t.Fatalf("reason = %q", te.Reason)
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range Statuses {
		want := s == Refused || s == Paid || s == Cancelled
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v", s, !want)
		}
	}
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"send": Send, "ACCEPT": Accept, " pay ": Pay, "delete": Cancel, "cancel": Cancel, "convert": Convert} {
		got, err := ParseAction(in)
		if err != nil || got != want {
			t.Errorf("ParseAction(%q) = %q, %v", in, got, err)
		}
	}
	for _, bad := range []string{"", "edit", "situation", "archive"} {
		if _, err := ParseAction(bad); err == nil {
			t.Errorf("ParseAction(%q) should fail", bad)
		}
	}
}

func TestParseDocTypeAndStatus(t *testing.T) {
	if d, err := ParseDocType("devis"); err != nil || d != Devis {
		t.Fatalf("ParseDocType = %q, %v", d, err)
	}
	if _, err := ParseDocType("avoir"); err == nil {
		t.Fatal("expected error")
	}
	if s, err := ParseStatus("sent"); err != nil || s != Sent {
		t.Fatalf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAvailable(t *testing.T) {
	got := Available(Snapshot{Type: Devis, Status: Sent, LineCount: 1})
	want := []Action{Accept, Refuse, Cancel}
	if !slices.Equal(got, want) {
		t.Fatalf("Available = %v, want %v", got, want)
	}
	if got := Available(Snapshot{Type: Facture, Status: Paid}); len(got) != 0 {
		t.Fatalf("paid invoice has actions %v", got)
	}
}
