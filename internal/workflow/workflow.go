// Package workflow is the document lifecycle of quotes (devis) and invoices
// (factures). It is a closed state machine: Next either returns the status a
// document moves to or a *TransitionError explaining why the action is refused.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// DocType distinguishes quotes from invoices. Situations are invoices.
type DocType string

const (
	Devis   DocType = "DEVIS"
	Facture DocType = "FACTURE"
)

// ParseDocType accepts "devis"/"facture" in any case.
func ParseDocType(s string) (DocType, error) {
	switch t := DocType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Devis, Facture:
		return t, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// Status is the lifecycle state of a document.
type Status string

const (
	Draft     Status = "DRAFT"
	Sent      Status = "SENT"
	Accepted  Status = "ACCEPTED"
	Refused   Status = "REFUSED"
	Paid      Status = "PAID"
	Cancelled Status = "CANCELLED"
)

// Statuses lists every state, in lifecycle order.
var Statuses = []Status{Draft, Sent, Accepted, Refused, Paid, Cancelled}

// Terminal reports whether no further action is possible.
func (s Status) Terminal() bool {
	return s == Refused || s == Paid || s == Cancelled
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Action is something a user asks to do with a document.
type Action string

const (
	Send    Action = "send"
	Accept  Action = "accept"
	Refuse  Action = "refuse"
	Pay     Action = "pay"
	Convert Action = "convert"
	Cancel  Action = "cancel"

	// Edit covers line items, the reverse-charge flag and total recomputation.
	Edit Action = "edit"
	// Spawn creates a situation (progressive invoice) from a quote.
	Spawn Action = "situation"
)

// ParseAction maps the lifecycle actions accepted on the wire. "delete" is an
// alias of cancel: documents are never removed, only cancelled.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Send, Accept, Refuse, Pay, Convert, Cancel:
		return a, nil
	case "delete":
		return Cancel, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ErrInvalidTransition matches every *TransitionError with errors.Is.
var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError is returned when an action is not allowed from the current state.
type TransitionError struct {
	Type   DocType
	From   Status
	Action Action
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s: %s", e.Action, e.Type, e.From, e.Reason)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// Snapshot is the part of a document the guards look at.
type Snapshot struct {
	Type             DocType
	Status           Status
	LineCount        int
	HasLinkedInvoice bool
}

// Next returns the status the document is in after action. Edit and Spawn do
// not change the status; Convert leaves the quote ACCEPTED (the created invoice
// is a separate document).
func Next(s Snapshot, a Action) (Status, error) {
	deny := func(reason string) (Status, error) {
		return "", &TransitionError{Type: s.Type, From: s.Status, Action: a, Reason: reason}
	}
	if s.Status.Terminal() {
		return deny("document is " + strings.ToLower(string(s.Status)))
	}

	switch a {
	case Edit:
		if s.Status != Draft {
			return deny("only draft documents can be edited")
		}
		return Draft, nil

	case Send:
		if s.Status != Draft {
			return deny("only draft documents can be sent")
		}
		if s.LineCount == 0 {
			return deny("document has no line items")
		}
		return Sent, nil

	case Accept, Refuse:
		if s.Type != Devis {
			return deny("only quotes can be accepted or refused")
		}
		if s.Status != Sent {
			return deny("quote has not been sent")
		}
		if a == Accept {
			return Accepted, nil
		}
		return Refused, nil

	case Pay:
		if s.Type != Facture {
			return deny("only invoices can be paid")
		}
		if s.Status != Sent {
			return deny("invoice has not been sent")
		}
		return Paid, nil

	case Convert:
		if s.Type != Devis || s.Status != Accepted {
			return deny("only accepted quotes can be converted")
		}
		if s.HasLinkedInvoice {
			return deny("quote already converted to an invoice")
		}
		return Accepted, nil

	case Spawn:
		if s.Type != Devis || s.Status != Accepted {
			return deny("situations require an accepted quote")
		}
		return Accepted, nil

	case Cancel:
		return Cancelled, nil
	}
	return deny("unknown action")
}

// Available lists the wire actions Next would accept for s.
func Available(s Snapshot) []Action {
	var out []Action
	for _, a := range []Action{Send, Accept, Refuse, Pay, Convert, Cancel} {
		if _, err := Next(s, a); err == nil {
			out = append(out, a)
		}
	}
	return out
}
