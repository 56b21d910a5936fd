package models

import (
	"sync"
	"testing"

	"github.com/diewo77/chantierpro/internal/billing"
	"github.com/diewo77/chantierpro/internal/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"
)

func TestDocument_GetUserID(t *testing.T) {
	doc := &Document{UserID: 42}
	if got := doc.GetUserID(); got != 42 {
		t.Errorf("GetUserID() = %d, want 42", got)
	}
}

func TestDocument_Snapshot(t *testing.T) {
	inv := uint(7)
	doc := &Document{
		Type:               workflow.Devis,
		Status:             workflow.Accepted,
		Lines:              []LineItem{{Description: "a"}, {Description: "b"}},
		ConvertedInvoiceID: &inv,
	}
	s := doc.Snapshot()
	if s.Type != workflow.Devis || s.Status != workflow.Accepted || s.LineCount != 2 || !s.HasLinkedInvoice {
		t.Fatalf("Snapshot() = %+v", s)
	}
	if doc.IsSituation() {
		t.Error("quote reported as situation")
	}
}

func TestDocument_BillingLines(t *testing.T) {
	doc := &Document{Lines: []LineItem{{
		Description:  "Carrelage",
		Quantity:     decimal.RequireFromString("12.5"),
		UnitPriceNet: decimal.RequireFromString("38.40"),
		VATRate:      billing.RateIntermediate,
	}}}
	lines := doc.BillingLines()
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !lines[0].Net().Equal(decimal.RequireFromString("480")) || lines[0].Rate != billing.RateIntermediate {
		t.Fatalf("unexpected line %+v", lines[0])
	}
}

func TestDocumentEvent_BeforeCreate(t *testing.T) {
	e := &DocumentEvent{}
	if err := e.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	if e.ID == uuid.Nil {
		t.Fatal("id not generated")
	}
	id := e.ID
	_ = e.BeforeCreate(nil)
	if e.ID != id {
		t.Fatal("existing id overwritten")
	}
}

func TestPermission_Code(t *testing.T) {
	if got := (Permission{ResourceType: "document", Action: "send"}).Code(); got != "document:send" {
		t.Errorf("Code() = %q", got)
	}
}

// The legal mention is configuration text of unbounded length.
func TestDocument_LegalMentionColumn(t *testing.T) {
	sch, err := schema.Parse(&Document{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatal(err)
	}
	f := sch.LookUpField("LegalMention")
	if f == nil || f.DBName != "legal_mention" || f.TagSettings["TYPE"] != "text" || f.Size != 0 {
		t.Fatalf("legal_mention field = %+v", f)
	}
}
