package models

import (
	"time"

	"github.com/diewo77/chantierpro/internal/billing"
	"github.com/diewo77/chantierpro/internal/workflow"
	"github.com/shopspring/decimal"
)

// Document is a quote (DEVIS) or an invoice (FACTURE). A situation is an
// invoice carrying ParentQuoteID, SituationNumber and CompletionPct.
// Totals are cached and recomputed whenever the lines or the reverse-charge
// flag change.
type Document struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// UserID owns the document; situations belong to the quote's owner.
	UserID uint `gorm:"not null;index;uniqueIndex:idx_owner_number"`

	Type   workflow.DocType `gorm:"size:10;not null;index"`
	Status workflow.Status  `gorm:"size:20;not null;default:'DRAFT';index"`
	// Number is assigned on send (DEV-2026-0001); nil while draft.
	Number     *string `gorm:"size:30;uniqueIndex:idx_owner_number"`
	Title      string  `gorm:"size:255"`
	ClientName string  `gorm:"size:255"`

	Lines []LineItem `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`

	TotalNet   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	TotalVAT   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	TotalGross decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	ReverseCharge bool    `gorm:"not null;default:false"`
	LegalMention  *string `gorm:"type:text"`

	ParentQuoteID   *uint               `gorm:"uniqueIndex:idx_situation_number"`
	SituationNumber *int                `gorm:"uniqueIndex:idx_situation_number"`
	CompletionPct   decimal.NullDecimal `gorm:"type:numeric(5,2)"`
	Notes           string              `gorm:"type:text"`
	// SituationCount is the last situation number handed out for this quote.
	SituationCount int `gorm:"not null;default:0"`

	ConvertedInvoiceID *uint
	SourceQuoteID      *uint `gorm:"index"`

	SentAt *time.Time
	PaidAt *time.Time
}

// GetUserID makes documents subject to ownership checks.
func (d *Document) GetUserID() uint { return d.UserID }

func (d *Document) IsSituation() bool { return d.ParentQuoteID != nil }

// Snapshot is what the lifecycle guards need to know about d.
func (d *Document) Snapshot() workflow.Snapshot {
	return workflow.Snapshot{
		Type:             d.Type,
		Status:           d.Status,
		LineCount:        len(d.Lines),
		HasLinkedInvoice: d.ConvertedInvoiceID != nil,
	}
}

// BillingLines converts the persisted lines for the VAT allocator.
func (d *Document) BillingLines() []billing.LineItem {
	out := make([]billing.LineItem, len(d.Lines))
	for i, l := range d.Lines {
		out[i] = l.Billing()
	}
	return out
}

// LineItem is one priced line of a document.
type LineItem struct {
	ID           uint `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DocumentID   uint            `gorm:"index;not null"`
	Position     int             `gorm:"not null;default:0"`
	Description  string          `gorm:"size:500;not null"`
	Quantity     decimal.Decimal `gorm:"type:numeric(12,3);not null"`
	UnitPriceNet decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	VATRate      billing.Rate    `gorm:"not null"`
	// Trade is the corps d'état (plomberie, électricité...).
	Trade string `gorm:"size:100"`
}

func (l LineItem) Billing() billing.LineItem {
	return billing.LineItem{
		Description:  l.Description,
		Quantity:     l.Quantity,
		UnitPriceNet: l.UnitPriceNet,
		Rate:         l.VATRate,
	}
}
