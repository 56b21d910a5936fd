package handlers

import (
	"bytes"
	"time"

	"github.com/diewo77/chantierpro/internal/billing"
	"github.com/diewo77/chantierpro/internal/models"
	"github.com/diewo77/chantierpro/internal/services"
	"github.com/diewo77/chantierpro/internal/workflow"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// unsupportedRate is never valid, so the service reports the field as
// unsupported_rate instead of the whole body failing to decode.
const unsupportedRate billing.Rate = -1

type lineRequest struct {
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPriceNet decimal.Decimal `json:"unit_price_net"`
	VATRate      json.RawMessage `json:"vat_rate"`
	Trade        string          `json:"trade"`
}

func (l lineRequest) input() services.LineInput {
	in := services.LineInput{
		Description:  l.Description,
		Quantity:     l.Quantity,
		UnitPriceNet: l.UnitPriceNet,
		Trade:        l.Trade,
	}
	if raw := bytes.TrimSpace(l.VATRate); len(raw) > 0 {
		if err := in.VATRate.UnmarshalJSON(raw); err != nil {
			in.VATRate = unsupportedRate
		}
	}
	return in
}

func lineInputs(lines []lineRequest) []services.LineInput {
	out := make([]services.LineInput, len(lines))
	for i, l := range lines {
		out[i] = l.input()
	}
	return out
}

type createRequest struct {
	Type          string        `json:"type"`
	Title         string        `json:"title"`
	ClientName    string        `json:"client_name"`
	ReverseCharge bool          `json:"reverse_charge"`
	Lines         []lineRequest `json:"lines"`
}

type linesRequest struct {
	Lines []lineRequest `json:"lines"`
}

type actionRequest struct {
	Action string `json:"action"`
}

type reverseChargeRequest struct {
	Enabled *bool `json:"enabled"`
}

type situationRequest struct {
	CompletionPct decimal.Decimal `json:"completion_pct"`
	Notes         string          `json:"notes"`
	Title         string          `json:"title"`
	Lines         []lineRequest   `json:"lines"`
}

type lineResponse struct {
	ID           uint         `json:"id"`
	Position     int          `json:"position"`
	Description  string       `json:"description"`
	Quantity     string       `json:"quantity"`
	UnitPriceNet string       `json:"unit_price_net"`
	VATRate      billing.Rate `json:"vat_rate"`
	Trade        string       `json:"trade,omitempty"`
	LineNet      string       `json:"line_net"`
}

type documentResponse struct {
	ID                 uint              `json:"id"`
	Type               workflow.DocType  `json:"type"`
	Status             workflow.Status   `json:"status"`
	Number             *string           `json:"number"`
	OwnerID            uint              `json:"owner_id"`
	Title              string            `json:"title"`
	ClientName         string            `json:"client_name"`
	Lines              []lineResponse    `json:"lines"`
	TotalNet           string            `json:"total_net"`
	TotalVAT           string            `json:"total_vat"`
	TotalGross         string            `json:"total_gross"`
	ReverseCharge      bool              `json:"reverse_charge"`
	LegalMention       *string           `json:"legal_mention"`
	ParentQuoteID      *uint             `json:"parent_quote_id,omitempty"`
	SituationNumber    *int              `json:"situation_number,omitempty"`
	CompletionPct      *string           `json:"completion_pct,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	ConvertedInvoiceID *uint             `json:"converted_invoice_id,omitempty"`
	SourceQuoteID      *uint             `json:"source_quote_id,omitempty"`
	SentAt             *time.Time        `json:"sent_at,omitempty"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	AvailableActions   []workflow.Action `json:"available_actions"`
}

// money renders amounts as decimal strings with two places.
func money(d decimal.Decimal) string { return d.StringFixed(billing.MoneyPlaces) }

func newDocumentResponse(d *models.Document) documentResponse {
	out := documentResponse{
		ID:                 d.ID,
		Type:               d.Type,
		Status:             d.Status,
		Number:             d.Number,
		OwnerID:            d.UserID,
		Title:              d.Title,
		ClientName:         d.ClientName,
		Lines:              make([]lineResponse, len(d.Lines)),
		TotalNet:           money(d.TotalNet),
		TotalVAT:           money(d.TotalVAT),
		TotalGross:         money(d.TotalGross),
		ReverseCharge:      d.ReverseCharge,
		LegalMention:       d.LegalMention,
		ParentQuoteID:      d.ParentQuoteID,
		SituationNumber:    d.SituationNumber,
		Notes:              d.Notes,
		ConvertedInvoiceID: d.ConvertedInvoiceID,
		SourceQuoteID:      d.SourceQuoteID,
		SentAt:             d.SentAt,
		PaidAt:             d.PaidAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		AvailableActions:   workflow.Available(d.Snapshot()),
	}
	if out.AvailableActions == nil {
		out.AvailableActions = []workflow.Action{}
	}
	if d.CompletionPct.Valid {
		pct := d.CompletionPct.Decimal.StringFixed(2)
		out.CompletionPct = &pct
	}
	for i, l := range d.Lines {
		out.Lines[i] = lineResponse{
			ID:           l.ID,
			Position:     l.Position,
			Description:  l.Description,
			Quantity:     l.Quantity.String(),
			UnitPriceNet: money(l.UnitPriceNet),
			VATRate:      l.VATRate,
			Trade:        l.Trade,
			LineNet:      money(l.Billing().Net()),
		}
	}
	return out
}

func newDocumentList(docs []models.Document) []documentResponse {
	out := make([]documentResponse, len(docs))
	for i := range docs {
		out[i] = newDocumentResponse(&docs[i])
	}
	return out
}

type actionResponse struct {
	Document documentResponse  `json:"document"`
	Invoice  *documentResponse `json:"invoice,omitempty"`
}

type rateTotalResponse struct {
	Rate billing.Rate `json:"rate"`
	Net  string       `json:"net"`
	VAT  string       `json:"vat"`
}

type breakdownResponse struct {
	DocumentID    uint                `json:"document_id"`
	PerRate       []rateTotalResponse `json:"per_rate"`
	TotalNet      string              `json:"total_net"`
	TotalVAT      string              `json:"total_vat"`
	TotalGross    string              `json:"total_gross"`
	ReverseCharge bool                `json:"reverse_charge"`
	LegalMention  *string             `json:"legal_mention"`
	// AllocatedVAT is the VAT the lines carry before reverse charge.
	AllocatedVAT string `json:"allocated_vat"`
}

func newBreakdownResponse(b *services.Breakdown) breakdownResponse {
	out := breakdownResponse{
		DocumentID:    b.Document.ID,
		PerRate:       make([]rateTotalResponse, len(b.Allocation.PerRate)),
		TotalNet:      money(b.Totals.TotalNet),
		TotalVAT:      money(b.Totals.TotalVAT),
		TotalGross:    money(b.Totals.TotalGross),
		ReverseCharge: b.Document.ReverseCharge,
		LegalMention:  b.Totals.LegalMention,
		AllocatedVAT:  money(b.Allocation.TotalVAT),
	}
	for i, rt := range b.Allocation.PerRate {
		out.PerRate[i] = rateTotalResponse{Rate: rt.Rate, Net: money(rt.Net), VAT: money(rt.VAT)}
	}
	return out
}

type progressResponse struct {
	PhysicalPct       string            `json:"physical_progress_pct"`
	FinancialPct      string            `json:"financial_progress_pct"`
	TotalBilledGross  string            `json:"total_billed_gross"`
	RemainingToBill   string            `json:"remaining_to_bill"`
	ImbalanceDetected bool              `json:"imbalance_detected"`
	Direction         billing.Direction `json:"imbalance_direction"`
}

type overbillingResponse struct {
	Detected         bool   `json:"detected"`
	ParentTotalGross string `json:"parent_total_gross"`
	BilledGross      string `json:"billed_gross"`
	Tolerance        string `json:"tolerance"`
	Excess           string `json:"excess"`
}

type situationsResponse struct {
	Parent      documentResponse    `json:"parent"`
	Situations  []documentResponse  `json:"situations"`
	Progress    progressResponse    `json:"progress"`
	Overbilling overbillingResponse `json:"overbilling"`
}

type situationCreatedResponse struct {
	Situation   documentResponse    `json:"situation"`
	Progress    progressResponse    `json:"progress"`
	Overbilling overbillingResponse `json:"overbilling"`
}

func newSituationsResponse(r *services.SituationReport) situationsResponse {
	p, o := r.Progress, r.Overbilling
	return situationsResponse{
		Parent:     newDocumentResponse(r.Parent),
		Situations: newDocumentList(r.Situations),
		Progress: progressResponse{
			PhysicalPct:       p.PhysicalPct.StringFixed(2),
			FinancialPct:      p.FinancialPct.StringFixed(2),
			TotalBilledGross:  money(p.TotalBilledGross),
			RemainingToBill:   money(p.RemainingToBill),
			ImbalanceDetected: p.ImbalanceDetected,
			Direction:         p.Direction,
		},
		Overbilling: overbillingResponse{
			Detected:         o.Detected,
			ParentTotalGross: money(o.ParentTotalGross),
			BilledGross:      money(o.BilledGross),
			Tolerance:        money(o.Tolerance),
			Excess:           money(o.Excess),
		},
	}
}

type eventResponse struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	FromStatus workflow.Status   `json:"from_status,omitempty"`
	ToStatus   workflow.Status   `json:"to_status,omitempty"`
	UserID     uint              `json:"user_id"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func newEventList(events []models.DocumentEvent) []eventResponse {
	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = eventResponse{
			ID:         e.ID.String(),
			Action:     e.Action,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			UserID:     e.UserID,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		}
	}
	return out
}
