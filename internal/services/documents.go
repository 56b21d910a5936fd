package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/diewo77/chantierpro/internal/billing"
	"github.com/diewo77/chantierpro/internal/models"
	"github.com/diewo77/chantierpro/internal/validation"
	"github.com/diewo77/chantierpro/internal/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Settings are the tunable billing rules.
type Settings struct {
	LegalMention         string
	ImbalanceThreshold   decimal.Decimal
	OverbillingTolerance decimal.Decimal
	ProgressMode         billing.ProgressMode
}

func DefaultSettings() Settings {
	return Settings{
		ImbalanceThreshold: billing.DefaultImbalanceThreshold,
		ProgressMode:       billing.ModeMean,
	}
}

// DocumentService persists quotes, invoices and situations. Every mutation
// runs in one transaction, recomputes the cached totals and appends a
// DocumentEvent. Status changes are compare-and-set on the status read.
type DocumentService struct {
	db        *gorm.DB
	reverse   billing.ReverseCharge
	tracker   billing.Tracker
	tolerance decimal.Decimal
	log       *slog.Logger
	now       func() time.Time
}

func NewDocumentService(db *gorm.DB, settings Settings, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.ProgressMode == "" {
		settings.ProgressMode = billing.ModeMean
	}
	return &DocumentService{
		db:        db,
		reverse:   billing.ReverseCharge{LegalMention: settings.LegalMention},
		tracker:   billing.Tracker{ThresholdPct: settings.ImbalanceThreshold, Mode: settings.ProgressMode},
		tolerance: settings.OverbillingTolerance,
		log:       logger,
		now:       time.Now,
	}
}

type CreateInput struct {
	Type          workflow.DocType
	Title         string
	ClientName    string
	ReverseCharge bool
	Lines         []LineInput
}

type ListFilter struct {
	OwnerID uint // 0 lists every owner
	Type    workflow.DocType
	Status  workflow.Status
}

// TransitionResult is the document after an action. Invoice is set by CONVERT.
type TransitionResult struct {
	Document *models.Document
	Invoice  *models.Document
}

// Breakdown is the VAT allocation of a document with reverse charge applied.
type Breakdown struct {
	Document   *models.Document
	Allocation billing.Allocation
	Totals     billing.Totals
}

// Create stores a new DRAFT document with its lines and computed totals.
func (s *DocumentService) Create(ctx context.Context, userID uint, in CreateInput) (*models.Document, error) {
	v := validation.Violations{}
	switch in.Type {
	case workflow.Devis, workflow.Facture:
	case "":
		v.Add("type", "required")
	default:
		v.Add("type", "invalid")
	}
	validation.MaxLength("title", in.Title, 255, v)
	validation.MaxLength("client_name", in.ClientName, 255, v)
	validateLines(in.Lines, v)
	if !v.Empty() {
		return nil, &ValidationError{Fields: v}
	}

	doc := &models.Document{
		UserID:        userID,
		Type:          in.Type,
		Status:        workflow.Draft,
		Title:         in.Title,
		ClientName:    in.ClientName,
		ReverseCharge: in.ReverseCharge,
		Lines:         buildLines(in.Lines, 0, 0),
	}
	s.applyTotals(doc)
	if err := checkTotals(doc); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		return s.record(tx, doc.ID, userID, "create", "", workflow.Draft, nil)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id uint) (*models.Document, error) {
	return s.load(s.db.WithContext(ctx), id)
}

// List returns documents newest first.
func (s *DocumentService) List(ctx context.Context, f ListFilter) ([]models.Document, error) {
	q := s.db.WithContext(ctx).Model(&models.Document{}).Preload("Lines", orderedLines)
	if f.OwnerID != 0 {
		q = q.Where("user_id = ?", f.OwnerID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var docs []models.Document
	if err := q.Order("created_at DESC, id DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// AddLines appends lines to a DRAFT document.
func (s *DocumentService) AddLines(ctx context.Context, id, userID uint, lines []LineInput) (*models.Document, error) {
	v := validation.Violations{}
	if len(lines) == 0 {
		v.Add("lines", "required")
	}
	validateLines(lines, v)
	if !v.Empty() {
		return nil, &ValidationError{Fields: v}
	}

	var doc *models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = s.loadEditable(tx, id); err != nil {
			return err
		}
		items := buildLines(lines, doc.ID, nextPosition(doc.Lines))
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, items...)
		return s.saveTotals(tx, doc, userID, "lines_added", datatypes.JSONMap{"count": len(items)})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateLine replaces the content of one line of a DRAFT document.
func (s *DocumentService) UpdateLine(ctx context.Context, id, lineID, userID uint, in LineInput) (*models.Document, error) {
	v := validation.Violations{}
	validateLine(in, func(f string) string { return f }, v)
	if !v.Empty() {
		return nil, &ValidationError{Fields: v}
	}

	var doc *models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = s.loadEditable(tx, id); err != nil {
			return err
		}
		i := slices.IndexFunc(doc.Lines, func(l models.LineItem) bool { return l.ID == lineID })
		if i < 0 {
			return ErrNotFound
		}
		err = tx.Model(&models.LineItem{}).
			Where("id = ? AND document_id = ?", lineID, doc.ID).
			Updates(map[string]any{
				"description":    in.Description,
				"quantity":       in.Quantity,
				"unit_price_net": in.UnitPriceNet,
				"vat_rate":       in.VATRate,
				"trade":          in.Trade,
			}).Error
		if err != nil {
			return err
		}
		l := &doc.Lines[i]
		l.Description, l.Quantity, l.UnitPriceNet, l.VATRate, l.Trade = in.Description, in.Quantity, in.UnitPriceNet, in.VATRate, in.Trade
		return s.saveTotals(tx, doc, userID, "line_updated", datatypes.JSONMap{"line_id": lineID})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveLine deletes one line of a DRAFT document.
func (s *DocumentService) RemoveLine(ctx context.Context, id, lineID, userID uint) (*models.Document, error) {
	var doc *models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = s.loadEditable(tx, id); err != nil {
			return err
		}
		res := tx.Where("id = ? AND document_id = ?", lineID, doc.ID).Delete(&models.LineItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		doc.Lines = slices.DeleteFunc(doc.Lines, func(l models.LineItem) bool { return l.ID == lineID })
		return s.saveTotals(tx, doc, userID, "line_removed", datatypes.JSONMap{"line_id": lineID})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SetReverseCharge toggles autoliquidation on a DRAFT document.
func (s *DocumentService) SetReverseCharge(ctx context.Context, id, userID uint, enabled bool) (*models.Document, error) {
	var doc *models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = s.loadEditable(tx, id); err != nil {
			return err
		}
		doc.ReverseCharge = enabled
		return s.saveTotals(tx, doc, userID, "reverse_charge", datatypes.JSONMap{"enabled": enabled})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Transition applies a lifecycle action. SEND assigns the document number,
// CONVERT creates the DRAFT invoice and links it to the quote.
func (s *DocumentService) Transition(ctx context.Context, id, userID uint, action workflow.Action) (*TransitionResult, error) {
	result := &TransitionResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.load(tx, id)
		if err != nil {
			return err
		}
		from := doc.Status
		to, err := workflow.Next(doc.Snapshot(), action)
		if err != nil {
			return err
		}

		now := s.now()
		updates := map[string]any{"status": string(to)}
		meta := datatypes.JSONMap{}
		q := tx.Model(&models.Document{}).Where("id = ? AND status = ?", doc.ID, string(from))
		switch action {
		case workflow.Send:
			number, err := s.nextNumber(tx, doc, now)
			if err != nil {
				return err
			}
			updates["number"] = number
			updates["sent_at"] = now
			meta["number"] = number
			doc.Number, doc.SentAt = &number, &now
			q = q.Where("EXISTS (SELECT 1 FROM line_items WHERE line_items.document_id = documents.id)")
		case workflow.Pay:
			updates["paid_at"] = now
			doc.PaidAt = &now
		case workflow.Convert:
			inv, err := s.createInvoiceFrom(tx, doc, userID)
			if err != nil {
				return err
			}
			updates["converted_invoice_id"] = inv.ID
			meta["invoice_id"] = inv.ID
			doc.ConvertedInvoiceID = &inv.ID
			result.Invoice = inv
			q = q.Where("converted_invoice_id IS NULL")
		}

		res := q.Updates(updates)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return ErrConflict
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		doc.Status = to
		result.Document = doc
		if len(meta) == 0 {
			meta = nil
		}
		return s.record(tx, doc.ID, userID, string(action), from, to, meta)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("document transition", "document_id", id, "action", action, "status", result.Document.Status)
	return result, nil
}

func (s *DocumentService) VATBreakdown(ctx context.Context, id uint) (*Breakdown, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	alloc := billing.Allocate(doc.BillingLines())
	return &Breakdown{Document: doc, Allocation: alloc, Totals: s.reverse.Apply(alloc, doc.ReverseCharge)}, nil
}

// Events returns the audit trail of a document, oldest first.
func (s *DocumentService) Events(ctx context.Context, id uint) ([]models.DocumentEvent, error) {
	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Document{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	var events []models.DocumentEvent
	if err := db.Where("document_id = ?", id).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

func (s *DocumentService) load(tx *gorm.DB, id uint) (*models.Document, error) {
	var doc models.Document
	if err := tx.Preload("Lines", orderedLines).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentService) loadEditable(tx *gorm.DB, id uint) (*models.Document, error) {
	doc, err := s.load(tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Next(doc.Snapshot(), workflow.Edit); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) applyTotals(doc *models.Document) {
	t := s.reverse.Apply(billing.Allocate(doc.BillingLines()), doc.ReverseCharge)
	doc.TotalNet, doc.TotalVAT, doc.TotalGross = t.TotalNet, t.TotalVAT, t.TotalGross
	doc.LegalMention = t.LegalMention
}

// saveTotals recomputes and writes the cached totals, only while the document
// is still DRAFT, then records the edit.
func (s *DocumentService) saveTotals(tx *gorm.DB, doc *models.Document, userID uint, action string, meta datatypes.JSONMap) error {
	s.applyTotals(doc)
	if err := checkTotals(doc); err != nil {
		return err
	}
	res := tx.Model(&models.Document{}).
		Where("id = ? AND status = ?", doc.ID, string(workflow.Draft)).
		Updates(map[string]any{
			"total_net":      doc.TotalNet,
			"total_vat":      doc.TotalVAT,
			"total_gross":    doc.TotalGross,
			"reverse_charge": doc.ReverseCharge,
			"legal_mention":  doc.LegalMention,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return s.record(tx, doc.ID, userID, action, doc.Status, doc.Status, meta)
}

func (s *DocumentService) record(tx *gorm.DB, docID, userID uint, action string, from, to workflow.Status, meta datatypes.JSONMap) error {
	return tx.Create(&models.DocumentEvent{
		DocumentID: docID,
		UserID:     userID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Metadata:   meta,
	}).Error
}

func numberPrefix(t workflow.DocType) string {
	if t == workflow.Devis {
		return "DEV"
	}
	return "FAC"
}

// nextNumber counts the owner's documents already numbered this year with the
// same prefix. Two concurrent sends collide on idx_owner_number.
func (s *DocumentService) nextNumber(tx *gorm.DB, doc *models.Document, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", numberPrefix(doc.Type), now.Year())
	var n int64
	err := tx.Model(&models.Document{}).
		Where("user_id = ? AND number LIKE ?", doc.UserID, prefix+"%").
		Count(&n).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, n+1), nil
}

func (s *DocumentService) createInvoiceFrom(tx *gorm.DB, quote *models.Document, userID uint) (*models.Document, error) {
	quoteID := quote.ID
	inv := &models.Document{
		UserID:        quote.UserID,
		Type:          workflow.Facture,
		Status:        workflow.Draft,
		Title:         quote.Title,
		ClientName:    quote.ClientName,
		ReverseCharge: quote.ReverseCharge,
		SourceQuoteID: &quoteID,
		Lines:         copyLines(quote.Lines),
	}
	s.applyTotals(inv)
	if err := tx.Create(inv).Error; err != nil {
		return nil, err
	}
	if err := s.record(tx, inv.ID, userID, "create", "", workflow.Draft, datatypes.JSONMap{"source_quote_id": quoteID}); err != nil {
		return nil, err
	}
	return inv, nil
}
