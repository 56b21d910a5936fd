package services

import (
	"context"
	"fmt"

	"github.com/diewo77/chantierpro/internal/billing"
	"github.com/diewo77/chantierpro/internal/models"
	"github.com/diewo77/chantierpro/internal/validation"
	"github.com/diewo77/chantierpro/internal/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SituationInput describes one progressive invoice billed against a quote.
// CompletionPct is the completion declared for this situation.
type SituationInput struct {
	CompletionPct decimal.Decimal
	Notes         string
	Title         string
	Lines         []LineInput
}

// SituationReport is the state of progressive billing on a quote. Situations
// holds every situation in number order; cancelled ones are not tracked.
type SituationReport struct {
	Parent      *models.Document
	Situations  []models.Document
	Progress    billing.Progress
	Overbilling billing.Overbilling
}

type SituationResult struct {
	Situation *models.Document
	SituationReport
}

// CreateSituation issues the next situation of an ACCEPTED quote. The
// situation number comes from the quote's counter, bumped under the row lock
// of the same transaction. Overbilling is reported, never refused.
func (s *DocumentService) CreateSituation(ctx context.Context, parentID, userID uint, in SituationInput) (*SituationResult, error) {
	v := validation.Violations{}
	validation.Range("completion_pct", in.CompletionPct, decimal.Zero, decimal.NewFromInt(100), v)
	validation.MaxPlaces("completion_pct", in.CompletionPct, 2, v)
	validation.MaxLength("title", in.Title, 255, v)
	if len(in.Lines) == 0 {
		v.Add("lines", "required")
	}
	validateLines(in.Lines, v)
	if !v.Empty() {
		return nil, &ValidationError{Fields: v}
	}

	result := &SituationResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := s.load(tx, parentID)
		if err != nil {
			return err
		}
		if _, err := workflow.Next(parent.Snapshot(), workflow.Spawn); err != nil {
			return err
		}

		res := tx.Model(&models.Document{}).
			Where("id = ? AND type = ? AND status = ?", parent.ID, string(workflow.Devis), string(workflow.Accepted)).
			UpdateColumn("situation_count", gorm.Expr("situation_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		var counts []int
		if err := tx.Model(&models.Document{}).Where("id = ?", parent.ID).Pluck("situation_count", &counts).Error; err != nil {
			return err
		}
		if len(counts) != 1 {
			return ErrNotFound
		}
		number := counts[0]
		parent.SituationCount = number

		title := in.Title
		if title == "" {
			title = fmt.Sprintf("Situation n°%d - %s", number, parent.Title)
		}
		parentRef := parent.ID
		sit := &models.Document{
			UserID:          parent.UserID,
			Type:            workflow.Facture,
			Status:          workflow.Draft,
			Title:           title,
			ClientName:      parent.ClientName,
			ReverseCharge:   parent.ReverseCharge,
			ParentQuoteID:   &parentRef,
			SituationNumber: &number,
			CompletionPct:   decimal.NewNullDecimal(in.CompletionPct),
			Notes:           in.Notes,
			Lines:           buildLines(in.Lines, 0, 0),
		}
		s.applyTotals(sit)
		if err := checkTotals(sit); err != nil {
			return err
		}
		if err := tx.Create(sit).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}

		meta := datatypes.JSONMap{"parent_quote_id": parent.ID, "situation_number": number}
		if err := s.record(tx, sit.ID, userID, "create", "", workflow.Draft, meta); err != nil {
			return err
		}
		meta = datatypes.JSONMap{"situation_id": sit.ID, "situation_number": number}
		if err := s.record(tx, parent.ID, userID, string(workflow.Spawn), parent.Status, parent.Status, meta); err != nil {
			return err
		}

		report, err := s.report(tx, parent)
		if err != nil {
			return err
		}
		result.Situation = sit
		result.SituationReport = *report
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.warnOverbilling(result.Parent, result.Overbilling)
	return result, nil
}

// Situations reports the progressive billing of a quote.
func (s *DocumentService) Situations(ctx context.Context, parentID uint) (*SituationReport, error) {
	db := s.db.WithContext(ctx)
	parent, err := s.load(db, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Type != workflow.Devis {
		return nil, invalid("parent_id", "not_a_quote")
	}
	report, err := s.report(db, parent)
	if err != nil {
		return nil, err
	}
	s.warnOverbilling(parent, report.Overbilling)
	return report, nil
}

func (s *DocumentService) report(tx *gorm.DB, parent *models.Document) (*SituationReport, error) {
	var sits []models.Document
	err := tx.Preload("Lines", orderedLines).
		Where("parent_quote_id = ?", parent.ID).
		Order("situation_number ASC").
		Find(&sits).Error
	if err != nil {
		return nil, err
	}

	tracked := make([]billing.Situation, 0, len(sits))
	for _, d := range sits {
		if d.Status == workflow.Cancelled {
			continue
		}
		tracked = append(tracked, billing.Situation{CompletionPct: d.CompletionPct.Decimal, TotalGross: d.TotalGross})
	}
	return &SituationReport{
		Parent:      parent,
		Situations:  sits,
		Progress:    s.tracker.Track(parent.TotalNet, tracked),
		Overbilling: billing.CheckOverbilling(parent.TotalGross, tracked, s.tolerance),
	}, nil
}

func (s *DocumentService) warnOverbilling(parent *models.Document, o billing.Overbilling) {
	if !o.Detected {
		return
	}
	s.log.Warn("situations exceed quote total",
		"quote_id", parent.ID,
		"quote_gross", o.ParentTotalGross.StringFixed(2),
		"billed_gross", o.BilledGross.StringFixed(2),
		"excess", o.Excess.StringFixed(2),
		"tolerance", o.Tolerance.StringFixed(2),
	)
}
