package models

import (
	"time"

	"github.com/diewo77/chantierpro/internal/workflow"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentEvent is one entry of a document's audit trail: creation, edits and
// every applied lifecycle transition.
type DocumentEvent struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CreatedAt  time.Time       `gorm:"index"`
	DocumentID uint            `gorm:"index;not null"`
	UserID     uint            `gorm:"index"`
	Action     string          `gorm:"size:30;not null"`
	FromStatus workflow.Status `gorm:"size:20"`
	ToStatus   workflow.Status `gorm:"size:20"`
	Metadata   datatypes.JSONMap
}

func (e *DocumentEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// All lists the models handled by AutoMigrate, in dependency order.
func All() []any {
	return []any{
		&Permission{}, &Profile{}, &User{},
		&Document{}, &LineItem{}, &DocumentEvent{},
	}
}
