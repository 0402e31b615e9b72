package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Request is a requester-authored ask for one or more items.
// Immutable after submission except for its item collection, which may be
// edited only while the latest envelope for the request is RETURNED.
type Request struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"requester_id"`
	Requester    *User         `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	UnitID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"unit_id"`
	Unit         *OrgUnit      `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Purpose      string        `gorm:"type:text;not null" json:"purpose"`
	IsReturnable bool          `gorm:"not null;default:false" json:"is_returnable"` // loan vs consumable
	Items        []RequestItem `gorm:"foreignKey:RequestID" json:"items"`
	SubmittedAt  time.Time     `gorm:"not null" json:"submitted_at"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RequestItem is one line of a Request: either a catalog item reference or
// a free-text custom item, never both.
type RequestItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	StockItemID       *uuid.UUID      `gorm:"type:uuid;index" json:"stock_item_id"` // nil for custom items
	StockItem         *StockItem      `gorm:"foreignKey:StockItemID" json:"stock_item,omitempty"`
	CustomDescription string          `gorm:"type:varchar(500)" json:"custom_description,omitempty"`
	RequestedQuantity int             `gorm:"not null" json:"requested_quantity"`
	UnitCostEstimate  decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"unit_cost_estimate"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (i *RequestItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
