package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockItem is a catalog item with physical stock at one location.
// AvailableQuantity <= OnHandQuantity; the gap is held by active
// reservations.
type StockItem struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ItemCode          string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"item_code"`
	Name              string    `gorm:"type:varchar(500);not null" json:"name"`
	Unit              string    `gorm:"type:varchar(50)" json:"unit"`
	Location          string    `gorm:"type:varchar(100);not null;default:'MAIN'" json:"location"`
	OnHandQuantity    int       `gorm:"not null;default:0" json:"on_hand_quantity"`
	AvailableQuantity int       `gorm:"not null;default:0" json:"available_quantity"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (s *StockItem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// StockReservation is a temporary hold on available quantity, taken when
// an item is approved from stock and resolved when the request reaches a
// terminal disposition. The row ID doubles as the reservation token.
type StockReservation struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	StockItemID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"stock_item_id"`
	StockItem     *StockItem        `gorm:"foreignKey:StockItemID" json:"stock_item,omitempty"`
	RequestID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"request_id"`
	RequestItemID uuid.UUID         `gorm:"type:uuid;not null;index" json:"request_item_id"`
	EnvelopeID    uuid.UUID         `gorm:"type:uuid;not null" json:"envelope_id"`
	Quantity      int               `gorm:"not null" json:"quantity"`
	Status        ReservationStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (r *StockReservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// StockTransaction is the permanent stock ledger. OUT rows are written
// when a reservation commits, IN rows on stock intake.
type StockTransaction struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StockItemID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"stock_item_id"`
	RequestID       *uuid.UUID `gorm:"type:uuid;index" json:"request_id"`
	RequestItemID   *uuid.UUID `gorm:"type:uuid" json:"request_item_id"`
	TransactionType string     `gorm:"type:varchar(10);not null" json:"transaction_type"` // IN, OUT
	QuantityChanged int        `gorm:"not null" json:"quantity_changed"`
	StockAfter      int        `gorm:"not null" json:"stock_after"`
	PerformedBy     *uuid.UUID `gorm:"type:uuid" json:"performed_by"`
	Note            string     `gorm:"type:text" json:"note,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
}

func (t *StockTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
