package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalEnvelope records one approval pass over a Request, assigned to
// one approver at a time. A resubmission after a RETURNED pass supersedes
// the old envelope and opens a new one with the next sequence number, so
// at most one envelope per request is live (non-terminal and not
// superseded) at any moment.
type ApprovalEnvelope struct {
	ID                uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID         uuid.UUID              `gorm:"type:uuid;not null;index" json:"request_id"`
	Request           *Request               `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	Sequence          int                    `gorm:"not null;default:1" json:"sequence"`
	CurrentApproverID uuid.UUID              `gorm:"type:uuid;not null;index" json:"current_approver_id"`
	CurrentApprover   *User                  `gorm:"foreignKey:CurrentApproverID" json:"current_approver,omitempty"`
	SubmittedBy       uuid.UUID              `gorm:"type:uuid;not null" json:"submitted_by"`
	Status            EnvelopeStatus         `gorm:"type:varchar(30);not null;default:'PENDING';index" json:"status"`
	Decisions         []ApprovalItemDecision `gorm:"foreignKey:EnvelopeID" json:"decisions"`
	SubmittedAt       time.Time              `gorm:"not null" json:"submitted_at"`
	DecidedAt         *time.Time             `json:"decided_at"`
	SupersededAt      *time.Time             `gorm:"index" json:"superseded_at"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func (e *ApprovalEnvelope) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ApprovalItemDecision is one approver's decision on one request line
// within one envelope. Item identity and requested quantity are copied at
// envelope creation so later edits to the request never rewrite history.
type ApprovalItemDecision struct {
	ID                uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	EnvelopeID        uuid.UUID    `gorm:"type:uuid;not null;index" json:"envelope_id"`
	RequestItemID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"request_item_id"`
	StockItemID       *uuid.UUID   `gorm:"type:uuid" json:"stock_item_id"`
	ItemDescription   string       `gorm:"type:varchar(500)" json:"item_description"`
	RequestedQuantity int          `gorm:"not null" json:"requested_quantity"`
	Decision          ItemDecision `gorm:"type:varchar(30);not null;default:'PENDING'" json:"decision"`
	AllocatedQuantity *int         `json:"allocated_quantity"` // set iff Decision.IsApproval()
	Reason            string       `gorm:"type:text" json:"reason,omitempty"`
	ReservationID     *uuid.UUID   `gorm:"type:uuid" json:"reservation_id"`
	DecidedBy         *uuid.UUID   `gorm:"type:uuid" json:"decided_by"`
	DecidedAt         *time.Time   `json:"decided_at"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func (d *ApprovalItemDecision) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ApprovalHistory is the append-only audit trail of workflow actions.
// Rows are never updated or deleted and the engine never reads them back.
type ApprovalHistory struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"request_id"`
	EnvelopeID *uuid.UUID `gorm:"type:uuid;index" json:"envelope_id"`
	ActorID    uuid.UUID  `gorm:"type:uuid;not null" json:"actor_id"`
	Actor      *User      `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Action     string     `gorm:"type:varchar(30);not null;index" json:"action"`
	Comment    string     `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (h *ApprovalHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
