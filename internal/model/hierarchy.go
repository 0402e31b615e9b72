package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrgUnit is an organizational unit (wing, section, office). Its
// SupervisorID is the first approver for requests raised by its members.
type OrgUnit struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	SupervisorID *uuid.UUID `gorm:"type:uuid" json:"supervisor_id"`
	Supervisor   *User      `gorm:"foreignKey:SupervisorID" json:"supervisor,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *OrgUnit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HierarchyEdge maps an approver to their own supervisor: the escalation
// chain walked when a request is forwarded. Reference data — this
// subsystem only ever reads it.
type HierarchyEdge struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MemberID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"member_id"`
	Member       *User     `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	SupervisorID uuid.UUID `gorm:"type:uuid;not null" json:"supervisor_id"`
	Supervisor   *User     `gorm:"foreignKey:SupervisorID" json:"supervisor,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e *HierarchyEdge) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
