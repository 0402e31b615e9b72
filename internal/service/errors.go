package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Workflow error kinds. Handlers map these to HTTP statuses; the envelope
// state is guaranteed unchanged whenever one of them is returned.
var (
	ErrNoApproverConfigured = errors.New("no approver configured for organizational unit")
	ErrNotCurrentApprover   = errors.New("caller is not the currently assigned approver")
	ErrNotRequestOwner      = errors.New("caller is not the request owner")
	ErrReasonRequired       = errors.New("reason is required for reject and return decisions")
	ErrItemAlreadyDecided   = errors.New("item has already been decided")
	ErrItemNotFound         = errors.New("item does not belong to this envelope")
	ErrNotInReturnedState   = errors.New("request's latest envelope is not in returned state")
	ErrEnvelopeClosed       = errors.New("envelope is no longer accepting decisions")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidDecision      = errors.New("invalid decision kind")
)

// ItemError ties a workflow error to the item that caused it, so a
// rejected decision batch reports which line failed.
type ItemError struct {
	ItemID uuid.UUID
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %v", e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func itemErr(itemID uuid.UUID, err error) error {
	return &ItemError{ItemID: itemID, Err: err}
}
