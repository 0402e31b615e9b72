package model

// EnvelopeStatus is the overall status of one approval pass.
// Every component shares this enumeration — never raw strings.
type EnvelopeStatus string

const (
	EnvelopePending            EnvelopeStatus = "PENDING"
	EnvelopeApproved           EnvelopeStatus = "APPROVED"
	EnvelopeApprovedWithErrata EnvelopeStatus = "APPROVED_WITH_EXCEPTIONS"
	EnvelopeRejected           EnvelopeStatus = "REJECTED"
	EnvelopeReturned           EnvelopeStatus = "RETURNED"
	EnvelopeForwarded          EnvelopeStatus = "FORWARDED"
)

// IsTerminal reports whether the envelope can never transition again.
// RETURNED and FORWARDED are routing states: the request stays live.
func (s EnvelopeStatus) IsTerminal() bool {
	switch s {
	case EnvelopeApproved, EnvelopeApprovedWithErrata, EnvelopeRejected:
		return true
	}
	return false
}

// ItemDecision is the per-line-item state within one envelope.
// PENDING is the undecided initial state; the rest are decision kinds.
type ItemDecision string

const (
	ItemPending             ItemDecision = "PENDING"
	ItemApprovedFromStock   ItemDecision = "APPROVED_FROM_STOCK"
	ItemApprovedProcurement ItemDecision = "APPROVED_FOR_PROCUREMENT"
	ItemRejected            ItemDecision = "REJECTED"
	ItemReturned            ItemDecision = "RETURNED"
	ItemForwarded           ItemDecision = "FORWARDED"
)

// IsApproval reports whether the decision grants the item (from stock or
// via procurement). Approval kinds are the only ones carrying an
// allocated quantity.
func (d ItemDecision) IsApproval() bool {
	return d == ItemApprovedFromStock || d == ItemApprovedProcurement
}

// RequiresReason reports whether a free-text reason is mandatory.
func (d ItemDecision) RequiresReason() bool {
	return d == ItemRejected || d == ItemReturned
}

// ValidDecision reports whether d is an applicable decision kind
// (PENDING is a state, not a decision an approver may submit).
func ValidDecision(d ItemDecision) bool {
	switch d {
	case ItemApprovedFromStock, ItemApprovedProcurement, ItemRejected, ItemReturned, ItemForwarded:
		return true
	}
	return false
}

// ReservationStatus tracks a stock hold through its lifecycle.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
)

// Stock ledger entry types
const (
	TxTypeIn  = "IN"
	TxTypeOut = "OUT"
)

// Approval history actions
const (
	ActionSubmitted      = "SUBMITTED"
	ActionApproved       = "APPROVED"
	ActionRejected       = "REJECTED"
	ActionReturned       = "RETURNED"
	ActionForwarded      = "FORWARDED"
	ActionResubmitted    = "RESUBMITTED"
	ActionStockCommitted = "STOCK_COMMITTED"
	ActionStockReleased  = "STOCK_RELEASED"
)
